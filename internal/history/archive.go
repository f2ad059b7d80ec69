// Package history keeps each user's collection of finalized conversations.
package history

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/analystai/internal/conversation"
	"github.com/ashureev/analystai/internal/domain"
	"github.com/ashureev/analystai/internal/store"
)

// Record is the content of a conversation to be saved.
type Record struct {
	// Title is derived from the first user message when empty.
	Title     string
	Messages  []domain.Message
	Documents *domain.DocumentBundle
}

// Archive saves and loads conversations in per-user collections.
type Archive struct {
	repo   store.Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewArchive creates an archive over repo.
func NewArchive(repo store.Repository, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{repo: repo, logger: logger, now: time.Now}
}

// Save stores rec as a new conversation in userID's collection and returns its id.
// Documents, when present, must have every section filled.
// The write is a single insert; it either fully succeeds or leaves nothing behind.
func (a *Archive) Save(ctx context.Context, userID string, rec Record) (string, error) {
	if rec.Documents != nil {
		if err := rec.Documents.Validate(); err != nil {
			return "", err
		}
	}

	title := rec.Title
	if title == "" {
		title = conversation.TitleOrDefault(rec.Messages)
	}

	conv := &domain.Conversation{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Messages:    rec.Messages,
		StartTime:   a.now(),
		IsFinalized: rec.Documents != nil,
		Documents:   rec.Documents,
	}
	if conv.Messages == nil {
		conv.Messages = []domain.Message{}
	}

	if err := a.repo.InsertConversation(ctx, conv); err != nil {
		return "", &domain.PersistenceError{Op: "save", Err: err}
	}
	a.logger.Info("Conversation saved",
		"user_id", userID,
		"conversation_id", conv.ID,
		"messages", len(conv.Messages),
		"finalized", conv.IsFinalized)
	return conv.ID, nil
}

// LoadAll yields every conversation of userID, newest first.
func (a *Archive) LoadAll(ctx context.Context, userID string) iter.Seq2[*domain.Conversation, error] {
	return func(yield func(*domain.Conversation, error) bool) {
		for conv, err := range a.repo.ListConversations(ctx, userID) {
			if err != nil {
				yield(nil, &domain.PersistenceError{Op: "list", Err: err})
				return
			}
			if !yield(conv, nil) {
				return
			}
		}
	}
}

// Summaries collects the listing view of userID's conversations.
func (a *Archive) Summaries(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	out := []domain.ConversationSummary{}
	for conv, err := range a.LoadAll(ctx, userID) {
		if err != nil {
			return nil, err
		}
		out = append(out, conv.Summary())
	}
	return out, nil
}

// Load returns one conversation of userID, or domain.ErrNotFound.
func (a *Archive) Load(ctx context.Context, userID, id string) (*domain.Conversation, error) {
	conv, err := a.repo.GetConversation(ctx, userID, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: err}
	}
	return conv, nil
}
