package domain

import "time"

// Conversation is a finalized chat persisted in a user's collection.
type Conversation struct {
	ID          string          `json:"id"`
	UserID      string          `json:"-"`
	Title       string          `json:"title"`
	Messages    []Message       `json:"messages"`
	StartTime   time.Time       `json:"startTime"`
	IsFinalized bool            `json:"isFinalized"`
	Documents   *DocumentBundle `json:"documents,omitempty"`
}

// ConversationSummary is the listing view of a conversation.
type ConversationSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	StartTime   time.Time `json:"startTime"`
	IsFinalized bool      `json:"isFinalized"`
}

// Summary returns the listing view of c.
func (c *Conversation) Summary() ConversationSummary {
	return ConversationSummary{
		ID:          c.ID,
		Title:       c.Title,
		StartTime:   c.StartTime,
		IsFinalized: c.IsFinalized,
	}
}
