// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"iter"
	"time"

	"github.com/ashureev/analystai/internal/domain"
)

// Repository defines the interface for persisting users and their conversations.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil, nil when the user is unknown.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// InsertConversation writes a complete conversation in a single statement.
	InsertConversation(ctx context.Context, conv *domain.Conversation) error

	// ListConversations lazily yields a user's conversations, newest first.
	ListConversations(ctx context.Context, userID string) iter.Seq2[*domain.Conversation, error]

	// GetConversation retrieves one conversation from a user's collection.
	// It returns domain.ErrNotFound when the id is unknown for that user.
	GetConversation(ctx context.Context, userID, id string) (*domain.Conversation, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
