// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/advisor-chat/internal/domain"
)

// Repository persists anonymous users and completed onboarding profiles.
// Conversation state itself is never stored.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil, nil if absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// RecordProfile stores a completed onboarding profile and bumps the
	// user's completed profile count.
	RecordProfile(ctx context.Context, record *domain.ProfileRecord) error

	// ListProfiles returns a user's most recent profiles, newest first.
	ListProfiles(ctx context.Context, userID string, limit int) ([]domain.ProfileRecord, error)

	// DeleteInactiveUsers removes users not seen for longer than ttl along with their profiles.
	DeleteInactiveUsers(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
