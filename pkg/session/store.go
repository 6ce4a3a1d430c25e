package session

import (
	"context"
	"errors"
	"time"
)

// Common errors for store operations.
var (
	// ErrSessionNotFound is returned when a session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("session store is closed")
)

// Store abstracts conversation-session persistence.
// Implementations must be safe for concurrent use, serialize mutations
// per (channel, identity), and never block unrelated identities.
type Store interface {
	// GetOrCreate returns a snapshot of the session for the pair,
	// creating it with Step=StepStart on first call.
	GetOrCreate(ctx context.Context, channel, identity string) (*Session, error)

	// Get returns a snapshot of an existing session.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Get(ctx context.Context, channel, identity string) (*Session, error)

	// Touch updates the session's last-activity timestamp.
	Touch(ctx context.Context, channel, identity string) error

	// SetStep updates the session's step label.
	SetStep(ctx context.Context, channel, identity, step string) error

	// SetData sets one collected key/value fact.
	SetData(ctx context.Context, channel, identity, key, value string) error

	// Append adds a turn to the session transcript.
	Append(ctx context.Context, channel, identity string, turn Turn) error

	// Sweep removes sessions idle longer than maxIdle and returns the
	// number evicted.
	Sweep(ctx context.Context, maxIdle time.Duration) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
