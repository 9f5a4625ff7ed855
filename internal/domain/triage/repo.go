package triage

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// SessionRepository stores symptom-check conversations. Create and Update
// are separate so a new conversation can never overwrite an existing one.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	Update(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Session, int, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}
