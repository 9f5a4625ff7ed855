package labs

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("lab document not found")

type DocumentRepository interface {
	Create(ctx context.Context, d *LabDocument) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabDocument, error)
	ListByLab(ctx context.Context, labID uuid.UUID, limit, offset int) ([]*LabDocument, int, error)
}
