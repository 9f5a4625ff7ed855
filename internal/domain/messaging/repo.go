package messaging

import (
	"context"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, m *ChatMessage) error
	ListByPair(ctx context.Context, doctorID, patientID uuid.UUID, limit, offset int) ([]*ChatMessage, int, error)
}
