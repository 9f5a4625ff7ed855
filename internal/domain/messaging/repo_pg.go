package messaging

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/carebridge/internal/platform/db"
)

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository { return &messageRepoPG{pool: pool} }

func (r *messageRepoPG) conn(ctx context.Context) db.Queryable {
	return db.ConnFromContext(ctx, r.pool)
}

func (r *messageRepoPG) Create(ctx context.Context, m *ChatMessage) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO chat_messages (id, doctor_id, patient_id, sender_id, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		m.ID, m.DoctorID, m.PatientID, m.SenderID, m.Content).Scan(&m.CreatedAt)
}

func (r *messageRepoPG) ListByPair(ctx context.Context, doctorID, patientID uuid.UUID, limit, offset int) ([]*ChatMessage, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE doctor_id = $1 AND patient_id = $2`,
		doctorID, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, doctor_id, patient_id, sender_id, content, created_at
		FROM chat_messages
		WHERE doctor_id = $1 AND patient_id = $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3 OFFSET $4`, doctorID, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.DoctorID, &m.PatientID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &m)
	}
	return items, total, rows.Err()
}
