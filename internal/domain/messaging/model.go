package messaging

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one doctor/patient chat line. Messages are append-only.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type PostInput struct {
	Content string `json:"content"`
}
