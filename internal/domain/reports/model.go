package reports

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/platform/completion"
)

// Report statuses. A report only moves out of pending_review, never back.
const (
	StatusPendingReview = "pending_review"
	StatusAccepted      = "accepted"
	StatusRejected      = "rejected"
)

const (
	LinkActive   = "active"
	LinkInactive = "inactive"
)

type SymptomReport struct {
	ID            uuid.UUID            `json:"id"`
	PatientID     uuid.UUID            `json:"patient_id"`
	DoctorID      *uuid.UUID           `json:"doctor_id,omitempty"`
	ReportContent string               `json:"report_content"`
	ChatHistory   []completion.Message `json:"chat_history"`
	Status        string               `json:"status"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// DoctorPatientLink is the care relationship created when a doctor accepts a
// patient's report. Chat and appointments require an active link.
type DoctorPatientLink struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// CareContact is the other side of an active link, as shown in care lists.
type CareContact struct {
	LinkID    uuid.UUID `json:"link_id"`
	ProfileID uuid.UUID `json:"profile_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Specialty *string   `json:"specialty,omitempty"`
	LinkedAt  time.Time `json:"linked_at"`
}
