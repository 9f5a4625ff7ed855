package triage

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/platform/completion"
)

// Session is a persisted symptom-check conversation.
type Session struct {
	ID                  uuid.UUID            `json:"id"`
	UserID              uuid.UUID            `json:"user_id"`
	Messages            []completion.Message `json:"messages"`
	EscalationAvailable bool                 `json:"escalation_available"`
	FinalReport         *string              `json:"final_report,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

type SendInput struct {
	Message string `json:"message"`
}

type QuickReliefInput struct {
	Transcript []completion.Message `json:"transcript"`
	Message    string               `json:"message"`
}

type QuickReliefResult struct {
	Reply      string               `json:"reply"`
	Transcript []completion.Message `json:"transcript"`
}
