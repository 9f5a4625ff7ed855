package labs

import (
	"time"

	"github.com/google/uuid"
)

const DocumentTypeMedicalImage = "medical_image"

// LabDocument is an uploaded image together with its generated analysis.
type LabDocument struct {
	ID           uuid.UUID `json:"id"`
	LabID        uuid.UUID `json:"lab_id"`
	ImageURL     string    `json:"image_url"`
	ObjectKey    string    `json:"object_key"`
	Analysis     string    `json:"analysis"`
	DocumentType string    `json:"document_type"`
	CreatedAt    time.Time `json:"created_at"`
}
