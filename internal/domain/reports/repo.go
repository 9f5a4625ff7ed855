package reports

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("report not found")
	ErrAlreadyReviewed = errors.New("report has already been reviewed")
)

type ReportRepository interface {
	Create(ctx context.Context, r *SymptomReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*SymptomReport, error)
	ListPending(ctx context.Context, limit, offset int) ([]*SymptomReport, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, status string, limit, offset int) ([]*SymptomReport, int, error)
	// Review moves a pending, unassigned report to status and assigns it to
	// doctorID. It returns ErrAlreadyReviewed when the report has left
	// pending_review or was claimed by someone else.
	Review(ctx context.Context, id, doctorID uuid.UUID, status string) (*SymptomReport, error)
}

type LinkRepository interface {
	Activate(ctx context.Context, doctorID, patientID uuid.UUID) (*DoctorPatientLink, error)
	IsActive(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	ListPatients(ctx context.Context, doctorID uuid.UUID) ([]*CareContact, error)
	ListDoctors(ctx context.Context, patientID uuid.UUID) ([]*CareContact, error)
}
