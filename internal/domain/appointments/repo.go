package appointments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("appointment not found")
	ErrNotPending = errors.New("appointment is no longer pending")
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Transition moves a pending appointment to status. It returns
	// ErrNotPending when the appointment has already left pending.
	Transition(ctx context.Context, id uuid.UUID, status string) (*Appointment, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, status string, limit, offset int) ([]*Appointment, int, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// CancelPastPending cancels pending appointments dated before cutoff.
	CancelPastPending(ctx context.Context, cutoff time.Time) (int64, error)
}
