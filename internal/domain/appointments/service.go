package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/domain/messaging"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("appointment belongs to someone else")
	ErrNoCareLink = errors.New("doctor and patient are not linked")
)

const announceLayout = "Mon, 02 Jan 2006 15:04 MST"

// LinkChecker reports whether a doctor currently cares for a patient.
type LinkChecker interface {
	IsActiveLink(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}

// MessagePoster writes into the doctor/patient chat.
type MessagePoster interface {
	Post(ctx context.Context, senderID, doctorID, patientID uuid.UUID, content string) (*messaging.ChatMessage, error)
}

type Service struct {
	appts  AppointmentRepository
	links  LinkChecker
	chat   MessagePoster
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(appts AppointmentRepository, links LinkChecker, chat MessagePoster, logger zerolog.Logger) *Service {
	return &Service{appts: appts, links: links, chat: chat, logger: logger, now: time.Now}
}

// Announcement is the chat line posted when an appointment is requested.
func Announcement(date time.Time) string {
	return "Appointment requested for " + date.UTC().Format(announceLayout)
}

// Request books a pending appointment with one of the patient's doctors and
// announces it in their chat. A failed announcement is logged and does not
// undo the booking.
func (s *Service) Request(ctx context.Context, patientID uuid.UUID, in RequestInput) (*Appointment, error) {
	if in.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor_id is required", ErrValidation)
	}
	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrValidation)
	}
	if !in.Date.After(s.now()) {
		return nil, fmt.Errorf("%w: appointment date must be in the future", ErrValidation)
	}

	ok, err := s.links.IsActiveLink(ctx, in.DoctorID, patientID)
	if err != nil {
		return nil, fmt.Errorf("check care link: %w", err)
	}
	if !ok {
		return nil, ErrNoCareLink
	}

	a := &Appointment{
		DoctorID:  in.DoctorID,
		PatientID: patientID,
		Date:      in.Date,
		Notes:     strings.TrimSpace(in.Notes),
		Status:    StatusPending,
	}
	if err := s.appts.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	if _, err := s.chat.Post(ctx, patientID, a.DoctorID, patientID, Announcement(a.Date)); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("announce appointment request")
	}
	return a, nil
}

// Respond accepts or rejects a pending appointment addressed to doctorID.
func (s *Service) Respond(ctx context.Context, doctorID, id uuid.UUID, status string) (*Appointment, error) {
	if status != StatusAccepted && status != StatusRejected {
		return nil, fmt.Errorf("%w: status must be accepted or rejected", ErrValidation)
	}
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.DoctorID != doctorID {
		return nil, ErrForbidden
	}
	return s.appts.Transition(ctx, id, status)
}

// Cancel withdraws a pending appointment the patient requested.
func (s *Service) Cancel(ctx context.Context, patientID, id uuid.UUID) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.PatientID != patientID {
		return nil, ErrForbidden
	}
	return s.appts.Transition(ctx, id, StatusCancelled)
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID, status string, limit, offset int) ([]*Appointment, int, error) {
	switch status {
	case "", StatusPending, StatusAccepted, StatusRejected, StatusCancelled:
	default:
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.appts.ListForDoctor(ctx, doctorID, status, limit, offset)
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.ListForPatient(ctx, patientID, doctorID, limit, offset)
}

// ExpireStale cancels pending appointments whose date has passed.
func (s *Service) ExpireStale(ctx context.Context) error {
	n, err := s.appts.CancelPastPending(ctx, s.now())
	if err != nil {
		return fmt.Errorf("expire stale appointments: %w", err)
	}
	if n > 0 {
		s.logger.Info().Int64("count", n).Msg("cancelled stale appointment requests")
	}
	return nil
}
