package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/platform/completion"
	"github.com/carebridge/carebridge/internal/platform/db"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("report belongs to another doctor")
)

type Service struct {
	reports ReportRepository
	links   LinkRepository
	tx      db.Transactor
}

func NewService(reports ReportRepository, links LinkRepository, tx db.Transactor) *Service {
	return &Service{reports: reports, links: links, tx: tx}
}

// SubmitReport files a consultation request for doctor review.
func (s *Service) SubmitReport(ctx context.Context, patientID uuid.UUID, content string, transcript []completion.Message) (*SymptomReport, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient is required", ErrValidation)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: report content is required", ErrValidation)
	}
	if len(transcript) == 0 {
		return nil, fmt.Errorf("%w: transcript is required", ErrValidation)
	}
	rep := &SymptomReport{
		PatientID:     patientID,
		ReportContent: content,
		ChatHistory:   transcript,
		Status:        StatusPendingReview,
	}
	if err := s.reports.Create(ctx, rep); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return rep, nil
}

// ListPending returns the shared intake queue. Every doctor sees every
// unassigned report.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*SymptomReport, int, error) {
	return s.reports.ListPending(ctx, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status string, limit, offset int) ([]*SymptomReport, int, error) {
	if status == "" {
		status = StatusAccepted
	}
	if status != StatusAccepted && status != StatusRejected {
		return nil, 0, fmt.Errorf("%w: status must be accepted or rejected", ErrValidation)
	}
	return s.reports.ListByDoctor(ctx, doctorID, status, limit, offset)
}

// Get returns a report visible to doctorID: pending ones, or ones the doctor
// reviewed.
func (s *Service) Get(ctx context.Context, id, doctorID uuid.UUID) (*SymptomReport, error) {
	rep, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.DoctorID != nil && *rep.DoctorID != doctorID {
		return nil, ErrForbidden
	}
	return rep, nil
}

// Accept assigns the report to doctorID and activates the care link in one
// transaction. Of several concurrent accepts exactly one succeeds; the rest
// get ErrAlreadyReviewed.
func (s *Service) Accept(ctx context.Context, id, doctorID uuid.UUID) (*SymptomReport, error) {
	var accepted *SymptomReport
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		rep, err := s.reports.Review(ctx, id, doctorID, StatusAccepted)
		if err != nil {
			return err
		}
		if _, err := s.links.Activate(ctx, doctorID, rep.PatientID); err != nil {
			return fmt.Errorf("activate care link: %w", err)
		}
		accepted = rep
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// Reject closes a pending report without creating a care link.
func (s *Service) Reject(ctx context.Context, id, doctorID uuid.UUID) (*SymptomReport, error) {
	return s.reports.Review(ctx, id, doctorID, StatusRejected)
}

func (s *Service) ListActivePatients(ctx context.Context, doctorID uuid.UUID) ([]*CareContact, error) {
	return s.links.ListPatients(ctx, doctorID)
}

func (s *Service) ListActiveDoctors(ctx context.Context, patientID uuid.UUID) ([]*CareContact, error) {
	return s.links.ListDoctors(ctx, patientID)
}

// IsActiveLink reports whether doctorID currently cares for patientID.
func (s *Service) IsActiveLink(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	return s.links.IsActive(ctx, doctorID, patientID)
}

// RenderPDF returns a printable copy of a report visible to doctorID.
func (s *Service) RenderPDF(ctx context.Context, id, doctorID uuid.UUID) ([]byte, error) {
	rep, err := s.Get(ctx, id, doctorID)
	if err != nil {
		return nil, err
	}
	return renderPDF(rep)
}
