package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotMember  = errors.New("caller is not part of this conversation")
	ErrNoCareLink = errors.New("doctor and patient are not linked")
)

// LinkChecker reports whether a doctor currently cares for a patient.
type LinkChecker interface {
	IsActiveLink(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}

type Service struct {
	messages MessageRepository
	links    LinkChecker
}

func NewService(messages MessageRepository, links LinkChecker) *Service {
	return &Service{messages: messages, links: links}
}

func (s *Service) requireLink(ctx context.Context, doctorID, patientID uuid.UUID) error {
	ok, err := s.links.IsActiveLink(ctx, doctorID, patientID)
	if err != nil {
		return fmt.Errorf("check care link: %w", err)
	}
	if !ok {
		return ErrNoCareLink
	}
	return nil
}

// Post appends a message from senderID to the doctor/patient conversation.
func (s *Service) Post(ctx context.Context, senderID, doctorID, patientID uuid.UUID, content string) (*ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message must not be empty", ErrValidation)
	}
	if senderID != doctorID && senderID != patientID {
		return nil, ErrNotMember
	}
	if err := s.requireLink(ctx, doctorID, patientID); err != nil {
		return nil, err
	}

	m := &ChatMessage{
		DoctorID:  doctorID,
		PatientID: patientID,
		SenderID:  senderID,
		Content:   content,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

// History returns the conversation oldest first.
func (s *Service) History(ctx context.Context, requesterID, doctorID, patientID uuid.UUID, limit, offset int) ([]*ChatMessage, int, error) {
	if requesterID != doctorID && requesterID != patientID {
		return nil, 0, ErrNotMember
	}
	return s.messages.ListByPair(ctx, doctorID, patientID, limit, offset)
}
