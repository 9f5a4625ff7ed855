package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/domain/reports"
	"github.com/carebridge/carebridge/internal/platform/completion"
	"github.com/carebridge/carebridge/internal/platform/db"
)

const quickReliefPreamble = `You are a medical assistant focused on providing safe, non-prescription remedies and home treatments. Your role is to:

1. Provide ONLY non-prescription remedies and home treatments
2. Focus on immediate relief suggestions using common household items
3. NEVER recommend prescription medications
4. Always include lifestyle and preventive advice
5. Clearly state when professional medical attention is needed
6. Provide evidence-based natural remedies when applicable
7. Include preparation instructions for home remedies
8. Emphasize safety precautions and potential allergens
9. You are only here to provide quick remedies, not to diagnose.

Important rules:
- Do not ask follow up questions; provide remedies straight away
- Only answer questions about minor ailments and symptoms
- Always recommend seeking medical attention for serious conditions
- Never diagnose conditions
- Never recommend supplements without mentioning potential risks
- Always mention when a condition requires professional medical evaluation
- Keep responses focused on immediate relief and home care
- Include clear warnings about when to seek emergency care`

// QuickReliefGreeting opens the quick-relief assistant on the client.
const QuickReliefGreeting = "Hello! I can help you find quick relief for minor health issues using safe, non-prescription remedies and home treatments. What symptoms are you experiencing?"

var ErrInvalidTranscript = errors.New("transcript may only contain user and assistant turns")

// Completer continues a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []completion.Message) (string, error)
}

// ReportSubmitter files a consultation request for doctor review.
type ReportSubmitter interface {
	SubmitReport(ctx context.Context, patientID uuid.UUID, content string, transcript []completion.Message) (*reports.SymptomReport, error)
}

// CompletionError carries the provider failure together with the session
// as persisted, which still holds the user's turn.
type CompletionError struct {
	Session *Session
	Err     error
}

func (e *CompletionError) Error() string { return "completion failed: " + e.Err.Error() }
func (e *CompletionError) Unwrap() error { return e.Err }

type Service struct {
	sessions  SessionRepository
	completer Completer
	reports   ReportSubmitter
	detector  *Detector
	tx        db.Transactor
	logger    zerolog.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

func NewService(sessions SessionRepository, completer Completer, reports ReportSubmitter, detector *Detector, tx db.Transactor, logger zerolog.Logger) *Service {
	if detector == nil {
		detector = NewDetector()
	}
	return &Service{
		sessions:  sessions,
		completer: completer,
		reports:   reports,
		detector:  detector,
		tx:        tx,
		logger:    logger,
		inflight:  make(map[uuid.UUID]struct{}),
	}
}

// acquire marks a session as having a send outstanding.
func (s *Service) acquire(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Service) release(id uuid.UUID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// StartSession returns an unsaved conversation holding only the greeting.
// It is stored by the first Send.
func (s *Service) StartSession(userID uuid.UUID) *Session {
	conv := NewConversation(s.detector)
	return &Session{UserID: userID, Messages: conv.Messages()}
}

func (s *Service) load(ctx context.Context, id, userID uuid.UUID) (*Session, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Send appends text to the session (a new one when sessionID is uuid.Nil),
// asks the completion provider for a reply and stores the result. On a
// provider failure the user's turn is still stored and a *CompletionError
// is returned.
func (s *Service) Send(ctx context.Context, userID, sessionID uuid.UUID, text string) (*Session, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	sess := s.StartSession(userID)
	if sessionID != uuid.Nil {
		if !s.acquire(sessionID) {
			return nil, ErrAwaitingResponse
		}
		defer s.release(sessionID)

		var err error
		if sess, err = s.load(ctx, sessionID, userID); err != nil {
			return nil, err
		}
	}

	conv := ResumeConversation(s.detector, sess.Messages, sess.EscalationAvailable, sess.FinalReport)
	if err := conv.Begin(text); err != nil {
		return nil, err
	}

	reply, callErr := s.completer.Complete(ctx, conv.Prompt())
	if callErr != nil {
		conv.Fail()
	} else {
		conv.Complete(reply)
	}

	sess.Messages = conv.Messages()
	sess.EscalationAvailable = conv.EscalationAvailable()
	sess.FinalReport = conv.FinalReport()
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	if callErr != nil {
		s.logger.Warn().Err(callErr).Str("session_id", sess.ID.String()).Msg("symptom check completion failed")
		return sess, &CompletionError{Session: sess, Err: callErr}
	}
	return sess, nil
}

func (s *Service) save(ctx context.Context, sess *Session) error {
	if sess.ID == uuid.Nil {
		if err := s.sessions.Create(ctx, sess); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	}
	if err := s.sessions.Update(ctx, sess); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// RequestConsultation files the session as a symptom report for doctor
// review. It fails with ErrEscalationUnavailable unless the conversation
// has offered a consultation.
func (s *Service) RequestConsultation(ctx context.Context, userID, sessionID uuid.UUID) (*reports.SymptomReport, error) {
	if !s.acquire(sessionID) {
		return nil, ErrAwaitingResponse
	}
	defer s.release(sessionID)

	sess, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	conv := ResumeConversation(s.detector, sess.Messages, sess.EscalationAvailable, sess.FinalReport)
	draft, err := conv.RequestConsultation()
	if err != nil {
		return nil, err
	}

	// The report and the cleared flag commit together, so a session can
	// never file the same consultation twice.
	var rep *reports.SymptomReport
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		filed, err := s.reports.SubmitReport(ctx, userID, draft.ReportContent, draft.Transcript)
		if err != nil {
			return err
		}
		sess.EscalationAvailable = conv.EscalationAvailable()
		if err := s.sessions.Update(ctx, sess); err != nil {
			return fmt.Errorf("clear escalation flag: %w", err)
		}
		rep = filed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (s *Service) ListSessions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	return s.sessions.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*Session, error) {
	return s.load(ctx, sessionID, userID)
}

// DeleteSession removes one of the caller's own sessions.
func (s *Service) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	return s.sessions.Delete(ctx, sessionID, userID)
}

// QuickRelief runs one stateless turn of the home-remedy assistant. Nothing
// is stored and no consultation is offered.
func (s *Service) QuickRelief(ctx context.Context, in QuickReliefInput) (*QuickReliefResult, error) {
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	transcript := make([]completion.Message, 0, len(in.Transcript)+2)
	for _, m := range in.Transcript {
		if m.Role != completion.RoleUser && m.Role != completion.RoleAssistant {
			return nil, ErrInvalidTranscript
		}
		transcript = append(transcript, m)
	}
	transcript = append(transcript, completion.Message{Role: completion.RoleUser, Content: text})

	prompt := append([]completion.Message{{Role: completion.RoleSystem, Content: quickReliefPreamble}}, transcript...)
	reply, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	transcript = append(transcript, completion.Message{Role: completion.RoleAssistant, Content: reply})
	return &QuickReliefResult{Reply: reply, Transcript: transcript}, nil
}
