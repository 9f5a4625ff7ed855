package triage

import (
	"errors"
	"strings"

	"github.com/carebridge/carebridge/internal/platform/completion"
)

var (
	ErrEmptyMessage          = errors.New("message must not be empty")
	ErrAwaitingResponse      = errors.New("a response is still pending for this conversation")
	ErrEscalationUnavailable = errors.New("consultation is not available for this conversation yet")
)

// Greeting opens every symptom-check conversation.
const Greeting = "Hello! I'm here to help analyze your symptoms. Please describe what you're experiencing."

const systemPreamble = `You are an AI medical assistant. Your role is to:
1. Help analyze symptoms and provide preliminary guidance
2. Use medical terminology appropriately
3. Always include disclaimers about the preliminary nature of AI analysis
4. Recommend professional medical consultation when appropriate
5. Focus on gathering relevant medical information
6. Provide clear, structured responses
7. Be empathetic and professional

Important notes:
- Maintain professional medical terminology
- Be clear about limitations of AI analysis
- Structure responses clearly
- Always recommend professional medical review for serious symptoms
- Never make definitive diagnoses
- If symptoms are severe or concerning, respond with "CONSULTATION_REQUESTED" at the start of your message`

type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
	StateShowEscalationPrompt
)

func (s State) String() string {
	switch s {
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateShowEscalationPrompt:
		return "show_escalation_prompt"
	default:
		return "idle"
	}
}

// Conversation is the symptom-check state machine. It performs no I/O:
// callers run Begin, send Prompt to the completion provider, then call
// Complete or Fail with the outcome.
type Conversation struct {
	detector    *Detector
	messages    []completion.Message
	awaiting    bool
	escalation  bool
	finalReport *string
}

// NewConversation starts a conversation seeded with the greeting.
func NewConversation(d *Detector) *Conversation {
	return &Conversation{
		detector: d,
		messages: []completion.Message{{Role: completion.RoleAssistant, Content: Greeting}},
	}
}

// ResumeConversation rebuilds an idle conversation from stored state.
func ResumeConversation(d *Detector, messages []completion.Message, escalation bool, finalReport *string) *Conversation {
	return &Conversation{
		detector:    d,
		messages:    append([]completion.Message(nil), messages...),
		escalation:  escalation,
		finalReport: finalReport,
	}
}

func (c *Conversation) State() State {
	switch {
	case c.awaiting:
		return StateAwaitingResponse
	case c.escalation:
		return StateShowEscalationPrompt
	default:
		return StateIdle
	}
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []completion.Message {
	return append([]completion.Message(nil), c.messages...)
}

func (c *Conversation) EscalationAvailable() bool { return c.escalation }

func (c *Conversation) FinalReport() *string { return c.finalReport }

// Begin appends the user's turn and waits for a reply. A trigger phrase in
// the user's own text makes a consultation available whatever the reply.
func (c *Conversation) Begin(text string) error {
	if c.awaiting {
		return ErrAwaitingResponse
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	c.messages = append(c.messages, completion.Message{Role: completion.RoleUser, Content: text})
	c.awaiting = true
	if c.detector.Triggered(text) {
		c.escalation = true
	}
	return nil
}

// Prompt is the completion input: the preamble followed by the transcript.
func (c *Conversation) Prompt() []completion.Message {
	out := make([]completion.Message, 0, len(c.messages)+1)
	out = append(out, completion.Message{Role: completion.RoleSystem, Content: systemPreamble})
	return append(out, c.messages...)
}

// Complete records the assistant's reply. Calling it while not awaiting a
// reply is a no-op so a late duplicate cannot append a second turn.
func (c *Conversation) Complete(reply string) {
	if !c.awaiting {
		return
	}
	c.awaiting = false

	clean, marked := StripMarker(reply)
	if marked || c.detector.Triggered(clean) {
		c.escalation = true
	}
	if IsFinalReport(reply) {
		r := reply
		c.finalReport = &r
	}
	c.messages = append(c.messages, completion.Message{Role: completion.RoleAssistant, Content: clean})
}

// Fail ends the wait without an assistant turn. The user's turn stays.
func (c *Conversation) Fail() {
	c.awaiting = false
}

// Draft is the payload of a consultation request.
type Draft struct {
	ReportContent string
	Transcript    []completion.Message
}

// RequestConsultation hands the conversation to a doctor. It is only
// allowed while escalation is available and resets it.
func (c *Conversation) RequestConsultation() (*Draft, error) {
	if c.awaiting {
		return nil, ErrAwaitingResponse
	}
	if !c.escalation {
		return nil, ErrEscalationUnavailable
	}
	d := &Draft{Transcript: c.Messages()}
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == completion.RoleAssistant {
			d.ReportContent = c.messages[i].Content
			break
		}
	}
	c.escalation = false
	return d, nil
}
