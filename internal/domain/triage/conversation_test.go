package triage

import (
	"errors"
	"testing"

	"github.com/carebridge/carebridge/internal/platform/completion"
)

func TestConversation_StartsWithGreeting(t *testing.T) {
	c := NewConversation(NewDetector())
	msgs := c.Messages()
	if len(msgs) != 1 || msgs[0].Role != completion.RoleAssistant || msgs[0].Content != Greeting {
		t.Fatalf("unexpected initial transcript %+v", msgs)
	}
	if c.State() != StateIdle {
		t.Errorf("expected idle, got %s", c.State())
	}
}

func TestConversation_OrdinaryTurn(t *testing.T) {
	c := NewConversation(NewDetector())
	if err := c.Begin("I have a headache and a fever for 2 days"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.State() != StateAwaitingResponse {
		t.Fatalf("expected awaiting, got %s", c.State())
	}
	c.Complete("Rest, drink fluids and monitor your temperature.")

	msgs := c.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected transcript to grow by 2, got %d turns", len(msgs))
	}
	if msgs[1].Role != completion.RoleUser || msgs[2].Role != completion.RoleAssistant {
		t.Errorf("expected user then assistant, got %s then %s", msgs[1].Role, msgs[2].Role)
	}
	if c.EscalationAvailable() {
		t.Error("escalation must stay off without a trigger")
	}
	if c.State() != StateIdle {
		t.Errorf("expected idle, got %s", c.State())
	}
}

func TestConversation_UserTriggerEscalates(t *testing.T) {
	c := NewConversation(NewDetector())
	if err := c.Begin("I think I need a doctor"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Complete("Could you describe your symptoms in more detail?")
	if !c.EscalationAvailable() {
		t.Fatal("expected escalation regardless of the reply")
	}
	if c.State() != StateShowEscalationPrompt {
		t.Errorf("expected escalation prompt, got %s", c.State())
	}
}

func TestConversation_MarkerEscalatesAndIsStripped(t *testing.T) {
	c := NewConversation(NewDetector())
	_ = c.Begin("crushing chest pain")
	c.Complete("CONSULTATION_REQUESTED This could be serious.")

	if !c.EscalationAvailable() {
		t.Fatal("expected marker to escalate")
	}
	last := c.Messages()[2]
	if last.Content != "This could be serious." {
		t.Errorf("expected marker stripped, got %q", last.Content)
	}
}

func TestConversation_AssistantPhraseEscalates(t *testing.T) {
	c := NewConversation(NewDetector())
	_ = c.Begin("my arm is numb")
	c.Complete("You should see a doctor soon.")
	if !c.EscalationAvailable() {
		t.Fatal("expected trigger phrase in reply to escalate")
	}
}

func TestConversation_FinalReport(t *testing.T) {
	c := NewConversation(NewDetector())
	_ = c.Begin("that's all")
	c.Complete("Final report: likely tension headache.")
	if c.FinalReport() == nil || *c.FinalReport() != "Final report: likely tension headache." {
		t.Errorf("expected final report kept, got %v", c.FinalReport())
	}
}

func TestConversation_Rejections(t *testing.T) {
	c := NewConversation(NewDetector())
	if err := c.Begin("   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	if len(c.Messages()) != 1 {
		t.Error("empty input must not change the transcript")
	}

	_ = c.Begin("first")
	if err := c.Begin("second"); !errors.Is(err, ErrAwaitingResponse) {
		t.Errorf("expected ErrAwaitingResponse, got %v", err)
	}
	if _, err := c.RequestConsultation(); !errors.Is(err, ErrAwaitingResponse) {
		t.Errorf("expected ErrAwaitingResponse, got %v", err)
	}
	if len(c.Messages()) != 2 {
		t.Errorf("expected one user turn, got %d messages", len(c.Messages()))
	}
}

func TestConversation_FailKeepsUserTurn(t *testing.T) {
	c := NewConversation(NewDetector())
	_ = c.Begin("I feel dizzy")
	c.Fail()

	msgs := c.Messages()
	if len(msgs) != 2 || msgs[1].Content != "I feel dizzy" {
		t.Fatalf("expected only the user turn appended, got %+v", msgs)
	}
	if c.State() != StateIdle {
		t.Errorf("expected idle after failure, got %s", c.State())
	}
	c.Complete("late reply")
	if len(c.Messages()) != 2 {
		t.Error("a reply after Fail must not be appended")
	}
}

func TestConversation_RequestConsultation(t *testing.T) {
	c := NewConversation(NewDetector())
	if _, err := c.RequestConsultation(); !errors.Is(err, ErrEscalationUnavailable) {
		t.Fatalf("expected ErrEscalationUnavailable, got %v", err)
	}

	_ = c.Begin("I need a doctor")
	c.Complete("A clinician should look at this rash.")
	d, err := c.RequestConsultation()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ReportContent != "A clinician should look at this rash." {
		t.Errorf("expected last assistant message, got %q", d.ReportContent)
	}
	if len(d.Transcript) != 3 {
		t.Errorf("expected full transcript, got %d turns", len(d.Transcript))
	}
	if c.EscalationAvailable() {
		t.Error("escalation must reset after a request")
	}
	if _, err := c.RequestConsultation(); !errors.Is(err, ErrEscalationUnavailable) {
		t.Errorf("second request must be refused, got %v", err)
	}
}

func TestConversation_PromptHasPreamble(t *testing.T) {
	c := NewConversation(NewDetector())
	_ = c.Begin("cough")
	p := c.Prompt()
	if p[0].Role != completion.RoleSystem {
		t.Fatalf("expected system preamble first, got %s", p[0].Role)
	}
	if len(p) != 3 {
		t.Errorf("expected preamble plus transcript, got %d", len(p))
	}
}
