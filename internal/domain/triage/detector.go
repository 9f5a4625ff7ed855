package triage

import "strings"

// ConsultationMarker is the prefix the assistant uses to ask for a doctor.
const ConsultationMarker = "CONSULTATION_REQUESTED"

var defaultTriggerPhrases = []string{
	"i want a doctor",
	"need a doctor",
	"see a doctor",
}

var finalReportPhrases = []string{
	"final report",
	"consultation complete",
}

// Detector decides when a conversation should offer a doctor consultation.
// Matching is a case-insensitive substring test.
type Detector struct {
	phrases []string
}

// NewDetector returns a detector using the built-in phrases plus extra.
func NewDetector(extra ...string) *Detector {
	d := &Detector{phrases: append([]string(nil), defaultTriggerPhrases...)}
	for _, p := range extra {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			d.phrases = append(d.phrases, p)
		}
	}
	return d
}

func (d *Detector) Triggered(text string) bool {
	return containsAny(strings.ToLower(text), d.phrases)
}

// StripMarker removes a leading ConsultationMarker from reply. ok reports
// whether the marker was present.
func StripMarker(reply string) (clean string, ok bool) {
	trimmed := strings.TrimLeft(reply, " \t\r\n")
	if len(trimmed) < len(ConsultationMarker) || !strings.EqualFold(trimmed[:len(ConsultationMarker)], ConsultationMarker) {
		return reply, false
	}
	return strings.TrimSpace(trimmed[len(ConsultationMarker):]), true
}

// IsFinalReport reports whether reply closes the consultation.
func IsFinalReport(reply string) bool {
	return containsAny(strings.ToLower(reply), finalReportPhrases)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
