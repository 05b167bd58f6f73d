package filter

import (
	"fmt"
	"strings"
)

// DiagnosticKind classifies an advisory message produced by the pipeline.
type DiagnosticKind string

const (
	KindMalformedRule  DiagnosticKind = "malformed-rule"
	KindInvalidPattern DiagnosticKind = "invalid-pattern"
	KindMissingUID     DiagnosticKind = "missing-uid"
	KindMissingDTStamp DiagnosticKind = "missing-dtstamp"
	KindRejected       DiagnosticKind = "rejected"
	KindDuplicate      DiagnosticKind = "duplicate"
)

// Diagnostic is a non-fatal message returned next to the pipeline result.
// Fields that do not apply are left at their zero value, except Calendar and
// Event which are -1 when the message is not tied to a calendar or event.
type Diagnostic struct {
	Kind     DiagnosticKind
	Calendar int
	Event    int
	Rule     string
	Field    string
	Message  string
}

// Warning reports whether d describes a problem with the input, as opposed
// to an event being filtered out on purpose.
func (d Diagnostic) Warning() bool {
	switch d.Kind {
	case KindRejected, KindDuplicate:
		return false
	default:
		return true
	}
}

// Attrs returns d as key/value pairs suitable for the structured logger.
func (d Diagnostic) Attrs() []any {
	kv := []any{"kind", string(d.Kind)}
	if d.Calendar >= 0 {
		kv = append(kv, "calendar", d.Calendar)
	}
	if d.Event >= 0 {
		kv = append(kv, "event", d.Event)
	}
	if d.Field != "" {
		kv = append(kv, "field", d.Field)
	}
	if d.Rule != "" {
		kv = append(kv, "rule", d.Rule)
	}
	return kv
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(string(d.Kind))
	if d.Calendar >= 0 {
		fmt.Fprintf(&b, " calendar=%d", d.Calendar)
	}
	if d.Event >= 0 {
		fmt.Fprintf(&b, " event=%d", d.Event)
	}
	if d.Message != "" {
		b.WriteString(": ")
		b.WriteString(d.Message)
	}
	return b.String()
}

func ruleDiagnostic(kind DiagnosticKind, rule, msg string) Diagnostic {
	return Diagnostic{Kind: kind, Calendar: -1, Event: -1, Rule: rule, Message: msg}
}
