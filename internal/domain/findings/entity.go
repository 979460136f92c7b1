package findings

import (
	"time"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

// Severity of a finding. Stock predictions reuse warning/stable.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Status is the user driven lifecycle of a finding.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInvestigating Status = "investigating"
	StatusDispatched    Status = "dispatched"
	StatusFalseAlarm    Status = "false_alarm"
	StatusResolved      Status = "resolved"
)

// SourceHeuristic marks findings produced by keyword presence. The
// description is canned, only the presence is driven by the model text.
const SourceHeuristic = "heuristic"

// Template is the canned part of a finding, attached to an interpreter rule.
type Template struct {
	Category    string            `json:"category"`
	Severity    Severity          `json:"severity"`
	Location    string            `json:"location,omitempty"`
	Subject     string            `json:"subject,omitempty"`
	Description string            `json:"description"`
	Confidence  int               `json:"confidence,omitempty"`
	Score       int               `json:"score,omitempty"`
	Status      Status            `json:"status,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Finding is a UI record derived from one analysis response.
type Finding struct {
	ID        string        `json:"id"`
	Kind      analysis.Kind `json:"kind"`
	Timestamp time.Time     `json:"timestamp"`
	// ReportID links the finding to the report text that produced it.
	ReportID string `json:"report_id,omitempty"`
	// Trigger is the keyword whose presence fired the rule.
	Trigger string `json:"trigger"`
	Source  string `json:"source"`
	Template
}

// FromTemplate builds an unstamped finding.
func FromTemplate(kind analysis.Kind, trigger string, t Template) Finding {
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if len(t.Attributes) > 0 {
		attrs := make(map[string]string, len(t.Attributes))
		for k, v := range t.Attributes {
			attrs[k] = v
		}
		t.Attributes = attrs
	}
	return Finding{Kind: kind, Trigger: trigger, Source: SourceHeuristic, Template: t}
}

// Stamp assigns identity, time and report link to freshly interpreted findings.
func Stamp(list []Finding, now time.Time, reportID string, newID func() string) []Finding {
	out := make([]Finding, len(list))
	for i, f := range list {
		f.ID = newID()
		f.Timestamp = now
		f.ReportID = reportID
		out[i] = f
	}
	return out
}

// Active reports whether the finding still needs attention.
func (f Finding) Active() bool {
	switch f.Status {
	case StatusResolved, StatusFalseAlarm:
		return false
	}
	return true
}
