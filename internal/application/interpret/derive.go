package interpret

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

// ScoreSource tells how a score was obtained.
type ScoreSource string

const (
	// ScoreExplicit comes from the "SCORE: n" line the prompt asks for.
	ScoreExplicit ScoreSource = "explicit"
	// ScoreHeuristic is the first number that looks like a score.
	ScoreHeuristic ScoreSource = "heuristic"
)

// Score is a 0-100 value read from the report.
type Score struct {
	Value  int         `json:"value"`
	Source ScoreSource `json:"source"`
}

// Summary holds the values a view renders next to the report text.
type Summary struct {
	Kind  analysis.Kind `json:"kind"`
	Score *Score        `json:"score,omitempty"`

	Highlights []string `json:"highlights,omitempty"`
	// Defaulted is set when no bullet was found and canned highlights were used.
	Defaulted bool `json:"defaulted,omitempty"`

	Status   string         `json:"status,omitempty"`
	Campaign string         `json:"campaign,omitempty"`
	Metrics  map[string]int `json:"metrics,omitempty"`
	Note     string         `json:"note,omitempty"`
}

var (
	explicitScore = regexp.MustCompile(`(?im)^[\s*_#>]*score[\s*_]*:[\s*_]*(\d{1,3})\b`)
	outOfHundred  = regexp.MustCompile(`(\d+)\s*/\s*100`)
	percent       = regexp.MustCompile(`(\d+)%`)
	bulletPrefix  = regexp.MustCompile(`^(?:[-•]|\*\s|\d+[.)])\s*`)
	campaignLine  = regexp.MustCompile(`(?im)campaign\s*:\s*\**\s*([^\n*]+)`)
)

var legacyScore = map[analysis.Kind]*regexp.Regexp{
	analysis.KindShelfMonitoring:     outOfHundred,
	analysis.KindPricingAudit:        percent,
	analysis.KindPlanogramCompliance: percent,
	analysis.KindInventoryTracking:   percent,
}

var highlightLimit = map[analysis.Kind]int{
	analysis.KindPromoMonitoring: 5,
	analysis.KindCreativeAudit:   4,
}

var defaultHighlights = map[analysis.Kind][]string{
	analysis.KindPromoMonitoring: {"Branding clearly visible", "Stock levels adequate", "Signage correctly placed"},
	analysis.KindCreativeAudit:   {"Bold headline placement", "Increased color contrast", "Add CTA button"},
}

const suppressionNote = "Exclude existing premium loyalty members to minimize CPA."

// Derive computes the summary of a report. Like Interpret it never fails
// and never guesses: a score that cannot be read is left out.
func Derive(kind analysis.Kind, text string) Summary {
	s := Summary{Kind: kind}
	if strings.TrimSpace(text) == "" {
		return s
	}
	lower := strings.ToLower(text)
	s.Score = scoreOf(kind, text)

	if limit, ok := highlightLimit[kind]; ok {
		s.Highlights = bullets(text, limit)
		if len(s.Highlights) == 0 {
			s.Highlights = append([]string(nil), defaultHighlights[kind]...)
			s.Defaulted = true
		}
	}

	switch kind {
	case analysis.KindPromoMonitoring:
		s.Status = promoCompliance(lower)
		s.Campaign = "Detected Campaign"
		if m := campaignLine.FindStringSubmatch(text); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" {
				s.Campaign = name
			}
		}
	case analysis.KindCustomerBehaviour:
		s.Status = "Moderate"
		if containsAny(lower, "high", "busy") {
			s.Status = "High"
		}
	case analysis.KindCreativeAudit:
		s.Metrics = map[string]int{"roi": 65, "attention": 74}
		if strings.Contains(lower, "high") {
			s.Metrics["roi"] = 88
		}
		if strings.Contains(lower, "stopping") {
			s.Metrics["attention"] = 92
		}
		s.Note = suppressionNote
	}
	return s
}

func scoreOf(kind analysis.Kind, text string) *Score {
	if m := explicitScore.FindStringSubmatch(text); m != nil {
		if v, ok := inRange(m[1]); ok {
			return &Score{Value: v, Source: ScoreExplicit}
		}
	}
	re, ok := legacyScore[kind]
	if !ok {
		return nil
	}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if v, ok := inRange(m[1]); ok {
			return &Score{Value: v, Source: ScoreHeuristic}
		}
	}
	return nil
}

func inRange(digits string) (int, bool) {
	v, err := strconv.Atoi(digits)
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

func bullets(text string, limit int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		loc := bulletPrefix.FindStringIndex(line)
		if loc == nil {
			continue
		}
		item := strings.TrimSpace(line[loc[1]:])
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}

func promoCompliance(lower string) string {
	switch {
	case containsAny(lower, "incorrect", "misplaced", "missing"):
		return "Non-Compliant"
	case containsAny(lower, "partial", "almost", "improvement"):
		return "Partial"
	}
	return "Compliant"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
