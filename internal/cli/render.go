package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/retailsight/internal/application/controller"
	"github.com/bryanwahyu/retailsight/internal/domain/findings"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	mutedColor   = color.New(color.FgHiBlack)
)

// emit writes v as json or yaml. It reports false for the human format so
// the caller renders its own view.
func emit(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		out, err := yaml.Marshal(v)
		if err != nil {
			return true, err
		}
		_, err = w.Write(out)
		return true, err
	}
	return false, nil
}

func printSuccess(w io.Writer, msg string) {
	successColor.Fprintf(w, "✓ %s\n", msg)
}

func printError(w io.Writer, msg string) {
	errorColor.Fprintf(w, "✗ %s\n", msg)
}

func severityColor(s findings.Severity) *color.Color {
	switch s {
	case findings.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case findings.SeverityHigh:
		return color.New(color.FgRed)
	case findings.SeverityMedium, findings.SeverityWarning:
		return color.New(color.FgYellow)
	case findings.SeverityLow:
		return color.New(color.FgBlue)
	}
	return color.New(color.FgWhite)
}

func renderSnapshot(w io.Writer, snap controller.Snapshot) {
	fmt.Fprintln(w)
	headerColor.Fprintf(w, "%s\n", strings.ToUpper(snap.Title))
	if snap.Report == nil {
		mutedColor.Fprintf(w, "no report (%s)\n", snap.State)
		return
	}
	sum := snap.Report.Summary
	if sum.Score != nil {
		fmt.Fprintf(w, "Score: %d/100 (%s)\n", sum.Score.Value, sum.Score.Source)
	}
	if sum.Status != "" {
		fmt.Fprintf(w, "Status: %s\n", sum.Status)
	}
	if sum.Campaign != "" {
		fmt.Fprintf(w, "Campaign: %s\n", sum.Campaign)
	}
	for name, v := range sum.Metrics {
		fmt.Fprintf(w, "%s: %d\n", name, v)
	}
	if len(sum.Highlights) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "Highlights")
		for _, h := range sum.Highlights {
			fmt.Fprintf(w, "  • %s\n", h)
		}
	}
	if sum.Note != "" {
		mutedColor.Fprintf(w, "%s\n", sum.Note)
	}

	fmt.Fprintln(w)
	headerColor.Fprintln(w, "Report")
	fmt.Fprintln(w, strings.TrimSpace(snap.Report.Text))

	if len(snap.Findings) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintf(w, "Findings (%d active)\n", snap.Active)
		for _, f := range snap.Findings {
			sev := severityColor(f.Severity)
			sev.Fprintf(w, "  [%s] ", strings.ToUpper(string(f.Severity)))
			fmt.Fprintf(w, "%s: %s", f.Category, f.Description)
			if f.Location != "" {
				mutedColor.Fprintf(w, " (%s)", f.Location)
			}
			fmt.Fprintln(w)
		}
	}
	if snap.Report.Model != "" {
		fmt.Fprintln(w)
		mutedColor.Fprintf(w, "model %s, %d tokens\n", snap.Report.Model, snap.Report.Usage.TotalTokens)
	}
}
