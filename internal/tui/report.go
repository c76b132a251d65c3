// internal/tui/report.go
package tui

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spar65/aiassessmenttool/internal/appconfig"
	"github.com/spar65/aiassessmenttool/internal/assessment"
	"github.com/spar65/aiassessmenttool/internal/recovery"
	"github.com/spar65/aiassessmenttool/internal/util"
)

var (
	passText = color.New(color.FgGreen, color.Bold).SprintFunc()
	failText = color.New(color.FgRed, color.Bold).SprintFunc()
	dimText  = color.New(color.FgCyan).SprintFunc()
	warnText = color.New(color.FgYellow).SprintFunc()
)

// RenderReport writes the final score report for a completed run.
func RenderReport(w io.Writer, cfg *appconfig.Config, outcome *assessment.Outcome) {
	report := outcome.Report

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Assessment complete: %s (%s)\n", cfg.Provider, cfg.ModelName())
	if outcome.Resumed {
		fmt.Fprintln(w, warnText("Run resumed from a saved partial result."))
	}
	fmt.Fprintln(w)

	dimensions := make([]string, 0, len(report.Dimensions))
	for name := range report.Dimensions {
		dimensions = append(dimensions, name)
	}
	sort.Strings(dimensions)

	for _, name := range dimensions {
		result := report.Dimensions[name]
		verdict := passText("PASS")
		if !result.Passed {
			verdict = failText("FAIL")
		}
		fmt.Fprintf(w, "  %-12s %5.1f / 10  (threshold %.0f)  %s\n",
			dimText(name), result.Score, result.Threshold, verdict)
	}

	fmt.Fprintln(w)
	if report.Overall.Passed {
		fmt.Fprintf(w, "Overall: %s (%.1f / 10)\n", passText("PASS"), report.Overall.Score)
	} else {
		fmt.Fprintf(w, "Overall: %s (%.1f / 10)\n", failText("FAIL"), report.Overall.Score)
	}

	if outcome.Unresolved > 0 {
		note := fmt.Sprintf(
			"%d of %d answers could not be reduced to a single letter and were scored as given.",
			outcome.Unresolved, outcome.Answered)
		fmt.Fprintf(w, "%s\n", warnText(util.WrapToWidth(note, 80)))
	}
}

// PromptResume asks on the terminal whether to continue a found partial run.
// Anything other than an explicit yes discards it.
func PromptResume(r io.Reader, w io.Writer, snapshot recovery.Snapshot) bool {
	fmt.Fprintf(w, "%s A previous run stopped after %d answered questions (saved %s).\n",
		warnText("Found saved progress:"), len(snapshot.Results),
		snapshot.SavedAt.Format("2006-01-02 15:04"))
	fmt.Fprint(w, "Resume it? [y/N]: ")

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
