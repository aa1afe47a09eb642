// Package observability renders pipeline progress, run summaries and learning reports for the
// command line.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/jonathan/talent-sourcer/internal/learning"
	"github.com/jonathan/talent-sourcer/internal/pipeline"
	"github.com/jonathan/talent-sourcer/internal/routing"
	"github.com/jonathan/talent-sourcer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// maxSimulationRows bounds the rows of a simulation table
	maxSimulationRows = 10
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
	dimColor     = color.New(color.FgHiBlack)
)

// Printer writes human-readable reports.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", titleColor.Sprint(fmt.Sprintf("%-*s", boxWidth-4, truncate(title, boxWidth-4))))
	fmt.Fprintf(p.out, "├%s┤\n", border)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintProgress prints one pipeline progress event.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(ev pipeline.ProgressEvent) {
	if ev.Content != "" {
		fmt.Fprintf(p.out, "  %s\n", dimColor.Sprint(ev.Content))
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", warnColor.Sprint("▸"), ev.Message)
}

// PrintRunSummary outputs the result of a sourcing run.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintRunSummary(s *pipeline.Summary) {
	if s == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:        %s\n", s.RunID))
	sb.WriteString(fmt.Sprintf("Job:        %s\n", s.JobID))
	topics := strings.Join(s.Topics, ", ")
	switch {
	case s.StubTopics && topics != "":
		topics += " (stub)"
	case s.StubTopics:
		topics = "(stub)"
	case topics == "":
		topics = "none"
	}
	sb.WriteString(fmt.Sprintf("Topics:     %s\n", topics))
	sb.WriteString(fmt.Sprintf("Discovered: %d  Verified: %d  Scored: %d\n", s.Discovered, s.Verified, s.Scored))
	sb.WriteString("\n")

	sb.WriteString("Routing:\n")
	for _, stage := range routing.AllStages() {
		sb.WriteString(fmt.Sprintf("  %-10s %d\n", stage, s.Buckets[stage]))
	}

	if len(s.Candidates) > 0 {
		sb.WriteString("\nCandidates:\n")
		count := min(len(s.Candidates), maxItemsToShow)
		for _, c := range s.Candidates[:count] {
			sb.WriteString(fmt.Sprintf("  @%-14s %5.1f %-9s -> %s\n", truncate(c.Handle, 14), c.Score, c.ScoreSource, c.Stage))
		}
		if len(s.Candidates) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(s.Candidates)-maxItemsToShow))
		}
	}

	p.printBox("SOURCING RUN", strings.TrimSuffix(sb.String(), "\n"))

	if s.Status == types.RunStatusFailed {
		fmt.Fprintln(p.out, failColor.Sprintf("❌ Run failed: %s", s.Error))
		return
	}
	fmt.Fprintln(p.out, successColor.Sprintf("✅ Run %s", s.Status))
}

func formatThresholds(t routing.Thresholds) string {
	return fmt.Sprintf("reject %.1f  takehome %.1f  interview %.1f  fasttrack %.1f",
		t.Reject, t.Takehome, t.Interview, t.Fasttrack)
}

// PrintMetrics outputs an agent's learning report.
func (p *Printer) PrintMetrics(m *learning.Metrics) {
	if m == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Version:  %d\n", m.Version))
	sb.WriteString(fmt.Sprintf("Accuracy: %.1f%% (%d/%d)\n", m.Accuracy*100, m.CorrectPredictions, m.TotalPredictions))
	t := m.CurrentThresholds
	sb.WriteString("Thresholds:\n")
	sb.WriteString(fmt.Sprintf("  reject %.1f  takehome %.1f\n", t.Reject, t.Takehome))
	sb.WriteString(fmt.Sprintf("  interview %.1f  fasttrack %.1f\n", t.Interview, t.Fasttrack))

	if len(m.StagePrecision) > 0 {
		sb.WriteString("\nPrecision by stage:\n")
		for _, stage := range learning.SortedStages(m.StagePrecision) {
			sp := m.StagePrecision[stage]
			sb.WriteString(fmt.Sprintf("  %-10s %5.1f%% (n=%d)\n", stage, sp.Precision*100, sp.Count))
		}
	}

	r := m.RecentOutcomes
	sb.WriteString(fmt.Sprintf("\nLast %d days:\n", m.Days))
	sb.WriteString(fmt.Sprintf("  Outcomes: %d  Hired: %d  Hire rate: %.1f%%\n", r.Total, r.Hired, r.HireRate*100))
	if r.AvgPerformance > 0 {
		sb.WriteString(fmt.Sprintf("  Avg rating: %.2f\n", r.AvgPerformance))
	}

	p.printBox("LEARNING METRICS: "+m.AgentName, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSimulation outputs a sample of simulation iterations and the final state.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintSimulation(points []learning.SimulationPoint) {
	if len(points) == 0 {
		return
	}

	step := max(len(points)/maxSimulationRows, 1)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-6s %-9s %-6s %-6s %-6s %-6s\n", "iter", "accuracy", "rej", "take", "int", "fast"))
	for i := step - 1; i < len(points); i += step {
		pt := points[i]
		sb.WriteString(fmt.Sprintf("%-6d %-9s %-6.1f %-6.1f %-6.1f %-6.1f\n", pt.Iteration,
			fmt.Sprintf("%.1f%%", pt.Accuracy*100),
			pt.Thresholds.Reject, pt.Thresholds.Takehome, pt.Thresholds.Interview, pt.Thresholds.Fasttrack))
	}

	p.printBox(fmt.Sprintf("THRESHOLD SIMULATION (%d iterations)", len(points)), strings.TrimSuffix(sb.String(), "\n"))

	last := points[len(points)-1]
	fmt.Fprintln(p.out, successColor.Sprintf("Final accuracy %.1f%%: %s", last.Accuracy*100, formatThresholds(last.Thresholds)))
}

// PrintTeamMatches outputs a candidate's team matches, best first as stored.
func (p *Printer) PrintTeamMatches(candidate string, matches []types.TeamMatch) {
	if len(matches) == 0 {
		return
	}

	var sb strings.Builder
	for i, m := range matches {
		sb.WriteString(fmt.Sprintf("%s\n", m.TeamName))
		sb.WriteString(fmt.Sprintf("  final %.3f (similarity %.3f, reasoning %.3f)\n",
			m.FinalScore, m.SimilarityScore, m.ReasoningAdjustment))
		flags := []string{string(m.Recommendation)}
		if m.ManagerNotified {
			flags = append(flags, "✓notified")
		}
		if m.Status == types.MatchOffered {
			flags = append(flags, "✓offered")
		}
		sb.WriteString(fmt.Sprintf("  [%s]\n", strings.Join(flags, " ")))
		if i < len(matches)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("TEAM MATCHES: "+candidate, strings.TrimSuffix(sb.String(), "\n"))
}
