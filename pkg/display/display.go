// Package display renders engine reports for the terminal. Styling is
// gated on stdout being a TTY and honors NO_COLOR; every render path
// degrades to plain text so output stays pipe-friendly.
package display

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/pterm/pterm"

	"github.com/arthur-debert/agentsync/pkg/installer"
	"github.com/arthur-debert/agentsync/pkg/ledger"
	"github.com/arthur-debert/agentsync/pkg/manifest"
	"github.com/arthur-debert/agentsync/pkg/orchestrator"
	"github.com/arthur-debert/agentsync/pkg/syncmod"
)

var (
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "42"})
	styleMissing = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "94", Dark: "220"})
	styleDrifted = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "130", Dark: "214"}).Bold(true)
	styleFailed  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "124", Dark: "196"}).Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "245", Dark: "243"})
	styleDiffAdd = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "42"})
	styleDiffDel = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "124", Dark: "203"})
)

// Renderer writes human-facing reports.
type Renderer struct {
	w     io.Writer
	color bool
}

// NewRenderer builds a renderer for w. Color is enabled only when w is
// a terminal and the environment does not disable it.
func NewRenderer(w io.Writer) *Renderer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) &&
			os.Getenv("NO_COLOR") == "" &&
			termenv.NewOutput(f).ColorProfile() != termenv.Ascii
	}
	return &Renderer{w: w, color: color}
}

func (r *Renderer) styled(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

func statusGlyph(status syncmod.Status) (string, lipgloss.Style) {
	switch status {
	case syncmod.StatusOK:
		return "✓", styleOK
	case syncmod.StatusMissing:
		return "○", styleMissing
	case syncmod.StatusDrifted:
		return "»", styleDrifted
	default:
		return "✗", styleFailed
	}
}

// CheckReport prints one line per step plus diffs for drifted steps.
func (r *Renderer) CheckReport(report orchestrator.Report, showDiffs bool) {
	for _, res := range report.Results {
		if res.Skipped {
			fmt.Fprintf(r.w, "  %s %s (%s)\n",
				r.styled(styleMuted, "-"), res.Step.Label, res.SkipReason)
			continue
		}

		glyph, style := statusGlyph(res.Check.Status)
		line := fmt.Sprintf("  %s %-20s %s", r.styled(style, glyph), res.Step.Label, res.Check.Status)
		if res.Check.Drift != "" && res.Check.Drift != ledger.DriftInSync {
			line += r.styled(styleMuted, fmt.Sprintf(" [%s]", res.Check.Drift))
		}
		if res.Check.Message != "" {
			line += r.styled(styleMuted, "  "+res.Check.Message)
		}
		fmt.Fprintln(r.w, line)

		if res.Check.Drift == ledger.DriftBothChanged {
			fmt.Fprintf(r.w, "    %s\n", r.styled(styleFailed,
				"both sides changed since last sync; resolve manually before applying"))
		}
		if showDiffs && res.Check.Diff != "" {
			r.diff(res.Check.Diff)
		}
	}
	r.summaryLine(report.Summary)
}

// ApplyReport prints apply outcomes including backup locations.
func (r *Renderer) ApplyReport(report orchestrator.Report) {
	for _, res := range report.Results {
		switch {
		case res.Skipped:
			fmt.Fprintf(r.w, "  %s %s (%s)\n",
				r.styled(styleMuted, "-"), res.Step.Label, res.SkipReason)
		case res.Apply == nil:
			glyph, style := statusGlyph(res.Check.Status)
			fmt.Fprintf(r.w, "  %s %s %s\n", r.styled(style, glyph), res.Step.Label, res.Check.Status)
		case res.Apply.Err != nil:
			fmt.Fprintf(r.w, "  %s %s: %v\n", r.styled(styleFailed, "✗"), res.Step.Label, res.Apply.Err)
		case res.Apply.Changed:
			line := fmt.Sprintf("  %s %s %s", r.styled(styleOK, "✓"), res.Step.Label, res.Apply.Message)
			if res.Apply.BackupPath != "" {
				line += r.styled(styleMuted, "  (backup: "+res.Apply.BackupPath+")")
			}
			fmt.Fprintln(r.w, line)
		default:
			fmt.Fprintf(r.w, "  %s %s %s\n",
				r.styled(styleOK, "✓"), res.Step.Label, r.styled(styleMuted, "unchanged"))
		}
	}
	r.summaryLine(report.Summary)
}

func (r *Renderer) diff(diff string) {
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		styled := line
		switch {
		case strings.HasPrefix(line, "+"):
			styled = r.styled(styleDiffAdd, line)
		case strings.HasPrefix(line, "-"):
			styled = r.styled(styleDiffDel, line)
		case strings.HasPrefix(line, "@@"):
			styled = r.styled(styleMuted, line)
		}
		fmt.Fprintf(r.w, "    %s\n", styled)
	}
}

func (r *Renderer) summaryLine(s orchestrator.Summary) {
	parts := []string{fmt.Sprintf("%d ok", s.OK)}
	if s.Missing > 0 {
		parts = append(parts, fmt.Sprintf("%d missing", s.Missing))
	}
	if s.Drifted > 0 {
		parts = append(parts, fmt.Sprintf("%d drifted", s.Drifted))
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if s.Changed > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", s.Changed))
	}
	fmt.Fprintf(r.w, "\n%s\n", strings.Join(parts, ", "))
}

// InstallReport prints per-instance install/uninstall results in stable
// instance order.
func (r *Renderer) InstallReport(report installer.Report, verb string) {
	keys := make([]manifest.InstanceKey, 0, len(report.PerInstance))
	for key := range report.PerInstance {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	for _, key := range keys {
		res := report.PerInstance[key]
		glyph, style := "✓", styleOK
		if !res.Success {
			glyph, style = "✗", styleFailed
		}
		fmt.Fprintf(r.w, "  %s %s: %d %s, %d skipped\n",
			r.styled(style, glyph), key, res.Installed+res.Removed, verb, res.Skipped)
		for _, msg := range res.Errors {
			fmt.Fprintf(r.w, "    %s\n", r.styled(styleFailed, msg))
		}
	}
}

// StatusTable prints the manifest contents for an instance as a table.
func (r *Renderer) StatusTable(instance manifest.InstanceKey, items map[manifest.ComponentKey]manifest.ManagedItem) {
	fmt.Fprintf(r.w, "%s\n", r.styled(styleDrifted, instance.String()))
	if len(items) == 0 {
		fmt.Fprintf(r.w, "  %s\n", r.styled(styleMuted, "nothing installed"))
		return
	}

	keys := make([]manifest.ComponentKey, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	rows := pterm.TableData{{"COMPONENT", "OWNER", "DEST"}}
	for _, key := range keys {
		rows = append(rows, []string{key.String(), items[key].Owner, items[key].Dest})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		for _, row := range rows[1:] {
			fmt.Fprintf(r.w, "  %s  %s  %s\n", row[0], row[1], row[2])
		}
		return
	}
	fmt.Fprintln(r.w, table)
}
