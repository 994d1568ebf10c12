package monitor

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})
	hardwareStyle = lipgloss.NewStyle().Bold(true)
	dimStyle      = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "2", Dark: "10"})
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "1", Dark: "9"})
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "240", Dark: "240"}).
			Padding(0, 1)
)

// statsLine renders the one-line totals.
func statsLine(s Snapshot) string {
	return fmt.Sprintf("%s runs  %s hardware  %s gitrefs  %s",
		countStyle.Render(fmt.Sprint(s.Stats.Runs)),
		countStyle.Render(fmt.Sprint(s.Stats.Hardware)),
		countStyle.Render(fmt.Sprint(s.Stats.Gitrefs)),
		dimStyle.Render(fmt.Sprintf("generation %d", s.Stats.Generation)))
}

// treeLines renders hardware rows and their gitrefs, one entry per line.
func treeLines(s Snapshot) []string {
	if len(s.Rows) == 0 {
		return []string{dimStyle.Render("no runs cached")}
	}
	var lines []string
	for _, row := range s.Rows {
		head := hardwareStyle.Render(row.ID)
		if row.CPU != "" {
			head += " " + dimStyle.Render(row.CPU)
		}
		lines = append(lines, head)
		for i, ref := range row.Gitrefs {
			branch := "├─"
			if i == len(row.Gitrefs)-1 {
				branch = "└─"
			}
			lines = append(lines, fmt.Sprintf("  %s %s %s", dimStyle.Render(branch), ref.Ref,
				countStyle.Render(fmt.Sprintf("(%d)", ref.Runs))))
		}
	}
	return lines
}

// RenderSummary writes a boxed summary of s to w.
func RenderSummary(w io.Writer, dir string, s Snapshot) error {
	body := titleStyle.Render("benchdash "+dir) + "\n" +
		statsLine(s) + "\n\n" +
		strings.Join(treeLines(s), "\n")
	_, err := fmt.Fprintln(w, boxStyle.Render(body))
	return err
}
