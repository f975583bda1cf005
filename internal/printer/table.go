package printer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"bruna/kernel"
)

var (
	colorHeader  = lipgloss.Color("#89b4fa")
	colorRunning = lipgloss.Color("#a6e3a1")
	colorReady   = lipgloss.Color("#f9e2af")
	colorWaiting = lipgloss.Color("#fab387")
	colorMuted   = lipgloss.Color("#7f849c")
)

var psColumns = []struct {
	title string
	width int
}{
	{"PID", 6},
	{"NAME", 12},
	{"STATE", 12},
	{"TID", 6},
	{"THREAD", 12},
	{"READY", 6},
	{"WAKE", 8},
}

// ProcessRow is one process of the ps table with an optional display name.
type ProcessRow struct {
	Info kernel.ProcessInfo
	Name string
}

func processColor(s kernel.ProcessState) lipgloss.Color {
	switch s {
	case kernel.ProcessRunning:
		return colorRunning
	case kernel.ProcessReady:
		return colorReady
	case kernel.ProcessWaiting:
		return colorWaiting
	default:
		return colorMuted
	}
}

func threadColor(s kernel.ThreadState) lipgloss.Color {
	switch s {
	case kernel.ThreadRunning:
		return colorRunning
	case kernel.ThreadReady:
		return colorReady
	case kernel.ThreadBlocked:
		return colorWaiting
	default:
		return colorMuted
	}
}

func cell(s string, width int, c lipgloss.TerminalColor) string {
	return lipgloss.NewStyle().Width(width).Foreground(c).Render(s)
}

// ProcessTable renders processes and their threads, one thread per line.
// Processes without threads get a single line.
func ProcessTable(bootID string, rows []ProcessRow) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("boot " + bootID))
	b.WriteByte('\n')

	header := make([]string, len(psColumns))
	for i, col := range psColumns {
		header[i] = lipgloss.NewStyle().Width(col.width).Bold(true).Foreground(colorHeader).Render(col.title)
	}
	b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, header...), " "))
	b.WriteByte('\n')

	for _, row := range rows {
		p := row.Info
		lead := []string{
			cell(fmt.Sprint(p.ID), psColumns[0].width, lipgloss.NoColor{}),
			cell(row.Name, psColumns[1].width, lipgloss.NoColor{}),
			cell(p.State.String(), psColumns[2].width, processColor(p.State)),
		}
		if len(p.Threads) == 0 {
			line := append(lead, cell("-", psColumns[3].width, colorMuted))
			b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, line...), " "))
			b.WriteByte('\n')
			continue
		}
		for i, th := range p.Threads {
			if i > 0 {
				lead = []string{
					cell("", psColumns[0].width, colorMuted),
					cell("", psColumns[1].width, colorMuted),
					cell("", psColumns[2].width, colorMuted),
				}
			}
			ready := "no"
			if th.Ready {
				ready = "yes"
			}
			wake := "-"
			if th.WakeAt > 0 {
				wake = fmt.Sprint(th.WakeAt)
			}
			line := append(lead,
				cell(fmt.Sprint(th.ID), psColumns[3].width, lipgloss.NoColor{}),
				cell(th.State.String(), psColumns[4].width, threadColor(th.State)),
				cell(ready, psColumns[5].width, lipgloss.NoColor{}),
				cell(wake, psColumns[6].width, colorMuted),
			)
			b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, line...), " "))
			b.WriteByte('\n')
		}
	}
	return b.String()
}
