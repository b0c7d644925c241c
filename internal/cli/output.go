package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/xiaot623/gogo/standup/internal/domain"
)

func statusLabel(status domain.RunStatus) string {
	switch status {
	case domain.RunStatusCompleted:
		return color.New(color.FgGreen).Sprint(string(status))
	case domain.RunStatusError:
		return color.New(color.FgRed).Sprint(string(status))
	default:
		return color.New(color.FgYellow).Sprint(string(status))
	}
}

func resultLabel(result string) string {
	switch {
	case result == "ok":
		return color.New(color.FgGreen).Sprint(result)
	case strings.HasPrefix(result, "escalated"):
		return color.New(color.FgHiMagenta).Sprint(result)
	default:
		return result
	}
}

func printRun(w io.Writer, run *domain.Run) {
	fmt.Fprintf(w, "\nStandup: %s\n", run.Date)
	fmt.Fprintf(w, "Title:    %s\n", run.Title)
	fmt.Fprintf(w, "Timezone: %s\n", run.Timezone)
	fmt.Fprintf(w, "Status:   %s\n", statusLabel(run.Status))
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if run.CompletedAt != nil {
		fmt.Fprintf(w, "Finished: %s\n", run.CompletedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if run.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", color.New(color.FgRed).Sprint(run.Error))
	}
}

func printEntries(w io.Writer, entries []domain.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "\nNo entries")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "\n%s %s\n", color.New(color.FgCyan).Sprintf("[%d]", e.TurnOrder), e.ParticipantID)
		printSection(w, "Yesterday", e.SectionA)
		printSection(w, "Today", e.SectionB)
		printSection(w, "Blockers", e.SectionC)
		if len(e.Tasks) > 0 {
			printSection(w, "Tasks", string(e.Tasks))
		}
	}
}

func printSection(w io.Writer, label, body string) {
	if body == "" {
		return
	}
	lines := strings.Split(body, "\n")
	fmt.Fprintf(w, "  %-10s %s\n", label+":", lines[0])
	for _, l := range lines[1:] {
		fmt.Fprintf(w, "  %-10s %s\n", "", l)
	}
}

func printMessages(w io.Writer, messages []domain.Message) {
	fmt.Fprintln(w)
	for _, m := range messages {
		who := m.ParticipantID
		if m.Kind == domain.MessageKindSystem {
			who = color.New(color.FgHiBlack).Sprint("system")
		}
		fmt.Fprintf(w, "%3d %-14s %s\n", m.Seq, who, strings.ReplaceAll(m.Content, "\n", "\n                  "))
	}
}
