package console

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/shaiso/Acquire/internal/events"
)

var (
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	styleInfo   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // blue
	styleMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	stylePrompt = lipgloss.NewStyle().Bold(true)
)

// FeedLine возвращает строку ленты для уведомления.
// Пустая строка — уведомление в ленту не выводится.
func FeedLine(ev events.Event) string {
	switch e := ev.(type) {
	case events.Started:
		return styleInfo.Render("▶") + fmt.Sprintf(" %s started (priority %d)", e.Plan, e.Priority)

	case events.Finished:
		line := fmt.Sprintf(" %s %s in %s", e.Plan, e.Outcome, e.Duration.Round(100*time.Millisecond))
		switch e.Outcome {
		case events.OutcomeSucceeded:
			return styleOK.Render("✓") + line
		case events.OutcomeAborted:
			return styleWarn.Render("■") + line
		}
		return styleError.Render("✗") + line

	case events.Paused:
		if e.Deferred {
			return styleWarn.Render("‖") + " pause requested at next checkpoint"
		}
		return styleWarn.Render("‖") + " paused"

	case events.Resumed:
		return styleInfo.Render("▶") + " resumed"

	case events.Aborted:
		return styleWarn.Render("■") + " abort requested: " + e.Reason

	case events.Ready:
		return styleMuted.Render("• ready")

	case events.ExceptionRaised:
		return styleError.Render("✗") + fmt.Sprintf(" %s raised: %v", e.Plan, e.Err)

	case events.Notice:
		switch e.Level {
		case events.NoticeError:
			return styleError.Render("✗ " + e.Text)
		case events.NoticeWarning:
			return styleWarn.Render("⚠ " + e.Text)
		}
		return styleInfo.Render("• ") + e.Text
	}

	// Документы не выводятся: их слишком много
	return ""
}
