// Package console shows reminder notifications on a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/notexe/reminderd/internal/notify"
	"github.com/notexe/reminderd/internal/reminder"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")). // Bright cyan
			Bold(true)

	BodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")) // Soft green

	ActionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("215")) // Orange

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// Notifier writes notifications to w and remembers which are on screen.
type Notifier struct {
	w       io.Writer
	colored bool
	now     func() time.Time

	mu    sync.Mutex
	shown map[int64]notify.Notification
}

// NewNotifier creates a console Notifier.
func NewNotifier(w io.Writer, colored bool) *Notifier {
	return &Notifier{
		w:       w,
		colored: colored,
		now:     time.Now,
		shown:   make(map[int64]notify.Notification),
	}
}

// Show prints the notification. A second Show for the same ID replaces the first.
func (n *Notifier) Show(_ context.Context, note notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.shown[note.ID] = note
	_, err := fmt.Fprintln(n.w, n.format(note))
	return err
}

// Cancel dismisses the notification for id. Unknown IDs are ignored.
func (n *Notifier) Cancel(_ context.Context, id int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	note, ok := n.shown[id]
	if !ok {
		return nil
	}
	delete(n.shown, id)

	line := fmt.Sprintf("dismissed: %s", note.Title)
	if n.colored {
		line = DimStyle.Render(line)
	}
	_, err := fmt.Fprintln(n.w, line)
	return err
}

// Shown returns the IDs currently on screen, in ascending order.
func (n *Notifier) Shown() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	ids := make([]int64, 0, len(n.shown))
	for id := range n.shown {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ShowDetail renders the reminder as markdown.
func (n *Notifier) ShowDetail(_ context.Context, r reminder.Reminder) error {
	md := notify.DetailMarkdown(r, n.now())

	styleOpt := glamour.WithStandardStyle("notty")
	if n.colored {
		styleOpt = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	rendered, err := renderer.Render(md)
	if err != nil {
		rendered = md
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	_, err = fmt.Fprintln(n.w, strings.TrimSpace(rendered))
	return err
}

func (n *Notifier) format(note notify.Notification) string {
	actions := make([]string, 0, len(note.Actions)+1)
	for _, a := range append([]notify.Action{note.Tap}, note.Actions...) {
		actions = append(actions, fmt.Sprintf("[%s] %s", a.Label, a.Data()))
	}

	if !n.colored {
		return fmt.Sprintf("%s\n%s\n%s", note.Title, note.Body, strings.Join(actions, "  "))
	}

	for i := range actions {
		actions[i] = ActionStyle.Render(actions[i])
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render(note.Title),
		BodyStyle.Render(note.Body),
		strings.Join(actions, "  "),
	)
	return BoxStyle.Render(content)
}
