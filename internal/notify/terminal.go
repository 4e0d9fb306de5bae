package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"battlecard-trader/internal/models"
)

// TerminalNotifier prints notifications to the terminal with severity
// colors.
type TerminalNotifier struct {
	out io.Writer
}

// NewTerminalNotifier creates a terminal notifier writing to stdout.
func NewTerminalNotifier() *TerminalNotifier {
	return &TerminalNotifier{out: os.Stdout}
}

// NewTerminalNotifierWithWriter creates a terminal notifier with a
// custom writer, mainly for tests.
func NewTerminalNotifierWithWriter(out io.Writer) *TerminalNotifier {
	return &TerminalNotifier{out: out}
}

// Name implements Notifier.
func (t *TerminalNotifier) Name() string { return "terminal" }

// Send implements Notifier.
func (t *TerminalNotifier) Send(ctx context.Context, n Notification) error {
	c := colorFor(n.Type)
	ts := n.Timestamp.Format("15:04:05")
	_, err := fmt.Fprintf(t.out, "%s %s %s: %s\n",
		ts, c.Sprintf("[%s]", n.Type), n.Title, n.Message)
	return err
}

func colorFor(t models.AlertType) *color.Color {
	switch t {
	case models.AlertSuccess:
		return color.New(color.FgGreen)
	case models.AlertWarning:
		return color.New(color.FgYellow)
	case models.AlertDanger:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgCyan)
	}
}
