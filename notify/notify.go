// Package notify delivers operator-facing messages.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"ligopivot/fault"
)

type Level int

const (
	Info Level = iota
	Important
	Error
)

func (l Level) String() string {
	switch l {
	case Important:
		return "important"
	case Error:
		return "error"
	}
	return "info"
}

// Notice is one message for the operator.
type Notice struct {
	Level   Level
	Title   string
	Message string
}

// Notifier is the single channel through which the operator hears about
// validation failures, unmet preconditions and failed commands.
type Notifier interface {
	Notify(n Notice)
}

// Discard drops every notice.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Notice) {}

var (
	green     = color.New(color.FgGreen).SprintFunc()
	greenBold = color.New(color.FgGreen, color.Bold).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	redBold   = color.New(color.FgRed, color.Bold).SprintFunc()
	cyanBold  = color.New(color.FgCyan, color.Bold).SprintFunc()
	white     = color.New(color.FgWhite).SprintFunc()
)

// Console prints notices as colored status lines.
type Console struct {
	mu  sync.Mutex
	w   io.Writer
	min Level
}

// NewConsole writes notices at or above min to w. A nil w uses color.Output.
func NewConsole(w io.Writer, min Level) *Console {
	if w == nil {
		w = color.Output
	}
	return &Console{w: w, min: min}
}

func (c *Console) Notify(n Notice) {
	if n.Level < c.min {
		return
	}

	title := n.Title
	if title == "" {
		title = n.Level.String()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch n.Level {
	case Error:
		fmt.Fprintf(c.w, "%s %s\n", redBold(title+":"), red(n.Message))
	case Important:
		fmt.Fprintf(c.w, "%s %s\n", cyanBold(title+":"), green(n.Message))
	default:
		fmt.Fprintf(c.w, "%s %s\n", greenBold(title+":"), white(n.Message))
	}
}

// Err reports err to n, one notice per joined error, titled by its kind.
func Err(n Notifier, err error) {
	if err == nil || n == nil {
		return
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			Err(n, e)
		}
		return
	}
	n.Notify(Notice{Level: Error, Title: Title(err), Message: err.Error()})
}

// Title names the kind of err for display.
func Title(err error) string {
	switch {
	case fault.IsValidation(err):
		return "invalid settings"
	case fault.IsPrecondition(err):
		return "not possible"
	case fault.IsExternal(err):
		return "command failed"
	}
	return "error"
}

// Infof sends an informational notice.
func Infof(n Notifier, title, format string, args ...any) {
	if n == nil {
		return
	}
	n.Notify(Notice{Level: Info, Title: title, Message: fmt.Sprintf(format, args...)})
}

// Importantf sends a notice the operator must act on.
func Importantf(n Notifier, title, format string, args ...any) {
	if n == nil {
		return
	}
	n.Notify(Notice{Level: Important, Title: title, Message: fmt.Sprintf(format, args...)})
}
