package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

var (
	greenBold = color.New(color.FgGreen, color.Bold).SprintFunc()
	redBold   = color.New(color.FgRed, color.Bold).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	whiteBold = color.New(color.FgWhite, color.Bold).SprintFunc()
	cyan      = color.New(color.FgCyan).SprintFunc()
)

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

// ConsoleTasker prints each task as the lines an operator enters in the Havoc
// console of the target demon.
type ConsoleTasker struct {
	w         io.Writer
	clipboard bool
}

// NewConsoleTasker writes tasks to w, or color.Output when w is nil. When
// toClipboard is set the queued lines are also copied to the clipboard.
func NewConsoleTasker(w io.Writer, toClipboard bool) *ConsoleTasker {
	if w == nil {
		w = color.Output
	}
	return &ConsoleTasker{w: w, clipboard: toClipboard}
}

func (c *ConsoleTasker) NewTask(ctx context.Context, target, message string) (Task, error) {
	if strings.TrimSpace(target) == "" {
		return nil, errors.New("no demon id given")
	}

	t := &consoleTask{
		id:        strings.ToUpper(uuid.New().String()[:8]),
		target:    target,
		w:         c.w,
		clipboard: c.clipboard,
	}
	fmt.Fprintf(t.w, "%s %s\n", greenBold("["+t.id+"]"), message)
	fmt.Fprintf(t.w, "  %s %s\n", whiteBold("demon:"), cyan(target))
	return t, nil
}

type consoleTask struct {
	mu        sync.Mutex
	id        string
	target    string
	lines     []string
	w         io.Writer
	clipboard bool
}

func (t *consoleTask) ID() string {
	return t.id
}

func (t *consoleTask) Command(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	fmt.Fprintf(t.w, "  %s\n", line)

	if t.clipboard {
		if err := writeClipboard(strings.Join(t.lines, "\n")); err != nil {
			fmt.Fprintf(t.w, "%s %s\n", redBold("clipboard:"), red(fmt.Sprintf("error copying to clipboard: %v", err)))
		}
	}
	return nil
}
