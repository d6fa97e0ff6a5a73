package session

import (
	"context"
	"strings"

	"ligopivot/shell"
)

// Multiplexer is the terminal multiplexer hosting the listener.
type Multiplexer interface {
	// ListSessions returns the raw session listing.
	ListSessions(ctx context.Context) (string, error)
	NewSession(ctx context.Context, name string) error
	// SendKeys types line into the session followed by Enter.
	SendKeys(ctx context.Context, name, line string) error
}

// Tmux drives the user's default tmux server.
type Tmux struct {
	runner shell.Runner
}

func NewTmux(runner shell.Runner) *Tmux {
	return &Tmux{runner: runner}
}

func (t *Tmux) ListSessions(ctx context.Context) (string, error) {
	out, err := t.runner.Run(ctx, []string{"tmux", "list-sessions"})
	return string(out), err
}

func (t *Tmux) NewSession(ctx context.Context, name string) error {
	_, err := t.runner.Run(ctx, []string{"tmux", "new-session", "-d", "-s", name})
	return err
}

func (t *Tmux) SendKeys(ctx context.Context, name, line string) error {
	_, err := t.runner.Run(ctx, []string{"tmux", "send-keys", "-t", name, line, "C-m"})
	return err
}

// AttachCommand is what the operator types to reach the session.
func AttachCommand(name string) string {
	return shell.Join([]string{"tmux", "a", "-t", name})
}

// IsRunning reports whether name is listed by mux. A failed listing, such as
// no tmux server running, counts as not running.
func IsRunning(ctx context.Context, mux Multiplexer, name string) bool {
	listing, err := mux.ListSessions(ctx)
	if err != nil {
		return false
	}
	return listed(listing, name)
}

// listed reports whether name appears in a session listing.
func listed(listing, name string) bool {
	return strings.Contains(listing, name)
}
