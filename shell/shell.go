// Package shell runs external commands and reports their failures as
// fault.ExternalToolError values.
package shell

import (
	"context"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"

	"ligopivot/fault"
)

// Runner executes a single command line given as argv.
type Runner interface {
	Run(ctx context.Context, argv []string) ([]byte, error)
}

// Exec runs commands on the local host.
type Exec struct {
	// execCommand is exec.CommandContext outside of tests.
	execCommand func(ctx context.Context, name string, arg ...string) *exec.Cmd
	log         logrus.FieldLogger
}

// NewExec returns a Runner backed by os/exec. A nil logger uses the
// logrus standard logger.
func NewExec(log logrus.FieldLogger) *Exec {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Exec{
		execCommand: exec.CommandContext,
		log:         log,
	}
}

// Run executes argv and returns its combined output. There is no timeout;
// the call blocks until the command exits or ctx is cancelled.
func (e *Exec) Run(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, &fault.ExternalToolError{Err: exec.ErrNotFound}
	}

	entry := e.log.WithField("argv", Join(argv))
	entry.Debug("running command")

	cmd := e.execCommand(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		entry.WithError(err).WithField("output", strings.TrimSpace(string(out))).Debug("command failed")
		return out, &fault.ExternalToolError{
			Argv:   append([]string(nil), argv...),
			Output: string(out),
			Err:    err,
		}
	}
	return out, nil
}

// Join renders argv as a single POSIX shell command line, quoting where needed.
func Join(argv []string) string {
	return shellquote.Join(argv...)
}

// Split parses a POSIX shell command line into argv.
func Split(line string) ([]string, error) {
	return shellquote.Split(line)
}
