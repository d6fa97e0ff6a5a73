// Package session supervises the ligolo proxy running inside a named tmux
// session.
//
// Liveness is never cached: every check asks tmux whether the session is
// listed, so state cannot drift when the operator kills the session by hand.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"ligopivot/fault"
	"ligopivot/notify"
	"ligopivot/settings"
	"ligopivot/shell"
)

// DefaultName is the tmux session hosting the proxy.
const DefaultName = "ligolo_server_havoc"

// Network applies routes for the configured ranges.
type Network interface {
	EnsureInterface(ctx context.Context) error
	ApplyRanges(ctx context.Context, ranges []string) error
	ApplyRange(ctx context.Context, cidr string) error
	WithdrawRange(ctx context.Context, cidr string) error
}

type Supervisor struct {
	// mu serialises the check-then-create sequence in Start.
	mu sync.Mutex

	mux          Multiplexer
	network      Network
	settings     *settings.Settings
	settingsPath string
	notifier     notify.Notifier
	name         string
	proxyBin     string
	log          logrus.FieldLogger
}

type Config struct {
	Multiplexer Multiplexer
	Network     Network
	Settings    *settings.Settings
	// SettingsPath is where range changes are saved. Empty disables saving.
	SettingsPath string
	Notifier     notify.Notifier
	Name         string
	ProxyBin     string
	Log          logrus.FieldLogger
}

func New(c Config) (*Supervisor, error) {
	if c.Multiplexer == nil || c.Network == nil || c.Settings == nil {
		return nil, errors.New("session: multiplexer, network and settings are required")
	}
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.ProxyBin == "" {
		c.ProxyBin = "proxy"
	}
	if c.Notifier == nil {
		c.Notifier = notify.Discard
	}
	if c.Log == nil {
		c.Log = logrus.StandardLogger()
	}

	return &Supervisor{
		mux:          c.Multiplexer,
		network:      c.Network,
		settings:     c.Settings,
		settingsPath: c.SettingsPath,
		notifier:     c.Notifier,
		name:         c.Name,
		proxyBin:     c.ProxyBin,
		log:          c.Log.WithField("session", c.Name),
	}, nil
}

func (s *Supervisor) Name() string {
	return s.name
}

// IsRunning reports whether the supervised session is listed.
func (s *Supervisor) IsRunning(ctx context.Context) bool {
	return IsRunning(ctx, s.mux, s.name)
}

// LaunchCommand is the proxy invocation typed into the session.
func (s *Supervisor) LaunchCommand() string {
	argv := []string{s.proxyBin, "-selfcert", "-laddr", s.settings.GetListenerEndpoint()}
	if s.settings.HasCertificates() {
		argv = append(argv, "-certfile", s.settings.GetCertFile(), "-keyfile", s.settings.GetKeyFile())
	}
	if s.settings.GetAdmin() {
		argv = append([]string{"sudo"}, argv...)
	}
	return shell.Join(argv)
}

// Start sets up the interface and routes, then launches the proxy in a new
// session unless one is already listed.
func (s *Supervisor) Start(ctx context.Context) error {
	const action = "start server"

	ranges := s.settings.GetRanges()
	if len(ranges) == 0 {
		err := fault.Precondition(action, "there are no ranges configured, add one with `range add`")
		notify.Err(s.notifier, err)
		return err
	}
	if err := s.settings.Dialable(action); err != nil {
		notify.Err(s.notifier, err)
		return err
	}

	var errs []error
	if err := s.network.EnsureInterface(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.network.ApplyRanges(ctx, ranges); err != nil {
		errs = append(errs, err)
	}

	err := s.launch(ctx)
	if err != nil {
		errs = append(errs, err)
	}

	joined := errors.Join(errs...)
	notify.Err(s.notifier, joined)
	return joined
}

func (s *Supervisor) launch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.IsRunning(ctx) {
		notify.Infof(s.notifier, "server", "session %s is already running", s.name)
		return nil
	}

	if err := s.mux.NewSession(ctx, s.name); err != nil {
		return err
	}
	if err := s.mux.SendKeys(ctx, s.name, s.LaunchCommand()); err != nil {
		return err
	}

	attach := AttachCommand(s.name)
	if s.settings.GetAdmin() {
		notify.Importantf(s.notifier, "Important!", "connect to the ligolo server now to type in your sudo password: %s", attach)
	} else {
		notify.Importantf(s.notifier, "Important!", "you can now connect to the ligolo server using the command: %s", attach)
	}
	s.log.WithField("listener", s.settings.GetListenerEndpoint()).Info("proxy session started")
	return nil
}

// AddRange appends cidr, routes it immediately if the proxy is running and
// saves the settings. A stopped proxy gets all routes on the next Start.
func (s *Supervisor) AddRange(ctx context.Context, cidr string) error {
	cidr, err := settings.NormalizeRange(cidr)
	if err != nil {
		notify.Err(s.notifier, err)
		return err
	}
	if cidr == "" {
		return nil
	}
	if err := s.settings.AppendRange(cidr); err != nil {
		notify.Err(s.notifier, err)
		return err
	}

	var errs []error
	if s.IsRunning(ctx) {
		if err := s.network.ApplyRange(ctx, cidr); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.save(); err != nil {
		errs = append(errs, err)
	}

	joined := errors.Join(errs...)
	notify.Err(s.notifier, joined)
	return joined
}

// RemoveRange removes the range at the 1-based position pos, withdraws its
// route if the proxy is running and saves the settings.
func (s *Supervisor) RemoveRange(ctx context.Context, pos int) error {
	var c settings.Cursor
	c.Select(pos)
	return s.RemoveSelected(ctx, &c)
}

// RemoveSelected is RemoveRange for the position held by c. The cursor is
// cleared only when the range was removed.
func (s *Supervisor) RemoveSelected(ctx context.Context, c *settings.Cursor) error {
	removed, err := c.RemoveSelected(s.settings)
	if err != nil {
		notify.Err(s.notifier, err)
		return err
	}

	var errs []error
	if s.IsRunning(ctx) {
		if err := s.network.WithdrawRange(ctx, removed); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.save(); err != nil {
		errs = append(errs, err)
	}

	joined := errors.Join(errs...)
	notify.Err(s.notifier, joined)
	return joined
}

func (s *Supervisor) save() error {
	if s.settingsPath == "" {
		return nil
	}
	return s.settings.Save(s.settingsPath)
}
