// Package netif keeps the tunnel interface and its kernel routes in line with
// the configured CIDR ranges.
//
// Every change goes through the configured escalation wrapper; lookups go
// through a LinkTable so repeated starts skip work that is already done.
package netif

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os/user"

	"github.com/sirupsen/logrus"

	"ligopivot/escalate"
	"ligopivot/fault"
	"ligopivot/shell"
)

// DefaultInterface is the TUN device name the ligolo proxy expects.
const DefaultInterface = "ligolo"

// Kernel messages that mean the requested state already holds.
var (
	alreadyExists = []string{"file exists", "already exists", "device or resource busy"}
	alreadyGone   = []string{"no such process", "cannot find device"}
)

// LinkTable answers read-only questions about links and routes.
type LinkTable interface {
	HasLink(name string) (bool, error)
	HasRoute(name string, dst netip.Prefix) (bool, error)
}

type Orchestrator struct {
	runner  shell.Runner
	wrapper escalate.Wrapper
	links   LinkTable
	iface   string
	owner   string
	log     logrus.FieldLogger
}

type Config struct {
	Runner    shell.Runner
	Wrapper   escalate.Wrapper
	Links     LinkTable
	Interface string
	// Owner is the user that owns the TUN device. Defaults to the current user.
	Owner string
	Log   logrus.FieldLogger
}

func New(c Config) (*Orchestrator, error) {
	if c.Runner == nil {
		return nil, errors.New("netif: runner is required")
	}
	if c.Interface == "" {
		c.Interface = DefaultInterface
	}
	if c.Owner == "" {
		u, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve current user: %w", err)
		}
		c.Owner = u.Username
	}
	if c.Links == nil {
		c.Links = NewLinkTable()
	}
	if c.Log == nil {
		c.Log = logrus.StandardLogger()
	}

	return &Orchestrator{
		runner:  c.Runner,
		wrapper: c.Wrapper,
		links:   c.Links,
		iface:   c.Interface,
		owner:   c.Owner,
		log:     c.Log.WithField("interface", c.Interface),
	}, nil
}

// EnsureInterface creates the TUN device owned by the configured user if it
// does not exist yet, then brings it up. An existing device is not an error.
func (o *Orchestrator) EnsureInterface(ctx context.Context) error {
	exists, err := o.links.HasLink(o.iface)
	if err != nil {
		o.log.WithError(err).Debug("link lookup failed, creating anyway")
	}

	if !exists {
		err = o.run(ctx, []string{"ip", "tuntap", "add", "user", o.owner, "mode", "tun", o.iface}, alreadyExists)
		if err != nil {
			return err
		}
	}

	return o.run(ctx, []string{"ip", "link", "set", o.iface, "up"}, nil)
}

// ApplyRange routes cidr through the tunnel interface.
func (o *Orchestrator) ApplyRange(ctx context.Context, cidr string) error {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return err
	}

	exists, err := o.links.HasRoute(o.iface, prefix.Masked())
	if err != nil {
		o.log.WithError(err).WithField("range", cidr).Debug("route lookup failed, adding anyway")
	}
	if exists {
		o.log.WithField("range", cidr).Debug("route already present")
		return nil
	}

	return o.run(ctx, []string{"ip", "route", "add", cidr, "dev", o.iface}, alreadyExists)
}

// ApplyRanges applies every range independently. Failures do not stop the
// remaining ranges and nothing is rolled back.
func (o *Orchestrator) ApplyRanges(ctx context.Context, ranges []string) error {
	var errs []error
	for _, r := range ranges {
		if err := o.ApplyRange(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithdrawRange deletes the route for cidr from the tunnel interface.
func (o *Orchestrator) WithdrawRange(ctx context.Context, cidr string) error {
	if _, err := netip.ParsePrefix(cidr); err != nil {
		return err
	}
	return o.run(ctx, []string{"ip", "route", "del", cidr, "dev", o.iface}, alreadyGone)
}

// run executes argv through the escalation wrapper. Failures whose output
// matches one of tolerated are reported as success.
func (o *Orchestrator) run(ctx context.Context, argv []string, tolerated []string) error {
	_, err := o.runner.Run(ctx, o.wrapper.Wrap(argv))
	if err == nil {
		return nil
	}
	if len(tolerated) > 0 && fault.OutputContains(err, tolerated...) {
		o.log.WithField("argv", shell.Join(argv)).Debug("state already applied")
		return nil
	}
	return err
}
