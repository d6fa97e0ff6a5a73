// Package probe checks that a host inside a configured range is reachable
// through the tunnel interface.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/sirupsen/logrus"

	"ligopivot/fault"
	"ligopivot/notify"
	"ligopivot/settings"
)

// Router tells which interface the kernel would use to reach dst.
type Router interface {
	Route(dst netip.Addr) (iface string, err error)
}

// Pinger sends ICMP echo requests.
type Pinger interface {
	Ping(ctx context.Context, dst netip.Addr) (Result, error)
}

// Result summarises one round of echo requests.
type Result struct {
	Sent     int
	Received int
	Loss     float64
	MinRtt   time.Duration
	AvgRtt   time.Duration
	MaxRtt   time.Duration
}

// Report is the outcome of a probe.
type Report struct {
	Addr      netip.Addr
	Range     string
	Interface string
	ViaTunnel bool
	Result    Result
}

type Prober struct {
	settings *settings.Settings
	iface    string
	router   Router
	pinger   Pinger
	notifier notify.Notifier
	log      logrus.FieldLogger
}

type Config struct {
	Settings *settings.Settings
	// Interface is the tunnel interface routes should point at.
	Interface string
	Router    Router
	Pinger    Pinger
	Notifier  notify.Notifier
	Log       logrus.FieldLogger
}

func New(c Config) (*Prober, error) {
	if c.Settings == nil || c.Pinger == nil {
		return nil, errors.New("probe: settings and pinger are required")
	}
	if c.Router == nil {
		c.Router = NewRouter()
	}
	if c.Notifier == nil {
		c.Notifier = notify.Discard
	}
	if c.Log == nil {
		c.Log = logrus.StandardLogger()
	}

	return &Prober{
		settings: c.Settings,
		iface:    c.Interface,
		router:   c.Router,
		pinger:   c.Pinger,
		notifier: c.Notifier,
		log:      c.Log,
	}, nil
}

// Probe pings target, which must fall inside one of the configured ranges.
// A route through some other interface is reported but does not stop the
// probe.
func (p *Prober) Probe(ctx context.Context, target string) (Report, error) {
	addr, err := netip.ParseAddr(target)
	if err != nil {
		err = fault.Validation("address", target, "not an IP address")
		notify.Err(p.notifier, err)
		return Report{}, err
	}

	r, ok := p.settings.ContainsAddr(addr)
	if !ok {
		err = fault.Precondition("probe "+target, "address is not inside any configured range")
		notify.Err(p.notifier, err)
		return Report{}, err
	}

	report := Report{Addr: addr, Range: r}
	log := p.log.WithFields(logrus.Fields{"addr": addr, "range": r})

	iface, err := p.router.Route(addr)
	switch {
	case err != nil:
		log.WithError(err).Debug("route lookup failed")
	case iface != p.iface:
		report.Interface = iface
		notify.Infof(p.notifier, "route", "%s is routed via %s, not %s; is the server started?", addr, iface, p.iface)
	default:
		report.Interface = iface
		report.ViaTunnel = true
	}

	res, err := p.pinger.Ping(ctx, addr)
	if err != nil {
		err = fmt.Errorf("ping %s failed: %w", addr, err)
		notify.Err(p.notifier, err)
		return report, err
	}
	report.Result = res
	log.WithField("received", res.Received).Debug("probe finished")
	return report, nil
}
