package probe

import (
	"context"
	"net/netip"
	"time"

	"github.com/go-ping/ping"
)

// ICMPPinger sends echo requests from a socket. Unprivileged mode needs
// net.ipv4.ping_group_range to include the current group.
type ICMPPinger struct {
	Count      int
	Timeout    time.Duration
	Privileged bool
}

func (p ICMPPinger) Ping(ctx context.Context, dst netip.Addr) (Result, error) {
	pinger, err := ping.NewPinger(dst.String())
	if err != nil {
		return Result{}, err
	}

	pinger.SetPrivileged(p.Privileged)
	pinger.Count = p.Count
	if pinger.Count <= 0 {
		pinger.Count = 3
	}
	pinger.Timeout = p.Timeout
	if pinger.Timeout <= 0 {
		pinger.Timeout = time.Duration(pinger.Count+1) * time.Second
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	if err := pinger.Run(); err != nil {
		return Result{}, err
	}

	stats := pinger.Statistics()
	return Result{
		Sent:     stats.PacketsSent,
		Received: stats.PacketsRecv,
		Loss:     stats.PacketLoss,
		MinRtt:   stats.MinRtt,
		AvgRtt:   stats.AvgRtt,
		MaxRtt:   stats.MaxRtt,
	}, ctx.Err()
}
