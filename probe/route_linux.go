//go:build linux

package probe

import (
	"net/netip"

	"github.com/google/gopacket/routing"
)

type kernelRouter struct{}

// NewRouter reads the kernel routing table on each lookup so routes added
// after startup are seen.
func NewRouter() Router {
	return kernelRouter{}
}

func (kernelRouter) Route(dst netip.Addr) (string, error) {
	r, err := routing.New()
	if err != nil {
		return "", err
	}

	iface, _, _, err := r.Route(dst.AsSlice())
	if err != nil {
		return "", err
	}
	return iface.Name, nil
}
