//go:build linux

package netif

import (
	"errors"
	"net/netip"

	"github.com/vishvananda/netlink"
)

type netlinkTable struct{}

// NewLinkTable returns a LinkTable backed by rtnetlink. Lookups need no
// privileges.
func NewLinkTable() LinkTable {
	return netlinkTable{}
}

func (netlinkTable) HasLink(name string) (bool, error) {
	_, err := netlink.LinkByName(name)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (netlinkTable) HasRoute(name string, dst netip.Prefix) (bool, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}

	routes, err := netlink.RouteList(link, netlink.FAMILY_ALL)
	if err != nil {
		return false, err
	}
	for _, r := range routes {
		if r.Dst != nil && r.Dst.String() == dst.String() {
			return true, nil
		}
	}
	return false, nil
}
