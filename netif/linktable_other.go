//go:build !linux

package netif

import "net/netip"

type unknownTable struct{}

// NewLinkTable returns a LinkTable that knows nothing, so every change is
// attempted and "already exists" failures are tolerated instead.
func NewLinkTable() LinkTable {
	return unknownTable{}
}

func (unknownTable) HasLink(string) (bool, error) { return false, nil }

func (unknownTable) HasRoute(string, netip.Prefix) (bool, error) { return false, nil }
