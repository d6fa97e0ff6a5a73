//go:build !linux

package probe

import (
	"errors"
	"net/netip"
)

type noRouter struct{}

func NewRouter() Router {
	return noRouter{}
}

func (noRouter) Route(netip.Addr) (string, error) {
	return "", errors.New("route lookup is only supported on linux")
}
