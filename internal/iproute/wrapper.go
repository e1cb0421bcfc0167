package iproute

import (
	"fmt"
	"net/netip"
)

// Wrapper issues the three host "ip" invocations needed to bring a TUN
// interface into service: assign the overlay address, set the MTU, and
// bring the link up.
type Wrapper struct {
	commander Commander
}

func NewWrapper(commander Commander) *Wrapper {
	return &Wrapper{commander: commander}
}

// AddrAdd assigns addr (with its prefix length) to ifName.
// Equivalent to: ip addr add <addr> dev <ifName>
func (w *Wrapper) AddrAdd(ifName string, addr netip.Prefix) error {
	out, err := w.commander.CombinedOutput("ip", "addr", "add", addr.String(), "dev", ifName)
	if err != nil {
		return fmt.Errorf("iproute: addr add %s dev %s: %w (%s)", addr, ifName, err, out)
	}
	return nil
}

// SetMTU sets the interface MTU. Equivalent to: ip link set dev <ifName> mtu <mtu>
func (w *Wrapper) SetMTU(ifName string, mtu int) error {
	out, err := w.commander.CombinedOutput("ip", "link", "set", "dev", ifName, "mtu", fmt.Sprintf("%d", mtu))
	if err != nil {
		return fmt.Errorf("iproute: set mtu %d on %s: %w (%s)", mtu, ifName, err, out)
	}
	return nil
}

// LinkUp brings the interface up. Equivalent to: ip link set dev <ifName> up
func (w *Wrapper) LinkUp(ifName string) error {
	out, err := w.commander.CombinedOutput("ip", "link", "set", "dev", ifName, "up")
	if err != nil {
		return fmt.Errorf("iproute: link up %s: %w (%s)", ifName, err, out)
	}
	return nil
}
