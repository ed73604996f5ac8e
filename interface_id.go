package ddns

import (
	"fmt"
	"net/netip"
)

// MergeInterfaceID publishes addr with its low 64 bits replaced by the low 64 bits of interfaceID.
//
// An empty interfaceID returns addr unchanged.
// prefixIgnored is true when interfaceID has non-zero bits in its upper half;
// those bits are not used, but callers should let the operator know.
func MergeInterfaceID(addr netip.Addr, interfaceID string) (merged netip.Addr, prefixIgnored bool, err error) {
	if interfaceID == "" {
		return addr, false, nil
	}
	if !addr.Is6() || addr.Is4In6() {
		return netip.Addr{}, false, fmt.Errorf("interface id %q cannot be applied to non-IPv6 address %s", interfaceID, addr)
	}
	id, err := netip.ParseAddr(interfaceID)
	if err != nil {
		return netip.Addr{}, false, fmt.Errorf("invalid interface id %q: %w", interfaceID, err)
	}
	if !id.Is6() {
		return netip.Addr{}, false, fmt.Errorf("invalid interface id %q: not an IPv6 literal", interfaceID)
	}

	out := addr.As16()
	suffix := id.As16()
	for _, b := range suffix[:8] {
		if b != 0 {
			prefixIgnored = true
			break
		}
	}
	copy(out[8:], suffix[8:])
	return netip.AddrFrom16(out), prefixIgnored, nil
}
