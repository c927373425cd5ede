package transport

import (
	"fmt"
	"net"
	"strings"
)

// BDAddrAny is the wildcard adapter address
const BDAddrAny = "00:00:00:00:00:00"

// ParseBDAddr parses a Bluetooth device address such as "AA:BB:CC:DD:EE:FF".
// The result is in the little-endian byte order the kernel socket API uses.
// An empty string yields BDADDR_ANY.
func ParseBDAddr(address string) ([6]byte, error) {
	var addr [6]byte
	address = strings.TrimSpace(address)
	if address == "" {
		return addr, nil
	}

	hw, err := net.ParseMAC(address)
	if err != nil {
		return addr, fmt.Errorf("invalid bluetooth address %q: %w", address, err)
	}
	if len(hw) != len(addr) {
		return addr, fmt.Errorf("invalid bluetooth address %q: expected 6 octets, got %d", address, len(hw))
	}
	for i := range addr {
		addr[i] = hw[len(hw)-1-i]
	}
	return addr, nil
}

// FormatBDAddr is the inverse of ParseBDAddr
func FormatBDAddr(addr [6]byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		addr[5], addr[4], addr[3], addr[2], addr[1], addr[0])
}
