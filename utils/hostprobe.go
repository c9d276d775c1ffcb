package utils

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strings"
)

// DefaultGateway resolves the bridge's "<gateway>" configuration
// sentinel by reading the kernel's IPv4 routing table. The standard
// library has no portable route-table API, so this reads
// /proc/net/route directly (Linux-only, which matches the bridge's only
// deployment target) instead of shelling out to "ip route show".
func DefaultGateway() (string, error) {
	f, err := os.Open("/proc/net/route")
	if err != nil {
		return "", fmt.Errorf("utils: open /proc/net/route: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan() // header line

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		destination, gateway := fields[1], fields[2]
		if destination != "00000000" {
			continue
		}
		return hexLittleEndianToIP(gateway)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("utils: read /proc/net/route: %w", err)
	}
	return "", fmt.Errorf("utils: no default route found in /proc/net/route")
}

func hexLittleEndianToIP(s string) (string, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 4 {
		return "", fmt.Errorf("utils: malformed route gateway %q", s)
	}
	return net.IPv4(raw[3], raw[2], raw[1], raw[0]).String(), nil
}

// PrimaryInterfaceMAC returns the hardware address of the first
// non-loopback interface that has one, used as the default device_id.
func PrimaryInterfaceMAC() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("utils: list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr.String(), nil
	}
	return "", fmt.Errorf("utils: no interface with a hardware address found")
}
