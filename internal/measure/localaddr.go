package measure

import (
	"context"
	"errors"
	"net"
	"os"

	psnet "github.com/shirou/gopsutil/net"
)

var errNoLocalAddress = errors.New("no non-loopback address found")

// LookupLocalAddress resolves the host's own IPv4 address through its
// hostname, falling back to the first usable interface address.
func LookupLocalAddress(ctx context.Context) (string, error) {
	if host, err := os.Hostname(); err == nil {
		if addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host); err == nil {
			for _, a := range addrs {
				if usable(a.IP) {
					return a.IP.To4().String(), nil
				}
			}
		}
	}

	ifaces, err := psnet.Interfaces()
	if err != nil {
		return "", err
	}
	return interfaceAddress(ifaces)
}

func interfaceAddress(ifaces []psnet.InterfaceStat) (string, error) {
	for _, iface := range ifaces {
		if hasFlag(iface.Flags, "loopback") || !hasFlag(iface.Flags, "up") {
			continue
		}
		for _, a := range iface.Addrs {
			ip, _, err := net.ParseCIDR(a.Addr)
			if err != nil {
				ip = net.ParseIP(a.Addr)
			}
			if usable(ip) {
				return ip.To4().String(), nil
			}
		}
	}
	return "", errNoLocalAddress
}

func usable(ip net.IP) bool {
	return ip != nil && ip.To4() != nil && !ip.IsLoopback() && !ip.IsLinkLocalUnicast() && !ip.IsUnspecified()
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
