package connection

import (
	"fmt"
	"net"
	"strconv"
)

// GetFreePort returns a TCP port that was unused on host a moment ago; an empty host
// means the IPv4 loopback. Callers starting a server on it should be ready to retry.
func GetFreePort(host string) (int, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("failed to reserve a port on %s: %w", host, err)
	}
	defer l.Close()

	_, portStr, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		return 0, fmt.Errorf("failed to read listener address %s: %w", l.Addr(), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		return 0, fmt.Errorf("listener on %s reported port %q", host, portStr)
	}
	return port, nil
}
