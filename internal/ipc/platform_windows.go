//go:build windows

package ipc

import (
	"fmt"
	"net"
	"time"
)

// CreatePlatformListener listens on localhost TCP. Windows doesn't support
// Unix domain sockets reliably, so socketPath is ignored.
func CreatePlatformListener(socketPath string) (net.Listener, error) {
	listener, err := net.Listen("tcp", DefaultTCPPort)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", DefaultTCPPort, err)
	}
	return listener, nil
}

// ConnectPlatform dials the localhost TCP port
func ConnectPlatform(socketPath string) (net.Conn, error) {
	return net.DialTimeout("tcp", DefaultTCPPort, time.Second)
}

// PlatformAddress returns the address string for logging
func PlatformAddress(socketPath string) string {
	return DefaultTCPPort + " (TCP localhost - Windows mode)"
}

func releaseAddress(string) {}
