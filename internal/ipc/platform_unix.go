//go:build !windows

package ipc

import (
	"fmt"
	"net"
	"os"
	"time"
)

// CreatePlatformListener creates a Unix domain socket listener (Linux/macOS)
func CreatePlatformListener(socketPath string) (net.Listener, error) {
	if err := CleanupSocket(socketPath); err != nil {
		return nil, fmt.Errorf("cleanup socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix: %w", err)
	}

	if err := os.Chmod(socketPath, 0666); err != nil {
		listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return listener, nil
}

// ConnectPlatform dials the Unix domain socket
func ConnectPlatform(socketPath string) (net.Conn, error) {
	return net.DialTimeout("unix", socketPath, time.Second)
}

// PlatformAddress returns the address string for logging
func PlatformAddress(socketPath string) string {
	return socketPath
}

// releaseAddress removes the socket file after the listener closes
func releaseAddress(socketPath string) {
	_ = CleanupSocket(socketPath)
}
