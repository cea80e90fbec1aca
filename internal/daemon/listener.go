package daemon

import (
	"fmt"
	"net"

	"github.com/coreos/go-systemd/activation"
	"github.com/docker/go-connections/sockets"
)

// newTCPListener builds a TCP listener the way the teacher's
// pkg/apiserver.Server.initTCPSocket does, via docker/go-connections.
func newTCPListener(addr string) (net.Listener, error) {
	l, err := sockets.NewTCPSocket(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("daemon: listen on %s: %w", addr, err)
	}
	return l, nil
}

// listenersFromSystemd returns sockets handed down by systemd socket
// activation, mirroring the teacher's pkg/apiserver.listenFD.
func listenersFromSystemd() ([]net.Listener, error) {
	listeners, err := activation.Listeners()
	if err != nil {
		return nil, fmt.Errorf("daemon: systemd activation: %w", err)
	}
	return listeners, nil
}
