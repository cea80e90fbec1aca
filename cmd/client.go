package cmd

import (
	"fmt"
	"net"
	"time"

	"github.com/s2p-go/s2pd/internal/daemon"
	"github.com/s2p-go/s2pd/internal/executor"
)

// controlClient is a thin wrapper over one control-channel TCP connection,
// playing the role the teacher's pkg/api/client.Client plays for the
// Docker-style REST API: dial, send one request, read one reply, close.
type controlClient struct {
	addr string
}

func newControlClient(addr string) *controlClient {
	return &controlClient{addr: addr}
}

func (c *controlClient) send(cmd executor.Command) (executor.Reply, error) {
	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		return executor.Reply{}, fmt.Errorf("cmd: dialing %s: %w", c.addr, err)
	}
	defer conn.Close()

	if err := daemon.WriteFrame(conn, daemon.EncodeCommand(cmd)); err != nil {
		return executor.Reply{}, err
	}
	frame, err := daemon.ReadFrame(conn)
	if err != nil {
		return executor.Reply{}, err
	}
	return daemon.DecodeReply(frame)
}
