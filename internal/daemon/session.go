package daemon

import (
	"net"

	log "github.com/sirupsen/logrus"
	uuid "github.com/satori/go.uuid"

	"github.com/s2p-go/s2pd/internal/executor"
)

// session is one control-channel connection, correlated by a uuid the way
// the teacher's iscsit.iscsiConnection carries a uuid.UUID id.
type session struct {
	id   uuid.UUID
	conn net.Conn
	exec *executor.Executor
	log  *log.Entry
}

func newSession(conn net.Conn, exec *executor.Executor, logger *log.Logger) *session {
	id := uuid.NewV4()
	return &session{
		id:   id,
		conn: conn,
		exec: exec,
		log:  logger.WithField("session", id.String()),
	}
}

// serve reads frames until a framing error or the peer closes the
// connection, dispatching every decoded command batch to the executor.
func (s *session) serve() {
	defer s.conn.Close()
	s.log.WithField("remote", s.conn.RemoteAddr()).Info("control connection opened")
	for {
		frame, err := ReadFrame(s.conn)
		if err != nil {
			s.log.WithError(err).Debug("control connection closed")
			return
		}
		cmd, err := DecodeCommand(frame)
		if err != nil {
			s.log.WithError(err).Warn("malformed command frame")
			return
		}
		reply := s.exec.Process([]executor.Command{cmd})
		reply.Devices = s.exec.Snapshot()
		if err := WriteFrame(s.conn, EncodeReply(reply)); err != nil {
			s.log.WithError(err).Warn("failed to write reply")
			return
		}
	}
}
