// Package statusapi is the read-only HTTP introspection surface the
// expanded spec adds alongside the binary control channel: DEVICES_INFO,
// VERSION_INFO, and RESERVED_IDS_INFO as JSON, so an operator can curl a
// running daemon the way the control client queries it over the wire
// protocol, without reimplementing that protocol's framing. Modeled on the
// teacher's pkg/apiserver.Server + gorilla/mux route registration, stripped
// down to GET-only handlers since there is nothing here to mutate.
package statusapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/s2p-go/s2pd/internal/executor"
)

// Version is stamped by the build; spec.md explicitly leaves a real version
// scheme out of scope, so this is a fixed placeholder like the teacher's
// pkg/version.VERSION constant.
const Version = "0.1.0"

// Server wraps a gorilla/mux router over one executor.Executor.
type Server struct {
	exec   *executor.Executor
	router *mux.Router
	log    *log.Logger
}

func New(exec *executor.Executor, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New()
	}
	s := &Server{exec: exec, router: mux.NewRouter(), log: logger}
	s.router.HandleFunc("/v1/devices", s.handleDevices).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/reserved_ids", s.handleReservedIDs).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/version", s.handleVersion).Methods(http.MethodGet)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.log.WithField("addr", addr).Info("status API listening")
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("failed to encode status API response")
	}
}

// handleDevices answers the DEVICES_INFO shape the control channel's
// executor.Reply.Devices field carries.
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.exec.Snapshot())
}

// handleReservedIDs answers the RESERVED_IDS_INFO shape.
func (s *Server) handleReservedIDs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.exec.ReservedIDs())
}

// handleVersion answers VERSION_INFO.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"version": Version})
}
