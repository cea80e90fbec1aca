package daemon

import (
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/s2p-go/s2pd/internal/bus"
	"github.com/s2p-go/s2pd/internal/controller"
	"github.com/s2p-go/s2pd/internal/executor"
	"github.com/s2p-go/s2pd/internal/scsiproto"
)

// DefaultControlPort is the control-channel TCP port from spec.md §6.
const DefaultControlPort = 6868

// Daemon is the long-lived process (C11): it accepts control connections,
// dispatches them to CommandExecutor, and drives the bus loop, per
// spec.md §1/§4.8. Grounded on the teacher's citd.go accept loop and
// cmd/daemon.go's bootstrap sequence.
type Daemon struct {
	Executor *executor.Executor
	Factory  *controller.Factory
	Bus      bus.Bus
	Log      *log.Logger

	listener net.Listener
	stopCh   chan struct{}
}

func New(exec *executor.Executor, factory *controller.Factory, b bus.Bus, logger *log.Logger) *Daemon {
	if logger == nil {
		logger = log.New()
	}
	return &Daemon{Executor: exec, Factory: factory, Bus: b, Log: logger, stopCh: make(chan struct{})}
}

// ListenAndServe opens the control-channel listener and runs the accept
// loop until Shutdown is called, mirroring citd.go's net.Listen + Accept
// loop with a per-connection goroutine.
func (d *Daemon) ListenAndServe(addr string) error {
	l, err := newTCPListener(addr)
	if err != nil {
		return err
	}
	d.listener = l
	d.Log.WithField("addr", addr).Info("control channel listening")

	go d.runBusLoop()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-d.stopCh:
				return nil
			default:
				d.Log.WithError(err).Warn("accept failed")
				continue
			}
		}
		s := newSession(conn, d.Executor, d.Log)
		go s.serve()
	}
}

// Shutdown implements spec.md §5's cancellation path: observed at
// bus-free transitions, flushes every device's cache, then returns.
func (d *Daemon) Shutdown() {
	close(d.stopCh)
	if d.listener != nil {
		d.listener.Close()
	}
	if err := d.Executor.FlushAll(); err != nil {
		d.Log.WithError(err).Warn("flush on shutdown failed")
	}
	d.Log.Info("daemon shutdown complete")
}

// runBusLoop implements spec.md §4.1/§4.7's steady-state control flow: wait
// for SEL, hand off to the matching controller's phase machine, and loop.
// It is the one piece of C11 that touches the physical-layer Bus
// capability directly; everything else goes through the control channel.
func (d *Daemon) runBusLoop() {
	for {
		select {
		case <-d.stopCh:
			return
		default:
		}
		targetID, timedOut := d.Bus.WaitForSelection(bus.DefaultTimeout)
		if timedOut {
			continue
		}
		ctrl, ok := d.Factory.Get(targetID)
		if !ok {
			continue
		}
		cdb := make([]byte, 16)
		n, err := d.Bus.CommandHandshake(cdb)
		if err != nil || n == 0 {
			continue
		}
		op := scsiproto.Opcode(cdb[0])
		cdbLen := scsiproto.CDBLength(op)
		if cdbLen == 0 {
			cdbLen = n
		}
		res := ctrl.Execute(0, nil, cdb[:cdbLen], nil)
		if res.Shutdown != controller.ShutdownNone {
			d.Shutdown()
			return
		}
		_ = res
	}
}
