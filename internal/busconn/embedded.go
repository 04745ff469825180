package busconn

import (
	"fmt"
	"net"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// EmbeddedServer is an in-process NATS server used for local
// development and integration tests, adapted from the teacher's
// internal/daemon/nats.go StartNATSServer/Health/Shutdown trio. It is
// not part of the production deployment model: a module in production
// dials an externally-run bus.
type EmbeddedServer struct {
	srv  *server.Server
	port int
}

// StartEmbeddedServer launches an in-process NATS server on an
// available port (port 0 means "pick any free port") and waits for it
// to be ready.
func StartEmbeddedServer(port int) (*EmbeddedServer, error) {
	opts := &server.Options{
		Host:           "127.0.0.1",
		Port:           port,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 4096,
	}

	srv, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("busconn: create embedded server: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(10 * time.Second) {
		return nil, fmt.Errorf("busconn: embedded server not ready within 10s")
	}

	port = 0
	if tcpAddr, ok := srv.Addr().(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}
	return &EmbeddedServer{srv: srv, port: port}, nil
}

// URL returns the nats:// URL for dialing the embedded server.
func (e *EmbeddedServer) URL() string {
	return e.srv.ClientURL()
}

// Port returns the TCP port the embedded server bound to.
func (e *EmbeddedServer) Port() int { return e.port }

// Connect dials the embedded server directly, bypassing the bootstrap
// fallback chain. Intended for tests.
func (e *EmbeddedServer) Connect(id, hostname string) (*Conn, error) {
	nc, err := nats.Connect(e.URL(), nats.Name(id))
	if err != nil {
		return nil, fmt.Errorf("busconn: connect to embedded server: %w", err)
	}
	return wrap(nc, id, hostname), nil
}

// Shutdown stops the embedded server, draining existing connections
// first.
func (e *EmbeddedServer) Shutdown() {
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
}
