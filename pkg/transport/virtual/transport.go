package virtual

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/transport"
)

// Transport connects the host directly to an in-memory Board.
type Transport struct {
	Board *Board

	lock sync.Mutex
	port string
	open bool
	conf transport.Config
	rx   bytes.Buffer
}

// New creates a Transport with a fresh Board.
func New() *Transport {
	return &Transport{Board: NewBoard()}
}

// IsVirtual implements transport.Virtual.
func (t *Transport) IsVirtual() bool {
	return true
}

// Open implements Transport.
func (t *Transport) Open(port string) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.open {
		return fmt.Errorf("%w: %s already open", transport.ErrOpen, t.port)
	}
	t.port, t.open = port, true
	glog.V(1).Infof("virtual %s opened", port)
	return nil
}

// Configure implements Transport.
func (t *Transport) Configure(conf transport.Config) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.open {
		return transport.ErrNotOpen
	}
	if conf.BaudRate <= 0 || conf.DataBits <= 0 {
		return fmt.Errorf("%w: %s: invalid mode %+v", transport.ErrConfig, t.port, conf)
	}
	t.conf = conf
	return nil
}

// Config returns the applied configuration.
func (t *Transport) Config() transport.Config {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.conf
}

// IsOpen reports whether the transport is open.
func (t *Transport) IsOpen() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.open
}

// Write implements io.Writer.
func (t *Transport) Write(p []byte) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.open {
		return 0, transport.ErrNotOpen
	}
	t.rx.Write(t.Board.Receive(p))
	return len(p), nil
}

// Read implements io.Reader. An empty receive buffer behaves like a read
// timeout.
func (t *Transport) Read(p []byte) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.open {
		return 0, transport.ErrNotOpen
	}
	if t.rx.Len() == 0 {
		return 0, nil
	}
	return t.rx.Read(p)
}

// Close implements io.Closer.
func (t *Transport) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.open = false
	t.rx.Reset()
	return nil
}
