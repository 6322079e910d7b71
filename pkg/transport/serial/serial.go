// Package serial implements transport.Transport over a serial port.
package serial

import (
	"fmt"
	"sync"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/robotalks/fes.go/pkg/transport"
)

// Port is a serial port transport.
type Port struct {
	name string
	port serial.Port
	lock sync.Mutex
}

// New creates an unopened Port.
func New() *Port {
	return &Port{}
}

// Open implements Transport.
func (p *Port) Open(name string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.port != nil {
		return fmt.Errorf("%w: %s already open", transport.ErrOpen, p.name)
	}
	port, err := serial.Open(name, modeOf(transport.DefaultConfig))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", transport.ErrOpen, name, err)
	}
	p.name, p.port = name, port
	glog.V(1).Infof("serial %s opened", name)
	return nil
}

// Configure implements Transport.
func (p *Port) Configure(conf transport.Config) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.port == nil {
		return transport.ErrNotOpen
	}
	if err := p.port.SetMode(modeOf(conf)); err != nil {
		return fmt.Errorf("%w: %s mode: %v", transport.ErrConfig, p.name, err)
	}
	if err := p.port.SetReadTimeout(conf.ReadTimeout); err != nil {
		return fmt.Errorf("%w: %s timeout: %v", transport.ErrConfig, p.name, err)
	}
	// go.bug.st/serial writes block until the driver accepts the bytes,
	// WriteTimeout is not applicable.
	if err := p.port.SetDTR(false); err != nil {
		glog.Warningf("serial %s: disable DTR: %v", p.name, err)
	}
	if err := p.port.SetRTS(false); err != nil {
		glog.Warningf("serial %s: disable RTS: %v", p.name, err)
	}
	return nil
}

// Read implements io.Reader. A read timeout yields 0, nil.
func (p *Port) Read(b []byte) (int, error) {
	port := p.current()
	if port == nil {
		return 0, transport.ErrNotOpen
	}
	return port.Read(b)
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	port := p.current()
	if port == nil {
		return 0, transport.ErrNotOpen
	}
	return port.Write(b)
}

// Close implements io.Closer.
func (p *Port) Close() error {
	p.lock.Lock()
	port := p.port
	p.port = nil
	p.lock.Unlock()
	if port == nil {
		return nil
	}
	glog.V(1).Infof("serial %s closed", p.name)
	return port.Close()
}

func (p *Port) current() serial.Port {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.port
}

func modeOf(conf transport.Config) *serial.Mode {
	mode := &serial.Mode{
		BaudRate: conf.BaudRate,
		DataBits: conf.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if conf.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch conf.Parity {
	case transport.OddParity:
		mode.Parity = serial.OddParity
	case transport.EvenParity:
		mode.Parity = serial.EvenParity
	}
	return mode
}
