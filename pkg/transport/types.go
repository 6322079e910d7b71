// Package transport defines the byte link to a stimulation board.
package transport

import (
	"errors"
	"io"
	"time"
)

var (
	// ErrOpen indicates the port could not be opened.
	ErrOpen = errors.New("open port failed")
	// ErrConfig indicates the port rejected its configuration.
	ErrConfig = errors.New("configure port failed")
	// ErrNotOpen indicates an operation on a closed transport.
	ErrNotOpen = errors.New("port not open")
)

// Parity is the parity mode of the link.
type Parity int

// Parity modes.
const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

// Config holds the link parameters. It is applied once by Configure.
type Config struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   Parity
	// ReadTimeout bounds a single Read; a Read that times out returns 0, nil.
	ReadTimeout time.Duration
	// WriteTimeout bounds a single Write where the port supports it.
	WriteTimeout time.Duration
}

// DefaultConfig is the configuration the board firmware expects.
var DefaultConfig = Config{
	BaudRate:     9600,
	DataBits:     8,
	StopBits:     1,
	Parity:       NoParity,
	ReadTimeout:  10 * time.Millisecond,
	WriteTimeout: 50 * time.Millisecond,
}

// Transport is a blocking byte link. Flow control is never used.
type Transport interface {
	// Open opens the named port.
	Open(port string) error
	// Configure applies the link parameters to the open port.
	Configure(Config) error

	io.ReadWriteCloser
}

// Virtual is implemented by transports without real hardware behind them.
type Virtual interface {
	IsVirtual() bool
}

// IsVirtual reports whether t is a simulated transport.
func IsVirtual(t Transport) bool {
	if v, ok := t.(Virtual); ok {
		return v.IsVirtual()
	}
	return false
}
