package uecu

import (
	"errors"
	"fmt"
)

var (
	// ErrChecksum indicates a received frame failed checksum verification.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrLength indicates a received frame announced a payload too large
	// for any board message.
	ErrLength = errors.New("invalid payload length")
)

// TransmissionError is returned when a frame could not be written.
type TransmissionError struct {
	Label string
	Type  MsgType
	Err   error
}

// Error implements error.
func (e *TransmissionError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%s: write %s: %v", e.Label, e.Type, e.Err)
	}
	return fmt.Sprintf("write %s: %v", e.Type, e.Err)
}

// Unwrap returns the underlying write error.
func (e *TransmissionError) Unwrap() error {
	return e.Err
}
