package fes

import (
	"errors"
	"fmt"
)

var (
	// ErrNotEnabled indicates the stimulator is not enabled.
	ErrNotEnabled = errors.New("stimulator not enabled")
	// ErrNotCreated indicates no schedule has been created.
	ErrNotCreated = errors.New("schedule not created")
	// ErrNoScheduleID indicates the board has not assigned a schedule id yet.
	ErrNoScheduleID = errors.New("schedule id not assigned")
	// ErrIDAlreadySet indicates the schedule id was already assigned in
	// this creation cycle.
	ErrIDAlreadySet = errors.New("schedule id already assigned")
	// ErrSchedulerDisabled indicates the scheduler refuses writes.
	ErrSchedulerDisabled = errors.New("scheduler disabled")
	// ErrUnknownChannel indicates the channel is not part of the set or
	// has no event.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrNoResponse indicates the board did not reply in time.
	ErrNoResponse = errors.New("no response from board")
	// ErrFrequency indicates a frequency that has no schedule duration.
	ErrFrequency = errors.New("frequency out of range")
	// ErrInvalidChannel indicates invalid channel parameters.
	ErrInvalidChannel = errors.New("invalid channel")
)

// ChannelSetupError reports the channel whose setup frame was not sent.
type ChannelSetupError struct {
	Index   int
	Channel string
	Err     error
}

// Error implements error.
func (e *ChannelSetupError) Error() string {
	return fmt.Sprintf("setup channel %q (#%d): %v", e.Channel, e.Index, e.Err)
}

// Unwrap returns the cause.
func (e *ChannelSetupError) Unwrap() error {
	return e.Err
}

// BatchError reports the first failing item of a batch operation. Items
// before Index were applied and stay applied.
type BatchError struct {
	Index   int
	Channel string
	Err     error
}

// Error implements error.
func (e *BatchError) Error() string {
	return fmt.Sprintf("item %d (%s): %v", e.Index, e.Channel, e.Err)
}

// Unwrap returns the cause.
func (e *BatchError) Unwrap() error {
	return e.Err
}
