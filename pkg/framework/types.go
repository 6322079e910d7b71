package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Message is anything posted to a Loop for the next iteration.
type Message interface{}

// Stage orders the controllers within one loop iteration.
type Stage int

// Stages of an iteration, run in this order.
const (
	// StageInput consumes posted messages.
	StageInput Stage = iota
	// StageActuate sends to the hardware.
	StageActuate
	// StageReport publishes state.
	StageReport

	numStages
)

func (s Stage) String() string {
	switch s {
	case StageInput:
		return "input"
	case StageActuate:
		return "actuate"
	case StageReport:
		return "report"
	}
	return "stage?"
}

// Controller is invoked once per iteration.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error {
	return f(cc)
}

// ControlContext provides the context of the current iteration.
type ControlContext interface {
	Context() context.Context
	// Time is when the iteration started.
	Time() time.Time
	// Iteration counts iterations from 1.
	Iteration() uint64
	Stage() Stage
	// ProcessMessages passes the messages collected when the iteration
	// started to fn. Messages for which fn returns true are taken and not
	// seen by later controllers.
	ProcessMessages(fn func(Message) bool)

	LoopControl
}

// LoopControl exposes access to the loop.
type LoopControl interface {
	// PostMessage enqueues a message for the next iteration.
	PostMessage(Message)
	// TriggerNext runs the next iteration without waiting for the interval.
	TriggerNext()
}
