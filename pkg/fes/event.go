package fes

import (
	"time"

	"github.com/robotalks/fes.go/pkg/uecu"
)

// Event is one stimulation event in a schedule. The board numbers events
// in creation order starting from 1.
type Event struct {
	id      byte
	channel *Channel
	typ     uecu.EventType
	virtual bool
	settle  time.Duration
}

// ID returns the board event id.
func (e *Event) ID() byte { return e.id }

// Channel returns the stimulated channel.
func (e *Event) Channel() *Channel { return e.channel }

// Type returns the event type.
func (e *Event) Type() uecu.EventType { return e.typ }

// IsVirtual reports whether the event was created on a simulated board.
func (e *Event) IsVirtual() bool { return e.virtual }

// SettleDelay returns the delay applied after creating the event.
func (e *Event) SettleDelay() time.Duration { return e.settle }
