package fes

import (
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/uecu"
)

// SchedulerState is the lifecycle state of a Scheduler.
type SchedulerState int

// Scheduler states.
const (
	StateUninitialized SchedulerState = iota
	StateCreated
	StateHalted
)

func (s SchedulerState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCreated:
		return "created"
	case StateHalted:
		return "halted"
	}
	return fmt.Sprintf("state-%d", int(s))
}

// Scheduler mirrors the board schedule: its id, events and the cached
// amplitude and pulse width of every event.
// It is not safe for concurrent use.
type Scheduler struct {
	w        io.Writer
	state    SchedulerState
	enabled  bool
	id       byte
	hasID    bool
	sync     byte
	duration uint16

	events []*Event
	amps   []int
	pws    []int
}

// NewScheduler creates an uninitialized Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Create deletes the previous schedule on the board and creates a new one
// with the given sync byte and duration (ms). The new id must be set with
// SetID once the board replies.
func (s *Scheduler) Create(w io.Writer, sync byte, duration uint16, settle time.Duration) error {
	prev := byte(1)
	if s.hasID {
		prev = s.id
	}
	if err := uecu.WriteMessage(w, uecu.DeleteSchedule(prev), "Deleting previous schedule"); err != nil {
		return err
	}
	// the previous schedule is gone once the delete frame is out.
	s.state, s.enabled = StateUninitialized, false
	s.id, s.hasID = 0, false
	s.events, s.amps, s.pws = nil, nil, nil
	time.Sleep(settle)
	if err := uecu.WriteMessage(w, uecu.CreateSchedule(sync, duration), "Creating schedule"); err != nil {
		return err
	}
	time.Sleep(settle)

	s.w, s.sync, s.duration = w, sync, duration
	s.state, s.enabled = StateCreated, true
	return nil
}

// SetID records the id assigned by the board. It can be set once per
// Create.
func (s *Scheduler) SetID(id byte) error {
	if s.state == StateUninitialized {
		return ErrNotCreated
	}
	if s.hasID {
		return ErrIDAlreadySet
	}
	s.id, s.hasID = id, true
	return nil
}

// ID returns the schedule id and whether it is assigned.
func (s *Scheduler) ID() (byte, bool) {
	return s.id, s.hasID
}

// State returns the lifecycle state.
func (s *Scheduler) State() SchedulerState {
	return s.state
}

// SyncByte returns the sync byte of the schedule.
func (s *Scheduler) SyncByte() byte {
	return s.sync
}

// Duration returns the schedule period in ms.
func (s *Scheduler) Duration() uint16 {
	return s.duration
}

// Enable allows writes to the board.
func (s *Scheduler) Enable() {
	s.enabled = true
}

// Disable refuses subsequent writes until Enable or Create.
func (s *Scheduler) Disable() {
	s.enabled = false
}

// IsEnabled reports whether writes are allowed.
func (s *Scheduler) IsEnabled() bool {
	return s.enabled
}

func (s *Scheduler) writable() error {
	if s.state == StateUninitialized {
		return ErrNotCreated
	}
	if !s.enabled {
		return ErrSchedulerDisabled
	}
	return nil
}

// AddEvent creates an event for ch on the board. The event is only
// recorded when the frame was sent.
func (s *Scheduler) AddEvent(ch *Channel, settle time.Duration, virtual bool, typ uecu.EventType) error {
	if err := s.writable(); err != nil {
		return err
	}
	if !s.hasID {
		return ErrNoScheduleID
	}
	ev := &Event{
		id:      byte(len(s.events) + 1),
		channel: ch,
		typ:     typ,
		virtual: virtual,
		settle:  settle,
	}
	frame := uecu.CreateEvent(s.id, 0, typ, ch.PortChannel())
	if err := uecu.WriteMessage(s.w, frame, "Adding event on "+ch.Name()); err != nil {
		return err
	}
	s.events = append(s.events, ev)
	s.amps = append(s.amps, 0)
	s.pws = append(s.pws, 0)
	time.Sleep(settle)
	return nil
}

// NumEvents returns the number of events.
func (s *Scheduler) NumEvents() int {
	return len(s.events)
}

// Events returns the events in creation order.
func (s *Scheduler) Events() []*Event {
	return append([]*Event(nil), s.events...)
}

func (s *Scheduler) eventsOf(ch *Channel) []int {
	var indices []int
	for i, ev := range s.events {
		if ev.channel == ch || ev.channel.Name() == ch.Name() {
			indices = append(indices, i)
		}
	}
	return indices
}

// SetAmp caches the amplitude of the events on ch, limited to the
// channel maximum. Nothing is sent until Update.
func (s *Scheduler) SetAmp(ch *Channel, amp int) error {
	indices := s.eventsOf(ch)
	if len(indices) == 0 {
		return fmt.Errorf("%w: no event on %s", ErrUnknownChannel, ch.Name())
	}
	v := int(clampParam(amp, ch.MaxAmplitude()))
	if v != amp {
		glog.Warningf("amplitude %d on %s limited to %d", amp, ch.Name(), v)
	}
	for _, i := range indices {
		s.amps[i] = v
	}
	return nil
}

// Amp returns the cached amplitude of the first event on ch.
func (s *Scheduler) Amp(ch *Channel) (int, error) {
	indices := s.eventsOf(ch)
	if len(indices) == 0 {
		return 0, fmt.Errorf("%w: no event on %s", ErrUnknownChannel, ch.Name())
	}
	return s.amps[indices[0]], nil
}

// WritePW caches the pulse width of the events on ch and sends it to the
// board immediately.
func (s *Scheduler) WritePW(ch *Channel, pw int) error {
	if err := s.writable(); err != nil {
		return err
	}
	indices := s.eventsOf(ch)
	if len(indices) == 0 {
		return fmt.Errorf("%w: no event on %s", ErrUnknownChannel, ch.Name())
	}
	v := int(clampParam(pw, ch.MaxPulseWidth()))
	if v != pw {
		glog.Warningf("pulse width %d on %s limited to %d", pw, ch.Name(), v)
	}
	for _, i := range indices {
		s.pws[i] = v
		if err := s.sendParams(i); err != nil {
			return err
		}
	}
	return nil
}

// PW returns the cached pulse width of the first event on ch.
func (s *Scheduler) PW(ch *Channel) (int, error) {
	indices := s.eventsOf(ch)
	if len(indices) == 0 {
		return 0, fmt.Errorf("%w: no event on %s", ErrUnknownChannel, ch.Name())
	}
	return s.pws[indices[0]], nil
}

func (s *Scheduler) sendParams(i int) error {
	ev := s.events[i]
	frame := uecu.ChangeEventParams(ev.id,
		clampParam(s.pws[i], ev.channel.MaxPulseWidth()),
		clampParam(s.amps[i], ev.channel.MaxAmplitude()))
	return uecu.WriteMessage(s.w, frame, "")
}

// Update sends the cached parameters of all events in creation order and
// stops at the first failure.
func (s *Scheduler) Update() error {
	if err := s.writable(); err != nil {
		return err
	}
	for i := range s.events {
		if err := s.sendParams(i); err != nil {
			return err
		}
	}
	return nil
}

// SendSync sends the sync byte, which starts the schedule.
func (s *Scheduler) SendSync() error {
	if err := s.writable(); err != nil {
		return err
	}
	return uecu.WriteMessage(s.w, uecu.Sync(s.sync), "Sending sync message")
}

// Halt stops the schedule on the board and disables the Scheduler.
// It does nothing if no schedule was created. Without an assigned id
// there is nothing to address, so no frame is sent.
func (s *Scheduler) Halt() error {
	if s.state == StateUninitialized {
		return nil
	}
	if !s.hasID {
		glog.Warning("Schedule id not assigned, halt not sent")
		s.state, s.enabled = StateHalted, false
		return nil
	}
	if err := uecu.WriteMessage(s.w, uecu.HaltSchedule(s.id), "Halting schedule"); err != nil {
		return err
	}
	s.state, s.enabled = StateHalted, false
	return nil
}
