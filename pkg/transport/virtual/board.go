// Package virtual simulates a stimulation board.
package virtual

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/uecu"
)

// ChannelSetup is the configuration of one board channel.
type ChannelSetup struct {
	PortChannel     byte
	AmpLimit        byte
	PWLimit         byte
	InterphaseDelay uint16
	Aspect          byte
	AnodeCathode    byte
}

// Event is one event of the board schedule.
type Event struct {
	ID          byte
	Type        uecu.EventType
	PortChannel byte
	Offset      uint16
	PulseWidth  byte
	Amplitude   byte
}

// Schedule is the board schedule.
type Schedule struct {
	ID       byte
	Sync     byte
	Duration uint16
	Events   []Event
	Running  bool
	Halted   bool
}

// DefaultHistory is the number of received frames a Board keeps.
const DefaultHistory = 256

// Board is the simulated board. It consumes host frames and produces
// the replies the firmware would send.
type Board struct {
	// History limits the frames kept for Frames. Set before use.
	History int

	lock     sync.Mutex
	parser   uecu.Parser
	channels map[byte]ChannelSetup
	schedule *Schedule
	lastID   byte
	frames   []uecu.Frame
	next     int
	received int
	counts   map[uecu.MsgType]int
	dropped  int
	syncs    int
}

// NewBoard creates a Board.
func NewBoard() *Board {
	return &Board{
		History:  DefaultHistory,
		parser:   uecu.Parser{Dest: uecu.AddrBoard},
		channels: make(map[byte]ChannelSetup),
		counts:   make(map[uecu.MsgType]int),
	}
}

// Receive consumes bytes sent by the host and returns the reply bytes.
func (b *Board) Receive(data []byte) []byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	frames, dropped := b.parser.Feed(data)
	b.dropped += dropped
	var out []byte
	for _, f := range frames {
		b.record(f)
		for _, reply := range b.handle(f) {
			out = append(out, reply.Bytes()...)
		}
	}
	return out
}

func (b *Board) record(f uecu.Frame) {
	b.received++
	b.counts[f.Type]++
	switch {
	case b.History <= 0:
	case len(b.frames) < b.History:
		b.frames = append(b.frames, f)
	default:
		b.frames[b.next] = f
		b.next = (b.next + 1) % len(b.frames)
	}
}

// Serve runs the board on rw until ctx is done or rw fails. rw is
// expected to return from Read periodically (e.g. a read timeout).
func (b *Board) Serve(ctx context.Context, rw io.ReadWriter) error {
	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := rw.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if reply := b.Receive(buf[:n]); len(reply) > 0 {
			if _, err := rw.Write(reply); err != nil {
				return err
			}
		}
	}
}

func (b *Board) handle(f uecu.Frame) (replies []uecu.Frame) {
	glog.V(1).Infof("board RX %s", f)
	p := f.Payload
	switch f.Type {
	case uecu.MsgChannelSetup:
		if len(p) != 7 {
			break
		}
		b.channels[p[0]] = ChannelSetup{
			PortChannel:     p[0],
			AmpLimit:        p[1],
			PWLimit:         p[2],
			InterphaseDelay: uint16(p[3])<<8 | uint16(p[4]),
			Aspect:          p[5],
			AnodeCathode:    p[6],
		}
	case uecu.MsgDeleteSchedule:
		if len(p) == 1 && b.schedule != nil && b.schedule.ID == p[0] {
			b.schedule = nil
		}
	case uecu.MsgCreateSchedule:
		if len(p) != 3 {
			break
		}
		if b.lastID++; b.lastID == 0 {
			b.lastID = 1
		}
		b.schedule = &Schedule{ID: b.lastID, Sync: p[0], Duration: uint16(p[1])<<8 | uint16(p[2])}
		replies = append(replies, uecu.NewReply(uecu.MsgCreateSchedule, b.lastID))
	case uecu.MsgCreateEvent:
		if len(p) != 9 || b.schedule == nil || b.schedule.ID != p[0] {
			break
		}
		b.schedule.Events = append(b.schedule.Events, Event{
			ID:          byte(len(b.schedule.Events) + 1),
			Offset:      uint16(p[1])<<8 | uint16(p[2]),
			Type:        uecu.EventType(p[4]),
			PortChannel: p[5],
		})
	case uecu.MsgChangeEventParams:
		if len(p) != 4 || b.schedule == nil {
			break
		}
		for i := range b.schedule.Events {
			ev := &b.schedule.Events[i]
			if ev.ID != p[0] {
				continue
			}
			ev.PulseWidth, ev.Amplitude = p[1], p[2]
			// the firmware enforces the channel limits.
			if ch, ok := b.channels[ev.PortChannel]; ok {
				if ev.PulseWidth > ch.PWLimit {
					ev.PulseWidth = ch.PWLimit
				}
				if ev.Amplitude > ch.AmpLimit {
					ev.Amplitude = ch.AmpLimit
				}
			}
		}
	case uecu.MsgHaltSchedule:
		if len(p) == 1 && b.schedule != nil && b.schedule.ID == p[0] {
			b.schedule.Running, b.schedule.Halted = false, true
		}
	case uecu.MsgSync:
		if len(p) == 1 && b.schedule != nil && b.schedule.Sync == p[0] {
			b.schedule.Running, b.schedule.Halted = true, false
			b.syncs++
		}
	default:
		glog.Warningf("board: unknown message %s", f)
	}
	return
}

// Frames returns the most recent frames, oldest first.
func (b *Board) Frames() []uecu.Frame {
	b.lock.Lock()
	defer b.lock.Unlock()
	frames := make([]uecu.Frame, 0, len(b.frames))
	frames = append(frames, b.frames[b.next:]...)
	return append(frames, b.frames[:b.next]...)
}

// Received returns the number of frames received so far.
func (b *Board) Received() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.received
}

// Count returns the number of received frames of a message type.
func (b *Board) Count(typ uecu.MsgType) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.counts[typ]
}

// Dropped returns the number of frames dropped by the parser.
func (b *Board) Dropped() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.dropped
}

// Channel returns the setup of a channel.
func (b *Board) Channel(portChannel byte) (ChannelSetup, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	ch, ok := b.channels[portChannel]
	return ch, ok
}

// Schedule returns a copy of the current schedule.
func (b *Board) Schedule() (Schedule, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.schedule == nil {
		return Schedule{}, false
	}
	s := *b.schedule
	s.Events = append([]Event(nil), s.Events...)
	return s, true
}

// Syncs returns how many sync triggers started the schedule.
func (b *Board) Syncs() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.syncs
}
