package fes

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/transport"
	"github.com/robotalks/fes.go/pkg/transport/serial"
	"github.com/robotalks/fes.go/pkg/uecu"
)

// Defaults of a Stimulator.
const (
	DefaultSettleDelay     = 10 * time.Millisecond
	DefaultResponseTimeout = 500 * time.Millisecond
	// DefaultDuration is the schedule period (ms) used when no valid
	// frequency is given.
	DefaultDuration = 50
)

// drainLimit bounds the bytes consumed after an update.
const drainLimit = 4096

// readPause is the wait between reads returning no data.
const readPause = time.Millisecond

// Option configures a Stimulator.
type Option func(*Stimulator)

// WithTransport replaces the serial port transport.
func WithTransport(t transport.Transport) Option {
	return func(s *Stimulator) { s.t = t }
}

// WithConfig overrides the line configuration.
func WithConfig(conf transport.Config) Option {
	return func(s *Stimulator) { s.conf = conf }
}

// WithSettleDelay sets the delay after setup and schedule frames.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Stimulator) { s.settle = d }
}

// WithResponseTimeout bounds the wait for the schedule id reply.
func WithResponseTimeout(d time.Duration) Option {
	return func(s *Stimulator) { s.responseTimeout = d }
}

// WithMetrics instruments the transport.
func WithMetrics(m *Metrics) Option {
	return func(s *Stimulator) { s.metrics = m }
}

// EventStatus is the cached state of one event.
type EventStatus struct {
	Channel       string `json:"channel"`
	Amplitude     int    `json:"amp"`
	PulseWidth    int    `json:"pw"`
	MaxAmplitude  int    `json:"max_amp"`
	MaxPulseWidth int    `json:"max_pw"`
}

// Status is a consistent copy of the stimulator state.
type Status struct {
	Name        string        `json:"name"`
	Enabled     bool          `json:"enabled"`
	Scheduled   bool          `json:"scheduled"`
	ScheduleID  byte          `json:"schedule_id"`
	Duration    uint16        `json:"duration"`
	Running     bool          `json:"running"`
	Events      []EventStatus `json:"events"`
	LastUpdated time.Time     `json:"last_updated"`
}

// Stimulator drives one board: it owns the transport, the channel set
// and the Scheduler. Operations are expected from a single goroutine,
// Snapshot may be called from any goroutine.
type Stimulator struct {
	name     string
	port     string
	t        transport.Transport
	conf     transport.Config
	channels []*Channel
	sched    *Scheduler
	enabled  bool
	metrics  *Metrics

	settle          time.Duration
	responseTimeout time.Duration

	lock   sync.Mutex
	status Status
}

// New creates a Stimulator for the board on port. The transport is a
// serial port unless WithTransport is given.
func New(name, port string, channels []*Channel, opts ...Option) *Stimulator {
	s := &Stimulator{
		name:            name,
		port:            port,
		conf:            transport.DefaultConfig,
		channels:        channels,
		sched:           NewScheduler(),
		settle:          DefaultSettleDelay,
		responseTimeout: DefaultResponseTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.t == nil {
		s.t = serial.New()
	}
	if s.metrics != nil {
		s.t = s.metrics.Instrument(s.t)
	}
	s.status.Name = name
	for _, ch := range channels {
		s.status.Events = append(s.status.Events, EventStatus{
			Channel:       ch.Name(),
			MaxAmplitude:  ch.MaxAmplitude(),
			MaxPulseWidth: ch.MaxPulseWidth(),
		})
	}
	return s
}

// Name returns the stimulator name.
func (s *Stimulator) Name() string { return s.name }

// Port returns the port name.
func (s *Stimulator) Port() string { return s.port }

// Channels returns the channel set.
func (s *Stimulator) Channels() []*Channel {
	return append([]*Channel(nil), s.channels...)
}

// Channel finds a channel by name.
func (s *Stimulator) Channel(name string) (*Channel, error) {
	for _, ch := range s.channels {
		if ch.Name() == name {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
}

// Scheduler returns the scheduler.
func (s *Stimulator) Scheduler() *Scheduler { return s.sched }

// IsEnabled reports whether the board is open and configured.
func (s *Stimulator) IsEnabled() bool { return s.enabled }

// IsVirtual reports whether the transport is a simulated board.
func (s *Stimulator) IsVirtual() bool { return transport.IsVirtual(s.t) }

// Enable opens and configures the transport and sets up all channels.
// On failure the transport is closed again; channels configured before
// the failing one keep their setup on the board.
func (s *Stimulator) Enable() error {
	if s.enabled {
		return nil
	}
	if err := s.t.Open(s.port); err != nil {
		glog.Errorf("Failed to open %s: %v", s.port, err)
		return err
	}
	glog.Infof("Opened %s for stimulator %s", s.port, s.name)
	if err := s.t.Configure(s.conf); err != nil {
		glog.Errorf("Failed to configure %s: %v", s.port, err)
		s.t.Close()
		return err
	}
	if err := s.initializeBoard(); err != nil {
		glog.Errorf("Failed to initialize board: %v", err)
		s.t.Close()
		return err
	}
	s.enabled = true
	s.setStatus(func(st *Status) { st.Enabled = true })
	glog.Infof("Stimulator %s enabled", s.name)
	return nil
}

func (s *Stimulator) initializeBoard() error {
	for _, ch := range s.channels {
		if err := ch.Setup(s.t, s.settle); err != nil {
			return err
		}
	}
	return nil
}

// Disable halts the schedule and closes the transport. It does nothing
// when not enabled.
func (s *Stimulator) Disable() error {
	if !s.enabled {
		glog.V(1).Infof("Stimulator %s not enabled", s.name)
		return nil
	}
	haltErr := s.sched.Halt()
	s.sched.Disable()
	closeErr := s.t.Close()
	s.enabled = false
	s.setStatus(func(st *Status) {
		st.Enabled, st.Running = false, false
	})
	glog.Infof("Stimulator %s disabled", s.name)
	return errors.Join(haltErr, closeErr)
}

// Close implements io.Closer.
func (s *Stimulator) Close() error {
	return s.Disable()
}

// DurationFor converts a frequency (Hz) into the schedule period (ms).
// Frequencies not above zero select DefaultDuration.
func DurationFor(frequency float64) (uint16, error) {
	if !(frequency > 0) {
		return DefaultDuration, nil
	}
	d := math.Round(1000 / frequency)
	if d < 1 || d > math.MaxUint16 {
		return 0, fmt.Errorf("%w: %v Hz", ErrFrequency, frequency)
	}
	return uint16(d), nil
}

// CreateScheduler creates a new schedule on the board and waits for the
// assigned schedule id.
func (s *Stimulator) CreateScheduler(sync byte, frequency float64) error {
	if !s.enabled {
		glog.Error("Stimulator not enabled, schedule not created")
		return ErrNotEnabled
	}
	duration, err := DurationFor(frequency)
	if err != nil {
		return err
	}
	err = s.sched.Create(s.t, sync, duration, s.settle)
	// the old schedule is gone unless the delete frame failed.
	if err == nil || s.sched.State() == StateUninitialized {
		s.setStatus(func(st *Status) {
			st.Scheduled, st.ScheduleID, st.Duration, st.Running = false, 0, 0, false
			st.Events = nil
		})
	}
	if err != nil {
		return err
	}
	id, err := s.readScheduleID()
	if err != nil {
		glog.Errorf("Schedule id not received: %v", err)
		return err
	}
	if err := s.sched.SetID(id); err != nil {
		return err
	}
	s.setStatus(func(st *Status) {
		st.Scheduled, st.ScheduleID, st.Duration = true, id, duration
	})
	glog.Infof("Schedule %d created, period %dms", id, duration)
	return nil
}

func (s *Stimulator) readScheduleID() (byte, error) {
	parser := uecu.Parser{Dest: uecu.AddrHost}
	buf := make([]byte, uecu.HeaderLen+uecu.MaxPayload+1)
	deadline := time.Now().Add(s.responseTimeout)
	for {
		n, err := s.t.Read(buf)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			if time.Now().After(deadline) {
				return 0, ErrNoResponse
			}
			time.Sleep(readPause)
			continue
		}
		for _, b := range buf[:n] {
			pr := parser.Parse(b)
			if pr.Err != nil {
				glog.Warningf("Reply dropped: %v", pr.Err)
				continue
			}
			if f := pr.Frame; f != nil {
				if f.Type == uecu.MsgCreateSchedule && len(f.Payload) > 0 {
					return f.Payload[0], nil
				}
				glog.V(1).Infof("Ignored %s", f)
			}
		}
		if time.Now().After(deadline) {
			return 0, ErrNoResponse
		}
	}
}

func (s *Stimulator) member(ch *Channel) error {
	for _, c := range s.channels {
		if c == ch {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownChannel, ch.Name())
}

// AddEvent adds a stimulation event for ch.
func (s *Stimulator) AddEvent(ch *Channel) error {
	return s.AddEventType(ch, uecu.EventStim)
}

// AddEventType adds an event of the given type for ch.
func (s *Stimulator) AddEventType(ch *Channel, typ uecu.EventType) error {
	if !s.enabled {
		return ErrNotEnabled
	}
	if err := s.member(ch); err != nil {
		return err
	}
	return s.sched.AddEvent(ch, s.settle, s.IsVirtual(), typ)
}

// AddEvents adds a stimulation event for each channel, stopping at the
// first failure.
func (s *Stimulator) AddEvents(chs []*Channel) error {
	if !s.enabled {
		return ErrNotEnabled
	}
	for i, ch := range chs {
		if err := s.AddEvent(ch); err != nil {
			return &BatchError{Index: i, Channel: ch.Name(), Err: err}
		}
	}
	return nil
}

// Begin starts the schedule by sending the sync byte.
func (s *Stimulator) Begin() error {
	if !s.enabled {
		return ErrNotEnabled
	}
	if err := s.sched.SendSync(); err != nil {
		return err
	}
	s.setStatus(func(st *Status) { st.Running = true })
	return nil
}

// SetAmp caches the amplitude for ch. It is sent by Update.
func (s *Stimulator) SetAmp(ch *Channel, amp int) error {
	if !s.enabled {
		return ErrNotEnabled
	}
	return s.sched.SetAmp(ch, amp)
}

// SetAmps caches amplitudes of multiple channels.
func (s *Stimulator) SetAmps(chs []*Channel, amps []int) error {
	if len(chs) != len(amps) {
		return fmt.Errorf("%d channels with %d amplitudes", len(chs), len(amps))
	}
	for i, ch := range chs {
		if err := s.SetAmp(ch, amps[i]); err != nil {
			return &BatchError{Index: i, Channel: ch.Name(), Err: err}
		}
	}
	return nil
}

// WritePW sets and sends the pulse width for ch.
func (s *Stimulator) WritePW(ch *Channel, pw int) error {
	if !s.enabled {
		return ErrNotEnabled
	}
	return s.sched.WritePW(ch, pw)
}

// WritePWs sets and sends pulse widths of multiple channels.
func (s *Stimulator) WritePWs(chs []*Channel, pws []int) error {
	if len(chs) != len(pws) {
		return fmt.Errorf("%d channels with %d pulse widths", len(chs), len(pws))
	}
	for i, ch := range chs {
		if err := s.WritePW(ch, pws[i]); err != nil {
			return &BatchError{Index: i, Channel: ch.Name(), Err: err}
		}
	}
	return nil
}

// UpdateMaxAmp changes the amplitude limit of ch. The board keeps the
// limit from channel setup; the host limit applies to the next Update.
func (s *Stimulator) UpdateMaxAmp(ch *Channel, max int) error {
	if err := s.member(ch); err != nil {
		return err
	}
	if max < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidChannel, max)
	}
	s.lock.Lock()
	ch.SetMaxAmplitude(max)
	s.lock.Unlock()
	return nil
}

// UpdateMaxPW changes the pulse width limit of ch.
func (s *Stimulator) UpdateMaxPW(ch *Channel, max int) error {
	if err := s.member(ch); err != nil {
		return err
	}
	if max < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidChannel, max)
	}
	s.lock.Lock()
	ch.SetMaxPulseWidth(max)
	s.lock.Unlock()
	return nil
}

// Halt stops the schedule without closing the transport.
func (s *Stimulator) Halt() error {
	if !s.enabled {
		return ErrNotEnabled
	}
	if err := s.sched.Halt(); err != nil {
		return err
	}
	s.setStatus(func(st *Status) { st.Running = false })
	return nil
}

// Update sends the cached parameters of all events and then consumes
// whatever the board sent back.
func (s *Stimulator) Update() error {
	if !s.enabled {
		return ErrNotEnabled
	}
	s.lock.Lock()
	events := s.sched.events
	st := make([]EventStatus, len(events))
	for i, ev := range events {
		maxAmp, maxPW := ev.channel.MaxAmplitude(), ev.channel.MaxPulseWidth()
		st[i] = EventStatus{
			Channel:       ev.channel.Name(),
			Amplitude:     int(clampParam(s.sched.amps[i], maxAmp)),
			PulseWidth:    int(clampParam(s.sched.pws[i], maxPW)),
			MaxAmplitude:  maxAmp,
			MaxPulseWidth: maxPW,
		}
	}
	s.status.Events, s.status.LastUpdated = st, time.Now()
	s.lock.Unlock()

	err := s.sched.Update()
	s.drain()
	return err
}

// drain reads until the board goes quiet and logs what was received.
func (s *Stimulator) drain() int {
	buf := make([]byte, 64)
	total := 0
	for total < drainLimit {
		n, err := s.t.Read(buf)
		if err != nil {
			glog.Warningf("Read failed: %v", err)
			break
		}
		if n == 0 {
			break
		}
		if glog.V(2) {
			glog.Infof("Message: %s", hexString(buf[:n]))
		}
		total += n
	}
	return total
}

func hexString(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "0x%02x", b)
	}
	return sb.String()
}

func (s *Stimulator) setStatus(fn func(*Status)) {
	s.lock.Lock()
	fn(&s.status)
	s.lock.Unlock()
}

// Snapshot returns a copy of the state cached at the last Update.
func (s *Stimulator) Snapshot() Status {
	s.lock.Lock()
	defer s.lock.Unlock()
	st := s.status
	st.Events = append([]EventStatus(nil), s.status.Events...)
	return st
}
