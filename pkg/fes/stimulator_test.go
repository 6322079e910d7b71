package fes

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/fes.go/pkg/transport"
	"github.com/robotalks/fes.go/pkg/transport/virtual"
	"github.com/robotalks/fes.go/pkg/uecu"
)

func newTestStimulator(tr transport.Transport, chs []*Channel, opts ...Option) *Stimulator {
	opts = append([]Option{
		WithTransport(tr),
		WithSettleDelay(0),
		WithResponseTimeout(20 * time.Millisecond),
	}, opts...)
	return New("test", "COM5", chs, opts...)
}

func TestDurationFor(t *testing.T) {
	tests := []struct {
		freq     float64
		duration uint16
		err      bool
	}{
		{20, 50, false},
		{40, 25, false},
		{3, 333, false},
		{1, 1000, false},
		{0.02, 50000, false},
		{2000, 1, false},
		{0, DefaultDuration, false},
		{-10, DefaultDuration, false},
		{math.NaN(), DefaultDuration, false},
		{0.01, 0, true},
		{3000, 0, true},
		{math.Inf(1), 0, true},
	}
	for _, test := range tests {
		d, err := DurationFor(test.freq)
		if test.err {
			require.ErrorIs(t, err, ErrFrequency, "%v", test.freq)
			continue
		}
		require.NoError(t, err, "%v", test.freq)
		require.Equal(t, test.duration, d, "%v", test.freq)
	}
}

func TestStimulatorVirtualBoard(t *testing.T) {
	tr := virtual.New()
	chs := testChannels()
	s := newTestStimulator(tr, chs)
	require.True(t, s.IsVirtual())

	require.NoError(t, s.Enable())
	require.True(t, s.IsEnabled())
	require.NoError(t, s.CreateScheduler(0x05, 20))
	id, ok := s.Scheduler().ID()
	require.True(t, ok)
	require.Equal(t, byte(1), id)

	require.NoError(t, s.AddEvents(chs))
	require.NoError(t, s.SetAmps(chs, []int{15, 30}))
	require.NoError(t, s.WritePW(chs[0], 250))
	require.NoError(t, s.Update())
	require.NoError(t, s.Begin())

	for _, ev := range s.Scheduler().Events() {
		require.True(t, ev.IsVirtual())
	}

	sched, ok := tr.Board.Schedule()
	require.True(t, ok)
	require.Equal(t, uint16(50), sched.Duration)
	require.True(t, sched.Running)
	require.Len(t, sched.Events, 2)
	require.Equal(t, byte(15), sched.Events[0].Amplitude)
	require.Equal(t, byte(250), sched.Events[0].PulseWidth)
	require.Equal(t, byte(20), sched.Events[1].Amplitude)
	require.Equal(t, byte(0), sched.Events[1].PulseWidth)

	setup, ok := tr.Board.Channel(uecu.PortChannel(1))
	require.True(t, ok)
	require.Equal(t, byte(255), setup.PWLimit)
	require.Equal(t, byte(0x23), setup.AnodeCathode)

	st := s.Snapshot()
	require.True(t, st.Enabled)
	require.True(t, st.Running)
	require.True(t, st.Scheduled)
	require.Equal(t, byte(1), st.ScheduleID)
	require.Equal(t, []EventStatus{
		{Channel: "ch1", Amplitude: 15, PulseWidth: 250, MaxAmplitude: 20, MaxPulseWidth: 300},
		{Channel: "ch2", Amplitude: 20, PulseWidth: 0, MaxAmplitude: 20, MaxPulseWidth: 300},
	}, st.Events)

	require.NoError(t, s.Disable())
	require.False(t, tr.IsOpen())
	sched, _ = tr.Board.Schedule()
	require.True(t, sched.Halted)
	require.Zero(t, tr.Board.Dropped())
}

func TestStimulatorFrameSequence(t *testing.T) {
	tr := newFakeTransport()
	chs := testChannels()
	s := newTestStimulator(tr, chs)
	require.NoError(t, s.Enable())
	require.NoError(t, s.CreateScheduler(0x05, 20))
	require.NoError(t, s.AddEvents(chs))
	require.NoError(t, s.SetAmp(chs[0], 15))
	require.NoError(t, s.Update())
	require.NoError(t, s.Begin())
	require.NoError(t, s.Disable())

	require.Equal(t, []uecu.MsgType{
		uecu.MsgChannelSetup,
		uecu.MsgChannelSetup,
		uecu.MsgDeleteSchedule,
		uecu.MsgCreateSchedule,
		uecu.MsgCreateEvent,
		uecu.MsgCreateEvent,
		uecu.MsgChangeEventParams,
		uecu.MsgChangeEventParams,
		uecu.MsgSync,
		uecu.MsgHaltSchedule,
	}, tr.types())
	require.Equal(t, uecu.CreateSchedule(0x05, 50), tr.frames[3])
	require.Equal(t, uecu.ChangeEventParams(1, 0, 15), tr.frames[6])
	require.Equal(t, uecu.HaltSchedule(1), tr.frames[9])
}

func TestStimulatorUpdateRepeatable(t *testing.T) {
	tr := newFakeTransport()
	chs := testChannels()
	s := newTestStimulator(tr, chs)
	require.NoError(t, s.Enable())
	require.NoError(t, s.CreateScheduler(0x05, 20))
	require.NoError(t, s.AddEvents(chs))
	require.NoError(t, s.SetAmps(chs, []int{5, 6}))
	require.NoError(t, s.WritePWs(chs, []int{100, 120}))

	tr.frames = nil
	require.NoError(t, s.Update())
	first := tr.frames
	tr.frames = nil
	require.NoError(t, s.Update())
	require.Equal(t, first, tr.frames)
	require.Equal(t, []uecu.Frame{
		uecu.ChangeEventParams(1, 100, 5),
		uecu.ChangeEventParams(2, 120, 6),
	}, first)
}

func TestStimulatorDisableTwice(t *testing.T) {
	tr := newFakeTransport()
	s := newTestStimulator(tr, testChannels())
	require.NoError(t, s.Enable())
	require.NoError(t, s.CreateScheduler(0x05, 20))
	require.NoError(t, s.Disable())
	require.NoError(t, s.Disable())
	require.NoError(t, s.Close())
	require.Len(t, tr.framesOf(uecu.MsgHaltSchedule), 1)
	require.Equal(t, 1, tr.closes)
	require.False(t, s.IsEnabled())
	require.False(t, s.Snapshot().Enabled)
}

func TestStimulatorNotEnabled(t *testing.T) {
	tr := newFakeTransport()
	chs := testChannels()
	s := newTestStimulator(tr, chs)
	require.NoError(t, s.Disable())
	require.ErrorIs(t, s.CreateScheduler(0x05, 20), ErrNotEnabled)
	require.ErrorIs(t, s.AddEvent(chs[0]), ErrNotEnabled)
	require.ErrorIs(t, s.AddEvents(chs), ErrNotEnabled)
	require.ErrorIs(t, s.Begin(), ErrNotEnabled)
	require.ErrorIs(t, s.SetAmp(chs[0], 1), ErrNotEnabled)
	require.ErrorIs(t, s.WritePW(chs[0], 1), ErrNotEnabled)
	require.ErrorIs(t, s.Update(), ErrNotEnabled)
	require.ErrorIs(t, s.Halt(), ErrNotEnabled)
	require.Empty(t, tr.frames)
	require.Zero(t, tr.opens)
	require.Zero(t, tr.closes)
}

func TestStimulatorEnableFailures(t *testing.T) {
	chs := testChannels()

	tr := newFakeTransport()
	tr.openErr = transport.ErrOpen
	s := newTestStimulator(tr, chs)
	require.ErrorIs(t, s.Enable(), transport.ErrOpen)
	require.False(t, s.IsEnabled())
	require.Zero(t, tr.closes)

	tr = newFakeTransport()
	tr.configErr = transport.ErrConfig
	s = newTestStimulator(tr, chs)
	require.ErrorIs(t, s.Enable(), transport.ErrConfig)
	require.False(t, s.IsEnabled())
	require.Equal(t, 1, tr.closes)
	require.Empty(t, tr.frames)

	tr = newFakeTransport()
	tr.failOn = func(f uecu.Frame) bool {
		return f.Type == uecu.MsgChannelSetup && f.Payload[0] == uecu.PortChannel(1)
	}
	s = newTestStimulator(tr, chs)
	err := s.Enable()
	var setupErr *ChannelSetupError
	require.True(t, errors.As(err, &setupErr))
	require.Equal(t, "ch2", setupErr.Channel)
	require.False(t, s.IsEnabled())
	require.Equal(t, 1, tr.closes)
	require.Equal(t, []uecu.Frame{chs[0].SetupFrame()}, tr.frames)

	tr.failOn = nil
	require.NoError(t, s.Enable())
	require.True(t, s.IsEnabled())
	require.Equal(t, 2, tr.opens)
}

func TestStimulatorNoResponse(t *testing.T) {
	tr := newFakeTransport()
	tr.noReply = true
	s := newTestStimulator(tr, testChannels())
	require.NoError(t, s.Enable())
	tr.reads = 0
	require.ErrorIs(t, s.CreateScheduler(0x05, 20), ErrNoResponse)
	require.Less(t, tr.reads, 100, "idle reads are paced")
	_, ok := s.Scheduler().ID()
	require.False(t, ok)
	require.ErrorIs(t, s.AddEvent(s.Channels()[0]), ErrNoScheduleID)
}

func TestStimulatorFailedRecreate(t *testing.T) {
	tests := []struct {
		name string
		fail func(*fakeTransport)
		err  error
	}{
		{"no reply", func(tr *fakeTransport) { tr.noReply = true }, ErrNoResponse},
		{"create fails", func(tr *fakeTransport) { tr.failOn = failType(uecu.MsgCreateSchedule) }, errBroken},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tr := newFakeTransport()
			chs := testChannels()
			s := newTestStimulator(tr, chs)
			require.NoError(t, s.Enable())
			require.NoError(t, s.CreateScheduler(0x05, 20))
			require.NoError(t, s.AddEvents(chs))
			require.NoError(t, s.Update())
			require.NoError(t, s.Begin())
			st := s.Snapshot()
			require.True(t, st.Scheduled)
			require.Equal(t, byte(1), st.ScheduleID)

			test.fail(tr)
			require.ErrorIs(t, s.CreateScheduler(0x05, 40), test.err)
			st = s.Snapshot()
			require.False(t, st.Scheduled)
			require.Zero(t, st.ScheduleID)
			require.False(t, st.Running)
			require.Empty(t, st.Events)

			tr.frames = nil
			require.NoError(t, s.Disable())
			require.Empty(t, tr.framesOf(uecu.MsgHaltSchedule), "no halt without a schedule id")
			require.Equal(t, 1, tr.closes)
		})
	}
}

func TestStimulatorIgnoresUnrelatedReplies(t *testing.T) {
	tr := newFakeTransport()
	s := newTestStimulator(tr, testChannels())
	require.NoError(t, s.Enable())
	tr.rx.Write([]byte{0xff, 0x00})
	tr.rx.Write(uecu.NewReply(uecu.MsgSync, 0x05).Bytes())
	tr.nextID = 9
	require.NoError(t, s.CreateScheduler(0x05, 20))
	id, _ := s.Scheduler().ID()
	require.Equal(t, byte(9), id)
}

func TestStimulatorAddEventsBatch(t *testing.T) {
	tr := newFakeTransport()
	chs := testChannels()
	s := newTestStimulator(tr, chs)
	require.NoError(t, s.Enable())
	require.NoError(t, s.CreateScheduler(0x05, 20))
	tr.failOn = func(f uecu.Frame) bool {
		return f.Type == uecu.MsgCreateEvent && f.Payload[5] == uecu.PortChannel(1)
	}
	err := s.AddEvents(chs)
	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	require.Equal(t, 1, batchErr.Index)
	require.Equal(t, "ch2", batchErr.Channel)
	require.ErrorIs(t, err, errBroken)
	require.Equal(t, 1, s.Scheduler().NumEvents())
}

func TestStimulatorUnknownChannel(t *testing.T) {
	tr := newFakeTransport()
	s := newTestStimulator(tr, testChannels())
	require.NoError(t, s.Enable())
	require.NoError(t, s.CreateScheduler(0x05, 20))
	foreign := MustNewChannel(ChannelSpec{Name: "ch1", Index: 0, MaxAmplitude: 20, MaxPulseWidth: 300})
	require.ErrorIs(t, s.AddEvent(foreign), ErrUnknownChannel)
	require.ErrorIs(t, s.UpdateMaxAmp(foreign, 10), ErrUnknownChannel)
	_, err := s.Channel("nope")
	require.ErrorIs(t, err, ErrUnknownChannel)
	ch, err := s.Channel("ch2")
	require.NoError(t, err)
	require.Equal(t, 1, ch.Index())
	require.Error(t, s.SetAmps(s.Channels(), []int{1}))
}

func TestStimulatorUpdateMaxLimits(t *testing.T) {
	tr := newFakeTransport()
	chs := testChannels()
	s := newTestStimulator(tr, chs)
	require.NoError(t, s.Enable())
	require.NoError(t, s.CreateScheduler(0x05, 20))
	require.NoError(t, s.AddEvent(chs[0]))
	require.NoError(t, s.SetAmp(chs[0], 15))
	require.NoError(t, s.WritePW(chs[0], 200))

	require.NoError(t, s.UpdateMaxAmp(chs[0], 10))
	require.NoError(t, s.UpdateMaxPW(chs[0], 150))
	require.Error(t, s.UpdateMaxAmp(chs[0], -1))
	tr.frames = nil
	require.NoError(t, s.Update())
	require.Equal(t, []uecu.Frame{uecu.ChangeEventParams(1, 150, 10)}, tr.frames)
	st := s.Snapshot()
	require.Equal(t, 10, st.Events[0].MaxAmplitude)
	require.Equal(t, 150, st.Events[0].MaxPulseWidth)
	require.Equal(t, 10, st.Events[0].Amplitude, "snapshot shows what was sent")
	require.Equal(t, 150, st.Events[0].PulseWidth)
}

func TestStimulatorUpdateDrains(t *testing.T) {
	tr := newFakeTransport()
	chs := testChannels()
	s := newTestStimulator(tr, chs)
	require.NoError(t, s.Enable())
	require.NoError(t, s.CreateScheduler(0x05, 20))
	require.NoError(t, s.AddEvent(chs[0]))
	tr.rx.Write([]byte{0x80, 0x04, 0x19, 0x00, 0x62, 0x01, 0x02})
	require.NoError(t, s.Update())
	require.Zero(t, tr.rx.Len())
}

func TestStimulatorHalt(t *testing.T) {
	tr := newFakeTransport()
	s := newTestStimulator(tr, testChannels())
	require.NoError(t, s.Enable())
	require.NoError(t, s.CreateScheduler(0x05, 20))
	require.NoError(t, s.Begin())
	require.True(t, s.Snapshot().Running)
	require.NoError(t, s.Halt())
	require.False(t, s.Snapshot().Running)
	require.Equal(t, StateHalted, s.Scheduler().State())
	require.True(t, s.IsEnabled())
	require.ErrorIs(t, s.Begin(), ErrSchedulerDisabled)

	// a new schedule can be started after halting.
	require.NoError(t, s.CreateScheduler(0x05, 40))
	require.NoError(t, s.Begin())
	require.Equal(t, uecu.DeleteSchedule(1), tr.framesOf(uecu.MsgDeleteSchedule)[1])
}
