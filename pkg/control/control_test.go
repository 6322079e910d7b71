package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/fes.go/pkg/fes"
	fx "github.com/robotalks/fes.go/pkg/framework"
	"github.com/robotalks/fes.go/pkg/telemetry"
	"github.com/robotalks/fes.go/pkg/transport/virtual"
)

func newStimulator(tr *virtual.Transport) *fes.Stimulator {
	chs := []*fes.Channel{
		fes.MustNewChannel(fes.ChannelSpec{Name: "ch1", Index: 0, MaxAmplitude: 20, MaxPulseWidth: 250, Aspect: fes.Symmetric, AnodeCathode: 0x01}),
		fes.MustNewChannel(fes.ChannelSpec{Name: "ch2", Index: 1, MaxAmplitude: 20, MaxPulseWidth: 250, Aspect: fes.Symmetric, AnodeCathode: 0x23}),
	}
	return fes.New("test", "COM5", chs,
		fes.WithTransport(tr),
		fes.WithSettleDelay(0),
		fes.WithResponseTimeout(20*time.Millisecond))
}

type recordingSink struct {
	statuses []fes.Status
}

func (r *recordingSink) PublishStatus(st fes.Status) error {
	r.statuses = append(r.statuses, st)
	return nil
}

func TestStart(t *testing.T) {
	tr := virtual.New()
	s := newStimulator(tr)
	require.NoError(t, Start(s, 0x05, 20))
	defer s.Disable()
	sched, ok := tr.Board.Schedule()
	require.True(t, ok)
	require.True(t, sched.Running)
	require.Len(t, sched.Events, 2)
	require.Equal(t, uint16(50), sched.Duration)
}

func TestInterval(t *testing.T) {
	d, err := Interval(20)
	require.NoError(t, err)
	require.Equal(t, 50*time.Millisecond, d)
	_, err = Interval(0.001)
	require.Error(t, err)
}

func TestLoopAppliesCommands(t *testing.T) {
	tr := virtual.New()
	s := newStimulator(tr)
	require.NoError(t, Start(s, 0x05, 20))
	defer s.Disable()

	sink := &recordingSink{}
	loop := fx.NewLoop(time.Hour)
	AddToLoop(loop, s, 2, sink)

	loop.PostMessage(telemetry.Command{Param: telemetry.ParamAmp, Channel: "ch1", Value: 12})
	loop.PostMessage(telemetry.Command{Param: telemetry.ParamPW, Channel: "ch2", Value: 400})
	loop.PostMessage(telemetry.Command{Param: telemetry.ParamAmp, Channel: "nope", Value: 1})
	loop.PostMessage("unrelated")
	loop.RunOnce(context.Background())

	sched, _ := tr.Board.Schedule()
	require.Equal(t, byte(12), sched.Events[0].Amplitude)
	require.Equal(t, byte(250), sched.Events[1].PulseWidth)

	require.Len(t, sink.statuses, 1)
	require.Equal(t, 12, sink.statuses[0].Events[0].Amplitude)

	loop.RunOnce(context.Background())
	loop.RunOnce(context.Background())
	require.Len(t, sink.statuses, 2, "reported every second iteration")
}

func TestCommanderApply(t *testing.T) {
	s := newStimulator(virtual.New())
	c := &Commander{Stim: s}
	require.ErrorIs(t, c.Apply(telemetry.Command{Param: telemetry.ParamAmp, Channel: "ch1", Value: 1}), fes.ErrNotEnabled)
	require.ErrorIs(t, c.Apply(telemetry.Command{Param: "freq", Channel: "ch1"}), telemetry.ErrBadCommand)
	require.ErrorIs(t, c.Apply(telemetry.Command{Param: telemetry.ParamAmp, Channel: "x"}), fes.ErrUnknownChannel)
}

func TestUpdaterDisabled(t *testing.T) {
	s := newStimulator(virtual.New())
	require.NoError(t, (&Updater{Stim: s}).Control(nil))
}
