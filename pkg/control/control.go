// Package control drives a Stimulator from a framework.Loop.
package control

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/fes"
	fx "github.com/robotalks/fes.go/pkg/framework"
	"github.com/robotalks/fes.go/pkg/telemetry"
)

// Start enables the stimulator, creates a schedule with an event on every
// channel and starts it.
func Start(s *fes.Stimulator, sync byte, frequency float64) error {
	if err := s.Enable(); err != nil {
		return err
	}
	if err := s.CreateScheduler(sync, frequency); err != nil {
		return err
	}
	if err := s.AddEvents(s.Channels()); err != nil {
		return err
	}
	if err := s.Update(); err != nil {
		return err
	}
	return s.Begin()
}

// Interval returns the loop interval matching the stimulation frequency.
func Interval(frequency float64) (time.Duration, error) {
	d, err := fes.DurationFor(frequency)
	if err != nil {
		return 0, err
	}
	return time.Duration(d) * time.Millisecond, nil
}

// Commander applies posted telemetry.Commands.
type Commander struct {
	Stim *fes.Stimulator
}

// Control implements fx.Controller.
func (c *Commander) Control(cc fx.ControlContext) error {
	var errs fx.AggregatedError
	cc.ProcessMessages(func(msg fx.Message) bool {
		cmd, ok := msg.(telemetry.Command)
		if !ok {
			return false
		}
		if err := c.Apply(cmd); err != nil {
			errs.Add(fmt.Errorf("%s: %w", cmd, err))
		}
		return true
	})
	return errs.Aggregate()
}

// Apply executes a single command.
func (c *Commander) Apply(cmd telemetry.Command) error {
	ch, err := c.Stim.Channel(cmd.Channel)
	if err != nil {
		return err
	}
	switch cmd.Param {
	case telemetry.ParamAmp:
		return c.Stim.SetAmp(ch, cmd.Value)
	case telemetry.ParamPW:
		return c.Stim.WritePW(ch, cmd.Value)
	}
	return fmt.Errorf("%w: parameter %q", telemetry.ErrBadCommand, cmd.Param)
}

// Updater sends the cached parameters every iteration.
type Updater struct {
	Stim *fes.Stimulator
}

// Control implements fx.Controller.
func (u *Updater) Control(fx.ControlContext) error {
	if !u.Stim.IsEnabled() {
		return nil
	}
	return u.Stim.Update()
}

// StatusSink receives status snapshots. It is called on the loop and
// must not wait for clients or brokers.
type StatusSink interface {
	PublishStatus(fes.Status) error
}

// Reporter publishes the status every Every iterations.
type Reporter struct {
	Stim  *fes.Stimulator
	Every uint64
	Sinks []StatusSink
}

// Control implements fx.Controller.
func (r *Reporter) Control(cc fx.ControlContext) error {
	if r.Every > 1 && cc.Iteration()%r.Every != 1 {
		return nil
	}
	st := r.Stim.Snapshot()
	for _, sink := range r.Sinks {
		if err := sink.PublishStatus(st); err != nil {
			glog.Warningf("Publish status: %v", err)
		}
	}
	return nil
}

// AddToLoop registers the controllers at their stages.
func AddToLoop(loop *fx.Loop, s *fes.Stimulator, reportEvery uint64, sinks ...StatusSink) {
	loop.AddController(fx.StageInput, &Commander{Stim: s})
	loop.AddController(fx.StageActuate, &Updater{Stim: s})
	if len(sinks) > 0 {
		loop.AddController(fx.StageReport, &Reporter{Stim: s, Every: reportEvery, Sinks: sinks})
	}
}
