// Package params adds the stimulation parameter commands to the shell.
package params

import (
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/fes.go/pkg/cli/sh"
	"github.com/robotalks/fes.go/pkg/fes"
)

func channelValue(s *sh.Shell, args []string, what string) (*fes.Channel, int, error) {
	if len(args) < 2 {
		return nil, 0, fmt.Errorf("CHANNEL and %s required", what)
	}
	ch, err := s.Stim.Channel(args[0])
	if err != nil {
		return nil, 0, err
	}
	v, err := sh.ParseInt(what, args[1])
	return ch, v, err
}

// RunAmp caches the amplitude of a channel.
func RunAmp(s *sh.Shell, args []string) (interface{}, error) {
	ch, v, err := channelValue(s, args, "AMP")
	if err != nil {
		return nil, err
	}
	if err := s.Stim.SetAmp(ch, v); err != nil {
		return nil, err
	}
	amp, err := s.Stim.Scheduler().Amp(ch)
	return fmt.Sprintf("%s amp=%d", ch.Name(), amp), err
}

// RunPW sets and sends the pulse width of a channel.
func RunPW(s *sh.Shell, args []string) (interface{}, error) {
	ch, v, err := channelValue(s, args, "PW")
	if err != nil {
		return nil, err
	}
	if err := s.Stim.WritePW(ch, v); err != nil {
		return nil, err
	}
	pw, err := s.Stim.Scheduler().PW(ch)
	return fmt.Sprintf("%s pw=%d", ch.Name(), pw), err
}

// RunLimit changes the amplitude or pulse width limit of a channel.
func RunLimit(s *sh.Shell, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("amp or pw required")
	}
	ch, v, err := channelValue(s, args[1:], "LIMIT")
	if err != nil {
		return nil, err
	}
	switch args[0] {
	case "amp":
		err = s.Stim.UpdateMaxAmp(ch, v)
	case "pw":
		err = s.Stim.UpdateMaxPW(ch, v)
	default:
		err = fmt.Errorf("unknown limit %q", args[0])
	}
	if err != nil {
		return nil, err
	}
	return sh.OK, nil
}

// RunUpdate sends the cached parameters.
func RunUpdate(s *sh.Shell, args []string) (interface{}, error) {
	if err := s.Stim.Update(); err != nil {
		return nil, err
	}
	return s.Stim.Snapshot(), nil
}

// RunHalt halts the schedule.
func RunHalt(s *sh.Shell, args []string) (interface{}, error) {
	return sh.OK, s.Stim.Halt()
}

var (
	// AmpCmd caches an amplitude, sent by update.
	AmpCmd = ishell.Cmd{
		Name:    "amp",
		Aliases: []string{"a"},
		Help:    "CHANNEL AMP",
		Func:    sh.Func(RunAmp),
	}

	// PWCmd sends a pulse width.
	PWCmd = ishell.Cmd{
		Name: "pw",
		Help: "CHANNEL PW(usec)",
		Func: sh.Func(RunPW),
	}

	// LimitCmd changes a channel limit.
	LimitCmd = ishell.Cmd{
		Name: "limit",
		Help: "amp|pw CHANNEL VALUE",
		Func: sh.Func(RunLimit),
	}

	// UpdateCmd sends all cached parameters.
	UpdateCmd = ishell.Cmd{
		Name:    "update",
		Aliases: []string{"u"},
		Func:    sh.Func(RunUpdate),
	}

	// HaltCmd halts the schedule.
	HaltCmd = ishell.Cmd{
		Name: "halt",
		Func: sh.Func(RunHalt),
	}
)

func init() {
	sh.AddCmds(
		&AmpCmd,
		&PWCmd,
		&LimitCmd,
		&UpdateCmd,
		&HaltCmd,
	)
}
