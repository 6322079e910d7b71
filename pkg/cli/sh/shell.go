// Package sh provides the interactive stimulator shell.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/control"
	"github.com/robotalks/fes.go/pkg/env"
	"github.com/robotalks/fes.go/pkg/fes"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *env.Config
	Stim   *fes.Stimulator
}

// RunFunc implements a command. The result is printed unless nil.
type RunFunc func(s *Shell, args []string) (interface{}, error)

// OK is printed by commands without a result.
const OK = "OK"

const shellKey = "$shell"

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&EnableCmd,
		&DisableCmd,
		&ScheduleCmd,
		&EventCmd,
		&BeginCmd,
		&StartCmd,
		&ChannelsCmd,
		&StatusCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other command providers during init.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a shell operating stim.
func New(conf *env.Config, stim *fes.Stimulator) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
		Stim:   stim,
	}
	s.Shell.Set(shellKey, s)
	s.updatePrompt()
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Func adapts a RunFunc to an ishell command func.
func Func(fn RunFunc) func(*ishell.Context) {
	return func(c *ishell.Context) {
		s := ShellFrom(c)
		res, err := fn(s, c.Args)
		if err != nil {
			c.Err(err)
			return
		}
		s.updatePrompt()
		if res == nil {
			return
		}
		out, err := s.Format(res)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(out)
	}
}

// Format renders a command result.
func (s *Shell) Format(res interface{}) (string, error) {
	if s.OutputJSON {
		out, err := json.Marshal(res)
		return string(out), err
	}
	switch v := res.(type) {
	case string:
		return v, nil
	case fes.Status:
		return FormatStatus(v), nil
	case []*fes.Channel:
		return FormatChannels(v), nil
	}
	return fmt.Sprintf("%v", res), nil
}

func (s *Shell) updatePrompt() {
	state := "disabled"
	if s.Stim.IsEnabled() {
		state = s.Stim.Scheduler().State().String()
	}
	s.Shell.SetPrompt(fmt.Sprintf("%s [%s] > ", s.Stim.Name(), state))
}

// Channels resolves channel names, "all" selects every channel.
func (s *Shell) Channels(names []string) ([]*fes.Channel, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("CHANNEL required")
	}
	if len(names) == 1 && names[0] == "all" {
		return s.Stim.Channels(), nil
	}
	chs := make([]*fes.Channel, 0, len(names))
	for _, name := range names {
		ch, err := s.Stim.Channel(name)
		if err != nil {
			return nil, err
		}
		chs = append(chs, ch)
	}
	return chs, nil
}

// ParseInt parses a decimal or 0x prefixed argument.
func ParseInt(what, arg string) (int, error) {
	v, err := strconv.ParseInt(arg, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("Invalid %s: %v", what, err)
	}
	return int(v), nil
}

// FormatStatus prints a status for display.
func FormatStatus(st fes.Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s enabled=%v", st.Name, st.Enabled)
	if st.Scheduled {
		fmt.Fprintf(&sb, " schedule=%d period=%dms running=%v", st.ScheduleID, st.Duration, st.Running)
	}
	for i, ev := range st.Events {
		fmt.Fprintf(&sb, "\n  #%d %-8s amp=%d/%d pw=%d/%d", i+1, ev.Channel,
			ev.Amplitude, ev.MaxAmplitude, ev.PulseWidth, ev.MaxPulseWidth)
	}
	return sb.String()
}

// FormatChannels prints channels for display.
func FormatChannels(chs []*fes.Channel) string {
	lines := make([]string, len(chs))
	for i, ch := range chs {
		spec := ch.Spec()
		lines[i] = fmt.Sprintf("%-8s index=%d max_amp=%d max_pw=%d ipd=%d aspect=%#02x anode_cathode=%#02x",
			spec.Name, spec.Index, spec.MaxAmplitude, spec.MaxPulseWidth,
			spec.InterphaseDelay, spec.Aspect.Byte(), spec.AnodeCathode)
	}
	return strings.Join(lines, "\n")
}

// Lifecycle commands.

func runEnable(s *Shell, args []string) (interface{}, error) {
	return OK, s.Stim.Enable()
}

func runDisable(s *Shell, args []string) (interface{}, error) {
	return OK, s.Stim.Disable()
}

func runSchedule(s *Shell, args []string) (interface{}, error) {
	sync, err := s.Config.SyncByte()
	if err != nil {
		return nil, err
	}
	freq := s.Config.Frequency
	if len(args) > 0 {
		v, err := ParseInt("SYNC", args[0])
		if err != nil {
			return nil, err
		}
		if v < 0 || v > 0xff {
			return nil, fmt.Errorf("Invalid SYNC: %d", v)
		}
		sync = byte(v)
	}
	if len(args) > 1 {
		if freq, err = strconv.ParseFloat(args[1], 64); err != nil {
			return nil, fmt.Errorf("Invalid FREQ: %v", err)
		}
	}
	if err := s.Stim.CreateScheduler(sync, freq); err != nil {
		return nil, err
	}
	id, _ := s.Stim.Scheduler().ID()
	return fmt.Sprintf("schedule %d (%dms)", id, s.Stim.Scheduler().Duration()), nil
}

func runEvent(s *Shell, args []string) (interface{}, error) {
	chs, err := s.Channels(args)
	if err != nil {
		return nil, err
	}
	return OK, s.Stim.AddEvents(chs)
}

func runBegin(s *Shell, args []string) (interface{}, error) {
	return OK, s.Stim.Begin()
}

func runStart(s *Shell, args []string) (interface{}, error) {
	sync, err := s.Config.SyncByte()
	if err != nil {
		return nil, err
	}
	if err := control.Start(s.Stim, sync, s.Config.Frequency); err != nil {
		return nil, err
	}
	return s.Stim.Snapshot(), nil
}

func runChannels(s *Shell, args []string) (interface{}, error) {
	return s.Stim.Channels(), nil
}

func runStatus(s *Shell, args []string) (interface{}, error) {
	return s.Stim.Snapshot(), nil
}

var (
	// EnableCmd opens the port and sets up the channels.
	EnableCmd = ishell.Cmd{
		Name:    "enable",
		Aliases: []string{"open"},
		Func:    Func(runEnable),
	}

	// DisableCmd halts the schedule and closes the port.
	DisableCmd = ishell.Cmd{
		Name:    "disable",
		Aliases: []string{"close"},
		Func:    Func(runDisable),
	}

	// ScheduleCmd creates a schedule.
	ScheduleCmd = ishell.Cmd{
		Name:    "schedule",
		Aliases: []string{"s"},
		Help:    "[SYNC] [FREQ(Hz)]",
		Func:    Func(runSchedule),
	}

	// EventCmd adds stimulation events.
	EventCmd = ishell.Cmd{
		Name:    "event",
		Aliases: []string{"ev"},
		Help:    "CHANNEL... | all",
		Func:    Func(runEvent),
	}

	// BeginCmd sends the sync message.
	BeginCmd = ishell.Cmd{
		Name:    "begin",
		Aliases: []string{"b"},
		Func:    Func(runBegin),
	}

	// StartCmd runs enable, schedule, event all, update and begin.
	StartCmd = ishell.Cmd{
		Name: "start",
		Func: Func(runStart),
	}

	// ChannelsCmd lists channels.
	ChannelsCmd = ishell.Cmd{
		Name:    "channels",
		Aliases: []string{"ch"},
		Func:    Func(runChannels),
	}

	// StatusCmd prints the cached state.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Func:    Func(runStatus),
	}
)

// Run runs the shell. With args, they are executed as a single command.
func (s *Shell) Run(args ...string) error {
	defer s.Stim.Close()
	if len(args) > 0 {
		return s.Shell.Process(args...)
	}
	if !s.Interactive {
		return fmt.Errorf("command expected")
	}
	s.Shell.Run()
	return nil
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf := env.NewConfig()
	if err := New(conf, conf.MustNewStimulator()).Run(flag.Args()...); err != nil {
		glog.Exit(err)
	}
}
