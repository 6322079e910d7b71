package fes

import (
	"bytes"
	"errors"

	"github.com/robotalks/fes.go/pkg/transport"
	"github.com/robotalks/fes.go/pkg/uecu"
)

var errBroken = errors.New("broken line")

// fakeTransport records the frames written and replies to create
// schedule the way the board does.
type fakeTransport struct {
	parser    uecu.Parser
	frames    []uecu.Frame
	rx        bytes.Buffer
	opens     int
	closes    int
	reads     int
	openErr   error
	configErr error
	failOn    func(uecu.Frame) bool
	noReply   bool
	nextID    byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{parser: uecu.Parser{Dest: uecu.AddrBoard}, nextID: 1}
}

func (f *fakeTransport) Open(string) error {
	f.opens++
	return f.openErr
}

func (f *fakeTransport) Configure(transport.Config) error {
	return f.configErr
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	frames, _ := f.parser.Feed(p)
	for _, fr := range frames {
		if f.failOn != nil && f.failOn(fr) {
			return 0, errBroken
		}
		f.frames = append(f.frames, fr)
		if fr.Type == uecu.MsgCreateSchedule && !f.noReply {
			f.rx.Write(uecu.NewReply(uecu.MsgCreateSchedule, f.nextID).Bytes())
			f.nextID++
		}
	}
	return len(p), nil
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	f.reads++
	if f.rx.Len() == 0 {
		return 0, nil
	}
	return f.rx.Read(p)
}

func (f *fakeTransport) Close() error {
	f.closes++
	return nil
}

func (f *fakeTransport) framesOf(typ uecu.MsgType) []uecu.Frame {
	var frames []uecu.Frame
	for _, fr := range f.frames {
		if fr.Type == typ {
			frames = append(frames, fr)
		}
	}
	return frames
}

func (f *fakeTransport) types() []uecu.MsgType {
	types := make([]uecu.MsgType, len(f.frames))
	for i, fr := range f.frames {
		types[i] = fr.Type
	}
	return types
}

func failType(typ uecu.MsgType) func(uecu.Frame) bool {
	return func(f uecu.Frame) bool { return f.Type == typ }
}

func testChannels() []*Channel {
	return []*Channel{
		MustNewChannel(ChannelSpec{Name: "ch1", Index: 0, MaxAmplitude: 20, MaxPulseWidth: 300, InterphaseDelay: 100, Aspect: Symmetric, AnodeCathode: 0x01}),
		MustNewChannel(ChannelSpec{Name: "ch2", Index: 1, MaxAmplitude: 20, MaxPulseWidth: 300, InterphaseDelay: 100, Aspect: Symmetric, AnodeCathode: 0x23}),
	}
}
