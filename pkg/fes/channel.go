package fes

import (
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/uecu"
)

// MaxChannelIndex is the highest channel index of a board.
const MaxChannelIndex = 7

// AspectRatio is the amplitude ratio between the first and the second
// phase of a biphasic pulse, 4 bits each.
type AspectRatio struct {
	First  uint8
	Second uint8
}

// Symmetric is the 1:1 aspect ratio.
var Symmetric = AspectRatio{First: 1, Second: 1}

// Byte encodes the ratio, first phase in the low nibble.
func (a AspectRatio) Byte() byte {
	return (a.Second&0x0f)<<4 | a.First&0x0f
}

// AspectRatioFromByte decodes an encoded aspect ratio.
func AspectRatioFromByte(b byte) AspectRatio {
	return AspectRatio{First: b & 0x0f, Second: b >> 4}
}

// ChannelSpec describes an output channel.
type ChannelSpec struct {
	Name            string
	Index           int
	MaxAmplitude    int
	MaxPulseWidth   int
	InterphaseDelay uint16 // usec
	Aspect          AspectRatio
	AnodeCathode    byte
}

// Channel is one stimulation output of the board. Only the limits can
// change after construction; the Stimulator serializes those changes.
type Channel struct {
	spec ChannelSpec
}

// NewChannel validates spec and creates a Channel.
func NewChannel(spec ChannelSpec) (*Channel, error) {
	switch {
	case spec.Name == "":
		return nil, fmt.Errorf("%w: name required", ErrInvalidChannel)
	case spec.Index < 0 || spec.Index > MaxChannelIndex:
		return nil, fmt.Errorf("%w: %s: index %d not in 0-%d", ErrInvalidChannel, spec.Name, spec.Index, MaxChannelIndex)
	case spec.MaxAmplitude < 0 || spec.MaxPulseWidth < 0:
		return nil, fmt.Errorf("%w: %s: negative limit", ErrInvalidChannel, spec.Name)
	case spec.Aspect.First > 0x0f || spec.Aspect.Second > 0x0f:
		return nil, fmt.Errorf("%w: %s: aspect ratio exceeds 4 bits", ErrInvalidChannel, spec.Name)
	}
	return &Channel{spec: spec}, nil
}

// MustNewChannel is NewChannel which panics on error.
func MustNewChannel(spec ChannelSpec) *Channel {
	ch, err := NewChannel(spec)
	if err != nil {
		panic(err)
	}
	return ch
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.spec.Name }

// Index returns the channel index on the board.
func (c *Channel) Index() int { return c.spec.Index }

// MaxAmplitude returns the amplitude limit.
func (c *Channel) MaxAmplitude() int { return c.spec.MaxAmplitude }

// MaxPulseWidth returns the pulse width limit.
func (c *Channel) MaxPulseWidth() int { return c.spec.MaxPulseWidth }

// SetMaxAmplitude changes the amplitude limit.
func (c *Channel) SetMaxAmplitude(v int) { c.spec.MaxAmplitude = v }

// SetMaxPulseWidth changes the pulse width limit.
func (c *Channel) SetMaxPulseWidth(v int) { c.spec.MaxPulseWidth = v }

// Spec returns the current channel description.
func (c *Channel) Spec() ChannelSpec { return c.spec }

// PortChannel returns the encoded port/channel byte.
func (c *Channel) PortChannel() byte {
	return uecu.PortChannel(c.spec.Index)
}

// SetupFrame returns the frame configuring this channel on the board.
func (c *Channel) SetupFrame() uecu.Frame {
	return uecu.ChannelSetup(
		c.PortChannel(),
		wireValue(c.spec.MaxAmplitude, "amplitude limit", c.spec.Name),
		wireValue(c.spec.MaxPulseWidth, "pulse width limit", c.spec.Name),
		c.spec.InterphaseDelay,
		c.spec.Aspect.Byte(),
		c.spec.AnodeCathode)
}

// Setup sends the setup frame and then waits settle for the board to
// process it, whether or not the write succeeded.
func (c *Channel) Setup(w io.Writer, settle time.Duration) error {
	err := uecu.WriteMessage(w, c.SetupFrame(), "Setting up channel "+c.spec.Name)
	time.Sleep(settle)
	if err != nil {
		return &ChannelSetupError{Index: c.spec.Index, Channel: c.spec.Name, Err: err}
	}
	return nil
}

// wireValue fits v into a one byte field.
func wireValue(v int, what, channel string) byte {
	switch {
	case v > 0xff:
		glog.Warningf("channel %s: %s %d exceeds 255, sending 255", channel, what, v)
		return 0xff
	case v < 0:
		return 0
	}
	return byte(v)
}

// clampParam limits a live parameter to [0, max] and the one byte field.
func clampParam(v, max int) byte {
	if v > max {
		v = max
	}
	if v < 0 {
		v = 0
	}
	if v > 0xff {
		v = 0xff
	}
	return byte(v)
}
