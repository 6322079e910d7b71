package fes

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/fes.go/pkg/uecu"
)

func TestNewChannel(t *testing.T) {
	valid := ChannelSpec{Name: "quad", Index: 2, MaxAmplitude: 20, MaxPulseWidth: 300, Aspect: Symmetric}
	tests := []struct {
		name   string
		modify func(*ChannelSpec)
		ok     bool
	}{
		{"valid", func(*ChannelSpec) {}, true},
		{"no name", func(s *ChannelSpec) { s.Name = "" }, false},
		{"index too large", func(s *ChannelSpec) { s.Index = 8 }, false},
		{"negative index", func(s *ChannelSpec) { s.Index = -1 }, false},
		{"negative amp", func(s *ChannelSpec) { s.MaxAmplitude = -1 }, false},
		{"negative pw", func(s *ChannelSpec) { s.MaxPulseWidth = -1 }, false},
		{"aspect overflow", func(s *ChannelSpec) { s.Aspect = AspectRatio{First: 16, Second: 1} }, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			spec := valid
			test.modify(&spec)
			ch, err := NewChannel(spec)
			if test.ok {
				require.NoError(t, err)
				require.Equal(t, spec, ch.Spec())
			} else {
				require.ErrorIs(t, err, ErrInvalidChannel)
				require.Nil(t, ch)
			}
		})
	}
	require.Panics(t, func() { MustNewChannel(ChannelSpec{}) })
}

func TestAspectRatio(t *testing.T) {
	require.Equal(t, byte(0x11), Symmetric.Byte())
	require.Equal(t, byte(0x12), AspectRatio{First: 2, Second: 1}.Byte())
	require.Equal(t, AspectRatio{First: 2, Second: 1}, AspectRatioFromByte(0x12))
}

func TestChannelSetupFrame(t *testing.T) {
	ch := MustNewChannel(ChannelSpec{Name: "ch2", Index: 1, MaxAmplitude: 20, MaxPulseWidth: 300, InterphaseDelay: 100, Aspect: Symmetric, AnodeCathode: 0x23})
	require.Equal(t, uecu.PortChannel(1), ch.PortChannel())
	require.Equal(t, uecu.ChannelSetup(uecu.PortChannel(1), 20, 255, 100, 0x11, 0x23), ch.SetupFrame())

	ch.SetMaxPulseWidth(200)
	ch.SetMaxAmplitude(30)
	require.Equal(t, uecu.ChannelSetup(uecu.PortChannel(1), 30, 200, 100, 0x11, 0x23), ch.SetupFrame())
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errBroken }

func TestChannelSetup(t *testing.T) {
	ch := testChannels()[1]
	var buf bytes.Buffer
	require.NoError(t, ch.Setup(&buf, 0))
	require.Equal(t, ch.SetupFrame().Bytes(), buf.Bytes())

	err := ch.Setup(brokenWriter{}, 0)
	var setupErr *ChannelSetupError
	require.True(t, errors.As(err, &setupErr))
	require.Equal(t, "ch2", setupErr.Channel)
	require.Equal(t, 1, setupErr.Index)
	require.ErrorIs(t, err, errBroken)
	var txErr *uecu.TransmissionError
	require.True(t, errors.As(err, &txErr))
	require.Equal(t, uecu.MsgChannelSetup, txErr.Type)
}

func TestClampParam(t *testing.T) {
	tests := []struct {
		v, max int
		out    byte
	}{
		{10, 20, 10},
		{30, 20, 20},
		{-5, 20, 0},
		{280, 300, 255},
		{0, 0, 0},
	}
	for _, test := range tests {
		require.Equal(t, test.out, clampParam(test.v, test.max), "%d max %d", test.v, test.max)
	}
}
