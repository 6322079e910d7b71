package uecu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type failWriter struct {
	n   int
	err error
}

func (w *failWriter) Write(p []byte) (int, error) {
	return w.n, w.err
}

func TestChecksum(t *testing.T) {
	testCases := []struct {
		name   string
		data   []byte
		expect byte
	}{
		{"empty", nil, 0xff},
		{"sync", []byte{0x04, 0x80, 0x1b, 0x01, 0x05}, 0x5a},
		{"carry", []byte{0x04, 0x80, 0x47, 0x07, 0x00, 0x14, 0xff, 0x00, 0x64, 0x11, 0x01}, 0xa2},
		{"reply", []byte{0x80, 0x04, 0x10, 0x01, 0x01}, 0x69},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, Checksum(tc.data))
			require.Equal(t, Checksum(tc.data), Checksum(tc.data))
		})
	}
}

func TestChecksumDoesNotModifyInput(t *testing.T) {
	data := []byte{0x04, 0x80, 0x1b, 0x01, 0x05, 0x00}
	orig := append([]byte(nil), data...)
	Checksum(data)
	require.Equal(t, orig, data)
}

func TestTwoBytes(t *testing.T) {
	for v := 0; v <= 0xffff; v++ {
		hi, lo := TwoBytes(uint16(v))
		if int(hi)*256+int(lo) != v {
			t.Fatalf("TwoBytes(%d) = %d, %d", v, hi, lo)
		}
	}
}

func TestFrame(t *testing.T) {
	testCases := []struct {
		name   string
		frame  Frame
		expect []byte
	}{
		{"sync", Sync(0x05), []byte{0x04, 0x80, 0x1b, 0x01, 0x05, 0x5a}},
		{"create schedule", CreateSchedule(0x05, 50), []byte{0x04, 0x80, 0x10, 0x03, 0x05, 0x00, 0x32, 0x31}},
		{"delete schedule", DeleteSchedule(1), []byte{0x04, 0x80, 0x12, 0x01, 0x01, 0x67}},
		{"halt schedule", HaltSchedule(1), []byte{0x04, 0x80, 0x04, 0x01, 0x01, 0x75}},
		{"create event", CreateEvent(1, 0, EventStim, PortChannel(0)),
			[]byte{0x04, 0x80, 0x15, 0x09, 0x01, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x59}},
		{"change event params", ChangeEventParams(1, 0xc8, 0x0a), []byte{0x04, 0x80, 0x19, 0x04, 0x01, 0xc8, 0x0a, 0x00, 0x8a}},
		{"channel setup", ChannelSetup(PortChannel(1), 20, 255, 100, 0x11, 0x23),
			[]byte{0x04, 0x80, 0x47, 0x07, 0x01, 0x14, 0xff, 0x00, 0x64, 0x11, 0x23, 0x7f}},
		{"reply", NewReply(MsgCreateSchedule, 7), []byte{0x80, 0x04, 0x10, 0x01, 0x07, 0x63}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, tc.frame.Bytes())
			require.Equal(t, len(tc.expect), tc.frame.Len())
			var buf bytes.Buffer
			n, err := tc.frame.WriteTo(&buf)
			require.NoError(t, err)
			require.Equal(t, tc.expect, buf.Bytes())
			require.Equal(t, int64(len(tc.expect)), n)
		})
	}
}

func TestPortChannel(t *testing.T) {
	for i := 0; i < 8; i++ {
		require.Equal(t, byte(i), PortChannel(i))
	}
}

func TestMsgTypeString(t *testing.T) {
	require.Equal(t, "sync", MsgSync.String())
	require.Equal(t, "msg-0x7E", MsgType(0x7e).String())
}

func TestWriteMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, Sync(0x05), "Sync"))
	require.Equal(t, Sync(0x05).Bytes(), buf.Bytes())

	writeErr := errors.New("port gone")
	err := WriteMessage(&failWriter{err: writeErr}, Sync(0x05), "Sync")
	require.Error(t, err)
	var te *TransmissionError
	require.True(t, errors.As(err, &te))
	require.Equal(t, MsgSync, te.Type)
	require.True(t, errors.Is(err, writeErr))

	err = WriteMessage(&failWriter{n: 2}, Sync(0x05), "")
	require.True(t, errors.As(err, &te))
	require.Empty(t, te.Label)
}
