package uecu

import (
	"fmt"
	"io"

	"github.com/golang/glog"
)

// Addresses of the two peers.
const (
	AddrBoard byte = 0x04
	AddrHost  byte = 0x80
)

// HeaderLen is the number of bytes preceding the payload.
const HeaderLen = 4

// MaxPayload is the largest payload the parser accepts. The longest board
// message (create event) carries 9 bytes.
const MaxPayload = 32

// MsgType is the message type byte.
type MsgType byte

// Message types understood by the board firmware.
const (
	MsgHaltSchedule      MsgType = 0x04
	MsgCreateSchedule    MsgType = 0x10
	MsgDeleteSchedule    MsgType = 0x12
	MsgCreateEvent       MsgType = 0x15
	MsgChangeEventParams MsgType = 0x19
	MsgSync              MsgType = 0x1B
	MsgChannelSetup      MsgType = 0x47
)

var msgNames = map[MsgType]string{
	MsgHaltSchedule:      "halt-schedule",
	MsgCreateSchedule:    "create-schedule",
	MsgDeleteSchedule:    "delete-schedule",
	MsgCreateEvent:       "create-event",
	MsgChangeEventParams: "change-event-params",
	MsgSync:              "sync",
	MsgChannelSetup:      "channel-setup",
}

// String implements fmt.Stringer.
func (t MsgType) String() string {
	if name, ok := msgNames[t]; ok {
		return name
	}
	return fmt.Sprintf("msg-0x%02X", byte(t))
}

// Frame is a single protocol message. A Frame is a value: encoding never
// modifies it.
type Frame struct {
	Dest    byte
	Src     byte
	Type    MsgType
	Payload []byte
}

// NewFrame creates a frame sent from host to board.
func NewFrame(typ MsgType, payload ...byte) Frame {
	return Frame{Dest: AddrBoard, Src: AddrHost, Type: typ, Payload: payload}
}

// NewReply creates a frame sent from board to host.
func NewReply(typ MsgType, payload ...byte) Frame {
	return Frame{Dest: AddrHost, Src: AddrBoard, Type: typ, Payload: payload}
}

// Len returns the encoded length including header and checksum.
func (f Frame) Len() int {
	return HeaderLen + len(f.Payload) + 1
}

// Bytes returns the encoded frame with the checksum appended.
// Payloads are at most 255 bytes, the length field is one byte.
func (f Frame) Bytes() []byte {
	b := make([]byte, f.Len())
	b[0], b[1], b[2], b[3] = f.Dest, f.Src, byte(f.Type), byte(len(f.Payload))
	copy(b[HeaderLen:], f.Payload)
	b[len(b)-1] = Checksum(b[:len(b)-1])
	return b
}

// WriteTo writes the encoded frame using a single Write call.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	b := f.Bytes()
	n, err := w.Write(b)
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}
	return int64(n), err
}

// String formats the frame for logs.
func (f Frame) String() string {
	return fmt.Sprintf("%s[% X]", f.Type, f.Payload)
}

// Checksum computes the checksum of data: the byte sum with its carry
// folded into the low byte, inverted.
func Checksum(data []byte) byte {
	var sum uint
	for _, b := range data {
		sum += uint(b)
	}
	return ^byte((sum & 0xff) + (sum >> 8))
}

// TwoBytes splits v into its high and low bytes.
func TwoBytes(v uint16) (hi, lo byte) {
	return byte(v >> 8), byte(v)
}

// WriteMessage writes a frame to w exactly once. label describes the
// activity in logs, an empty label keeps the write silent.
func WriteMessage(w io.Writer, f Frame, label string) error {
	if glog.V(2) {
		glog.Infof("TX %s: % X", f.Type, f.Bytes())
	}
	if _, err := f.WriteTo(w); err != nil {
		if label != "" {
			glog.Errorf("Error %s: %v", label, err)
		}
		return &TransmissionError{Label: label, Type: f.Type, Err: err}
	}
	if label != "" {
		glog.Infof("%s was successful", label)
	}
	return nil
}
