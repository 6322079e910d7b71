package uecu

// EventType selects what a scheduled event does on the board.
type EventType byte

// EventStim is the default event type: one stimulation pulse.
const EventStim EventType = 0x03

// Port is the port nibble of a port/channel byte. Boards ship with a
// single port.
const Port byte = 0

// PortChannel encodes a channel index (0-7) with the fixed port nibble.
func PortChannel(index int) byte {
	return Port<<4 | byte(index)&0x0f
}

// ChannelSetup configures the limits and wiring of one output channel.
func ChannelSetup(portChannel, ampLimit, pwLimit byte, interphaseDelay uint16, aspect, anodeCathode byte) Frame {
	hi, lo := TwoBytes(interphaseDelay)
	return NewFrame(MsgChannelSetup, portChannel, ampLimit, pwLimit, hi, lo, aspect, anodeCathode)
}

// DeleteSchedule deletes a previously created schedule.
func DeleteSchedule(scheduleID byte) Frame {
	return NewFrame(MsgDeleteSchedule, scheduleID)
}

// CreateSchedule creates a schedule with the period duration in ms,
// started by the sync byte.
func CreateSchedule(sync byte, duration uint16) Frame {
	hi, lo := TwoBytes(duration)
	return NewFrame(MsgCreateSchedule, sync, hi, lo)
}

// CreateEvent adds an event to a schedule, starting offset ms into each
// period. Pulse width and amplitude start at zero.
func CreateEvent(scheduleID byte, offset uint16, eventType EventType, portChannel byte) Frame {
	hi, lo := TwoBytes(offset)
	return NewFrame(MsgCreateEvent, scheduleID, hi, lo, 0, byte(eventType), portChannel, 0, 0, 0)
}

// ChangeEventParams sets pulse width and amplitude of an event.
func ChangeEventParams(eventID, pulseWidth, amplitude byte) Frame {
	return NewFrame(MsgChangeEventParams, eventID, pulseWidth, amplitude, 0)
}

// HaltSchedule stops a running schedule.
func HaltSchedule(scheduleID byte) Frame {
	return NewFrame(MsgHaltSchedule, scheduleID)
}

// Sync triggers all schedules created with the sync byte.
func Sync(sync byte) Frame {
	return NewFrame(MsgSync, sync)
}
