package uecu

// Parser decodes frames from a byte stream, one byte at a time.
// The zero value accepts frames addressed to either peer.
type Parser struct {
	// Dest restricts accepted frames to this destination address when set.
	Dest byte

	state   parseState
	frame   *Frame
	raw     []byte
	recvLen int
}

// ParseResult is the outcome of one parsing step.
type ParseResult struct {
	// Frame is set when a complete, verified frame was received.
	Frame *Frame
	// Err is set when a frame was dropped.
	Err error
}

type parseState int

const (
	stateDest     parseState = iota // waiting for destination address
	stateSrc                        // waiting for source address
	stateType                       // waiting for message type
	stateLen                        // waiting for payload length
	stateData                       // receiving payload
	stateChecksum                   // waiting for checksum
)

// Idle reports whether the parser is between frames.
func (p *Parser) Idle() bool {
	return p.state == stateDest
}

// Reset drops any partially received frame.
func (p *Parser) Reset() {
	p.state, p.frame, p.raw, p.recvLen = stateDest, nil, p.raw[:0], 0
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	switch p.state {
	case stateDest:
		p.begin(b)
	case stateSrc:
		if !isAddr(b) || b == p.frame.Dest {
			// the byte may start the next frame.
			p.Reset()
			p.begin(b)
			return
		}
		p.accept(b)
		p.frame.Src = b
		p.state = stateType
	case stateType:
		p.accept(b)
		p.frame.Type = MsgType(b)
		p.state = stateLen
	case stateLen:
		if int(b) > MaxPayload {
			p.Reset()
			pr.Err = ErrLength
			return
		}
		p.accept(b)
		p.frame.Payload, p.recvLen = make([]byte, b), 0
		if b == 0 {
			p.state = stateChecksum
		} else {
			p.state = stateData
		}
	case stateData:
		p.accept(b)
		p.frame.Payload[p.recvLen] = b
		p.recvLen++
		if p.recvLen >= len(p.frame.Payload) {
			p.state = stateChecksum
		}
	case stateChecksum:
		frame, sum := p.frame, Checksum(p.raw)
		p.Reset()
		if sum != b {
			pr.Err = ErrChecksum
			return
		}
		pr.Frame = frame
	}
	return
}

// Feed parses a chunk and returns all complete frames. Dropped frames are
// counted but not reported individually.
func (p *Parser) Feed(data []byte) (frames []Frame, dropped int) {
	for _, b := range data {
		pr := p.Parse(b)
		if pr.Err != nil {
			dropped++
		}
		if pr.Frame != nil {
			frames = append(frames, *pr.Frame)
		}
	}
	return
}

func (p *Parser) begin(b byte) {
	if !isAddr(b) || (p.Dest != 0 && b != p.Dest) {
		return
	}
	p.frame = &Frame{Dest: b}
	p.raw = append(p.raw[:0], b)
	p.state = stateSrc
}

func (p *Parser) accept(b byte) {
	p.raw = append(p.raw, b)
}

func isAddr(b byte) bool {
	return b == AddrBoard || b == AddrHost
}
