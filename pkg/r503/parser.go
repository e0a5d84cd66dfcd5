package r503

// Parser assembles frames from a byte stream, one byte at a time.
//
// Unlike ReadPacket, it never gives up on a stream: a broken start code
// or checksum drops the frame and the parser looks for the next start
// byte.
type Parser struct {
	state  parseState
	packet *Packet
	length int
	recv   int
	sum    uint16
}

// ParseResult indicates the result after one parsing step.
type ParseResult struct {
	// Packet is set when a frame completed with a valid checksum.
	Packet *Packet
	// Code is CodeInvalidStartCode or CodeChecksumMismatch when a frame
	// was dropped, CodeOK otherwise.
	Code Code
}

type parseState int

const (
	stateStartHi  parseState = iota // waiting for 0xEF
	stateStartLo                    // waiting for 0x01
	stateAddress                    // 4 address bytes
	stateType                       // packet type
	stateLength                     // 2 length bytes
	statePayload                    // length-2 payload bytes
	stateChecksum                   // 2 checksum bytes
)

// Receiving indicates a frame is partially received.
func (p *Parser) Receiving() bool {
	return p.state != stateStartHi
}

// Reset drops any partially received frame.
func (p *Parser) Reset() {
	p.state, p.packet = stateStartHi, nil
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	switch p.state {
	case stateStartHi:
		if b == startHi {
			p.state = stateStartLo
		}
	case stateStartLo:
		if b != startLo {
			p.Reset()
			if b == startHi {
				// a repeated start byte restarts the frame.
				p.state = stateStartLo
				return
			}
			pr.Code = CodeInvalidStartCode
			return
		}
		p.packet, p.recv = &Packet{}, 0
		p.state = stateAddress
	case stateAddress:
		p.packet.Address = p.packet.Address<<8 | uint32(b)
		if p.recv++; p.recv == 4 {
			p.state = stateType
		}
	case stateType:
		p.packet.Type = PacketType(b)
		p.length, p.recv = 0, 0
		p.state = stateLength
	case stateLength:
		p.length = p.length<<8 | int(b)
		if p.recv++; p.recv < 2 {
			break
		}
		if p.length < checksumSize {
			p.Reset()
			pr.Code = CodeChecksumMismatch
			return
		}
		p.packet.Payload, p.recv = make([]byte, p.length-checksumSize), 0
		if len(p.packet.Payload) == 0 {
			p.sum, p.state = 0, stateChecksum
		} else {
			p.state = statePayload
		}
	case statePayload:
		p.packet.Payload[p.recv] = b
		if p.recv++; p.recv >= len(p.packet.Payload) {
			p.sum, p.recv = 0, 0
			p.state = stateChecksum
		}
	case stateChecksum:
		p.sum = p.sum<<8 | uint16(b)
		if p.recv++; p.recv < 2 {
			break
		}
		pkt := p.packet
		pkt.Checksum = p.sum
		p.Reset()
		if !pkt.IsChecksumValid() {
			pr.Code = CodeChecksumMismatch
			return
		}
		pr.Packet = pkt
	}
	return
}

// ParseBytes feeds all bytes and returns the completed packets.
func (p *Parser) ParseBytes(data []byte) (pkts []*Packet) {
	for _, b := range data {
		if pr := p.Parse(b); pr.Packet != nil {
			pkts = append(pkts, pr.Packet)
		}
	}
	return
}
