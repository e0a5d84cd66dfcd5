package r503

import (
	"fmt"
	"io"
)

// PacketType identifies the kind of a frame.
type PacketType byte

// Packet types.
const (
	PacketCommand   PacketType = 0x01
	PacketDataStart PacketType = 0x02
	PacketAck       PacketType = 0x07
	PacketDataEnd   PacketType = 0x08
)

const (
	// StartCode is the fixed 2-byte marker beginning every frame.
	StartCode uint16 = 0xEF01
	// DefaultAddress is the factory address of a sensor.
	DefaultAddress uint32 = 0xFFFFFFFF

	startHi byte = 0xEF
	startLo byte = 0x01

	// headerSize covers start code, address, type and length.
	headerSize   = 9
	checksumSize = 2
	// MaxPayload is the largest payload the 16-bit length field can carry.
	MaxPayload = 0xFFFF - checksumSize
)

// String implements fmt.Stringer.
func (t PacketType) String() string {
	switch t {
	case PacketCommand:
		return "command"
	case PacketDataStart:
		return "data"
	case PacketAck:
		return "ack"
	case PacketDataEnd:
		return "data-end"
	}
	return fmt.Sprintf("type(0x%02x)", byte(t))
}

// IsData indicates the packet carries a bulk transfer chunk.
func (t PacketType) IsData() bool {
	return t == PacketDataStart || t == PacketDataEnd
}

// Packet is a single frame on the wire.
type Packet struct {
	Address  uint32
	Type     PacketType
	Payload  []byte
	Checksum uint16
}

// NewPacket creates a packet and computes its checksum.
func NewPacket(addr uint32, typ PacketType, payload []byte) *Packet {
	p := &Packet{Address: addr, Type: typ, Payload: payload}
	p.Checksum = p.CalcChecksum()
	return p
}

// Length returns the value of the length field: payload plus checksum.
func (p *Packet) Length() uint16 {
	return uint16(len(p.Payload) + checksumSize)
}

// CalcChecksum computes the checksum from type, length and payload.
func (p *Packet) CalcChecksum() uint16 {
	l := p.Length()
	sum := uint16(p.Type)
	sum += uint16(l >> 8)
	sum += uint16(l & 0xff)
	for _, b := range p.Payload {
		sum += uint16(b)
	}
	return sum
}

// IsChecksumValid verifies Checksum against the content.
func (p *Packet) IsChecksumValid() bool {
	return p.Checksum == p.CalcChecksum()
}

// Bytes returns encoded bytes for sending.
func (p *Packet) Bytes() []byte {
	if len(p.Payload) > MaxPayload {
		panic(fmt.Sprintf("r503: payload too large: %d", len(p.Payload)))
	}
	b := make([]byte, headerSize+len(p.Payload)+checksumSize)
	putHeader(b, p.Address, p.Type, p.Length())
	copy(b[headerSize:], p.Payload)
	n := headerSize + len(p.Payload)
	b[n], b[n+1] = byte(p.Checksum>>8), byte(p.Checksum)
	return b
}

// WriteTo writes encoded bytes.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// String implements fmt.Stringer.
func (p *Packet) String() string {
	return fmt.Sprintf("%s addr=%08x len=%d sum=%04x [% x]",
		p.Type, p.Address, len(p.Payload), p.Checksum, p.Payload)
}

func putHeader(b []byte, addr uint32, typ PacketType, length uint16) {
	b[0], b[1] = startHi, startLo
	b[2], b[3], b[4], b[5] = byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr)
	b[6] = byte(typ)
	b[7], b[8] = byte(length>>8), byte(length)
}
