// Package stream carries bridge packets over a byte stream such as TCP.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/golang/glog"
)

// MaxPacketSize bounds a single packet, larger than any image.
const MaxPacketSize = 1 << 20

// ReadWriter implements bridge.PacketReadWriter.
// Each packet is prefixed by 4-byte (little-endian) indicate the length.
type ReadWriter struct {
	io.ReadWriter
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{s}
}

// Dial connects to a bridge server over TCP.
func Dial(addr string) (*ReadWriter, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	glog.Infof("connected %s", addr)
	return New(conn), nil
}

// ReadPacket implements bridge.PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > MaxPacketSize {
		return nil, fmt.Errorf("packet too large: %d", size)
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p, pkt)
	return pkt, err
}

// WritePacket implements bridge.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	if len(pkt) > MaxPacketSize {
		return fmt.Errorf("packet too large: %d", len(pkt))
	}
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	_, err := p.Write(buf)
	return err
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
