package r503

import (
	"time"

	"github.com/golang/glog"
)

// WritePacket encodes pkt and writes it to t.
func WritePacket(t Transport, pkt *Packet) error {
	if glog.V(2) {
		glog.Infof(">> %s", pkt)
	}
	_, err := pkt.WriteTo(t)
	return err
}

// ReadPacket receives one frame.
//
// It waits up to timeout for the start byte; any other byte before it is
// skipped. The rest of the frame must arrive within frameTimeout after the
// start byte (timeout is used when frameTimeout is zero). Framing failures
// are reported as Code, failures of the transport itself as error.
func ReadPacket(t Transport, timeout, frameTimeout time.Duration) (*Packet, Code, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, CodeTimeout, nil
		}
		b, err := t.ReadByte(remaining)
		if err == ErrReadTimeout {
			continue
		}
		if err != nil {
			return nil, CodeOK, err
		}
		if b == startHi {
			break
		}
	}

	if frameTimeout <= 0 {
		frameTimeout = timeout
	}
	frameDeadline := time.Now().Add(frameTimeout)

	var header [headerSize]byte
	header[0] = startHi
	if err := readFull(t, header[1:], frameDeadline); err != nil {
		return frameReadFailed(err)
	}
	if uint16(header[0])<<8|uint16(header[1]) != StartCode {
		glog.V(2).Infof("<< invalid start code: % x", header[:2])
		return nil, CodeInvalidStartCode, nil
	}

	pkt := &Packet{
		Address: uint32(header[2])<<24 | uint32(header[3])<<16 | uint32(header[4])<<8 | uint32(header[5]),
		Type:    PacketType(header[6]),
	}
	length := int(header[7])<<8 | int(header[8])
	if length < checksumSize {
		// no room for the checksum, the frame can't be verified.
		glog.V(2).Infof("<< invalid length %d", length)
		return nil, CodeChecksumMismatch, nil
	}
	pkt.Payload = make([]byte, length-checksumSize)
	if err := readFull(t, pkt.Payload, frameDeadline); err != nil {
		return frameReadFailed(err)
	}
	var sum [checksumSize]byte
	if err := readFull(t, sum[:], frameDeadline); err != nil {
		return frameReadFailed(err)
	}
	pkt.Checksum = uint16(sum[0])<<8 | uint16(sum[1])

	if glog.V(2) {
		glog.Infof("<< %s", pkt)
	}
	if !pkt.IsChecksumValid() {
		glog.V(2).Infof("<< checksum mismatch: expect %04x", pkt.CalcChecksum())
		return nil, CodeChecksumMismatch, nil
	}
	return pkt, CodeOK, nil
}

func frameReadFailed(err error) (*Packet, Code, error) {
	if err == ErrReadTimeout {
		return nil, CodeTimeout, nil
	}
	return nil, CodeOK, err
}
