package r503

import (
	"time"

	"github.com/golang/glog"
)

// SendData streams data as a sequence of data packets of at most
// packetSize bytes. All but the last are DataStart, the last is DataEnd.
// The sensor doesn't acknowledge chunks, so nothing is awaited.
func SendData(t Transport, addr uint32, packetSize int, data []byte) error {
	if packetSize <= 0 {
		packetSize = DefaultPacketSize
	}
	for offset := 0; ; {
		n, typ := len(data)-offset, PacketDataEnd
		if n > packetSize {
			n, typ = packetSize, PacketDataStart
		}
		if err := WritePacket(t, NewPacket(addr, typ, data[offset:offset+n])); err != nil {
			return err
		}
		if offset += n; offset >= len(data) {
			return nil
		}
	}
}

// DataReceiver reassembles a stream of data packets sent by the sensor
// after an upload trigger. capacity bounds the result when positive.
type DataReceiver interface {
	ReceiveData(t Transport, capacity int) ([]byte, Code, error)
}

// ScanReceiver captures raw bytes until the header of a DataEnd packet
// and the rest of that packet are seen (or Budget runs out) and then cuts
// the payloads out between start codes.
//
// It checks neither checksums nor declared lengths of intermediate
// packets and assumes 0xEF 0x01 never appears inside a payload. This
// holds for image and template data of the sensor, and tolerates packets
// the sensor emits too early or with broken checksums.
type ScanReceiver struct {
	Budget time.Duration
}

// ReceiveData implements DataReceiver.
func (r *ScanReceiver) ReceiveData(t Transport, capacity int) ([]byte, Code, error) {
	budget := r.Budget
	if budget <= 0 {
		budget = DefaultDataTimeout
	}
	deadline := time.Now().Add(budget)

	var raw []byte
	read := func(n int) (bool, error) {
		for ; n > 0; n-- {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return false, nil
			}
			b, err := t.ReadByte(remaining)
			if err == ErrReadTimeout {
				n++
				continue
			}
			if err != nil {
				return false, err
			}
			raw = append(raw, b)
		}
		return true, nil
	}

	var ended bool
	for !ended {
		ok, err := read(1)
		if err != nil {
			return nil, CodeOK, err
		}
		if !ok {
			break
		}
		ended = isDataEndHeader(raw)
	}

	code, complete := CodeOK, false
	if ended {
		// the low length byte, then payload and checksum of the last packet.
		ok, err := read(1)
		if err == nil && ok {
			n := len(raw)
			ok, err = read(int(raw[n-2])<<8 | int(raw[n-1]))
		}
		if err != nil {
			return nil, CodeOK, err
		}
		complete = ok
	}
	if !complete {
		code = CodeTimeout
	}
	glog.V(2).Infof("<< %d raw data bytes, complete=%v", len(raw), complete)

	data := cutPayloads(raw, complete)
	return limitCapacity(data, code, capacity)
}

// isDataEndHeader matches the first 8 header bytes of a DataEnd packet at
// the tail of raw.
func isDataEndHeader(raw []byte) bool {
	n := len(raw)
	return n >= headerSize-1 &&
		raw[n-8] == startHi && raw[n-7] == startLo &&
		PacketType(raw[n-2]) == PacketDataEnd
}

// cutPayloads concatenates the bytes between each start code plus header
// and the checksum before the next start code. The chunk after the last
// start code is only taken when the stream is complete.
func cutPayloads(raw []byte, complete bool) []byte {
	var out []byte
	start := -1
	for i := 0; i+1 < len(raw); i++ {
		if raw[i] != startHi || raw[i+1] != startLo {
			continue
		}
		if start >= 0 {
			if end := i - checksumSize; end > start {
				out = append(out, raw[start:end]...)
			}
		}
		start = i + headerSize
	}
	if complete && start >= 0 {
		if end := len(raw) - checksumSize; end > start {
			out = append(out, raw[start:end]...)
		}
	}
	return out
}

// FrameReceiver decodes each data packet strictly with ReadPacket,
// verifying checksums, until a DataEnd packet.
type FrameReceiver struct {
	Timeout      time.Duration
	FrameTimeout time.Duration
}

// ReceiveData implements DataReceiver.
func (r *FrameReceiver) ReceiveData(t Transport, capacity int) ([]byte, Code, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultReceiveTimeout
	}
	var data []byte
	for {
		pkt, code, err := ReadPacket(t, timeout, r.FrameTimeout)
		if err != nil {
			return data, CodeOK, err
		}
		if !code.OK() {
			return data, code, nil
		}
		if !pkt.Type.IsData() {
			return data, CodePacketMismatch, nil
		}
		data = append(data, pkt.Payload...)
		if pkt.Type == PacketDataEnd {
			break
		}
	}
	return limitCapacity(data, CodeOK, capacity)
}

func limitCapacity(data []byte, code Code, capacity int) ([]byte, Code, error) {
	if capacity > 0 && len(data) > capacity {
		glog.Warningf("received %d bytes, capacity %d", len(data), capacity)
		data = data[:capacity]
		if code.OK() {
			code = CodeNotEnoughMemory
		}
	}
	return data, code, nil
}
