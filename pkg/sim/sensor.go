// Package sim simulates an R503 sensor behind the r503.Transport contract.
package sim

import (
	"math/rand"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/r503.go/pkg/r503"
)

// Defaults of a simulated sensor.
const (
	DefaultLibrarySize   = 200
	DefaultTemplateSize  = 1536
	DefaultImageWidth    = 192
	DefaultImageHeight   = 192
	DefaultPacketSize    = 128
	DefaultSecurityLevel = 3
	DefaultResetDelay    = 50 * time.Millisecond

	charBuffers = 6
	resetReady  = 0x55
)

// LED is the state of the aura LED ring.
type LED struct {
	Mode   r503.LEDMode
	Color  r503.LEDColor
	Speed  byte
	Repeat byte
}

// Sensor is a simulated R503 sensor. It implements r503.Transport: bytes
// written are the frames from the host, bytes read are the replies.
//
// Settings may be changed before the first command; afterwards they are
// owned by the simulation.
type Sensor struct {
	Address       uint32
	Password      uint32
	Baudrate      int
	PacketSize    int
	SecurityLevel byte
	LibrarySize   uint16
	TemplateSize  uint16
	ImageWidth    uint16
	ImageHeight   uint16
	// StrayBytes are emitted before every data stream.
	StrayBytes []byte
	// ResetDelay is the time until the ready byte after a soft reset.
	ResetDelay time.Duration
	// Abnormal makes CheckSensor report a broken sensor.
	Abnormal bool

	lock     sync.Mutex
	notify   chan struct{}
	parser   r503.Parser
	out      []byte
	hostBaud int
	verified bool
	finger   *Finger
	image    []byte
	chars    [charBuffers + 1][]byte
	library  map[uint16][]byte
	led      LED
	upload   *upload
	rng      *rand.Rand
}

// upload collects a data stream from the host.
type upload struct {
	// buffer is the target character buffer, 0 for the image buffer.
	buffer byte
	data   []byte
}

// New creates a simulated sensor with factory settings and an empty
// library.
func New() *Sensor {
	return &Sensor{
		Address:       r503.DefaultAddress,
		Password:      r503.DefaultPassword,
		Baudrate:      r503.DefaultBaudrate,
		PacketSize:    DefaultPacketSize,
		SecurityLevel: DefaultSecurityLevel,
		LibrarySize:   DefaultLibrarySize,
		TemplateSize:  DefaultTemplateSize,
		ImageWidth:    DefaultImageWidth,
		ImageHeight:   DefaultImageHeight,
		ResetDelay:    DefaultResetDelay,
		notify:        make(chan struct{}, 1),
		library:       make(map[uint16][]byte),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Write implements io.Writer.
func (s *Sensor) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.hostBaud != 0 && s.hostBaud != s.Baudrate {
		glog.V(2).Infof("sim: %d bytes lost at baudrate %d, sensor at %d",
			len(p), s.hostBaud, s.Baudrate)
		return len(p), nil
	}
	for _, b := range p {
		pr := s.parser.Parse(b)
		if pr.Code == r503.CodeChecksumMismatch {
			glog.V(2).Info("sim: dropped frame with bad checksum")
			s.upload = nil
			s.reply(r503.CodeReceiveError)
			continue
		}
		if pr.Packet != nil {
			s.handlePacket(pr.Packet)
		}
	}
	return len(p), nil
}

// ReadByte implements r503.Transport.
func (s *Sensor) ReadByte(timeout time.Duration) (byte, error) {
	var expired <-chan time.Time
	for {
		s.lock.Lock()
		if len(s.out) > 0 {
			b := s.out[0]
			s.out = s.out[1:]
			s.lock.Unlock()
			return b, nil
		}
		s.lock.Unlock()
		if timeout <= 0 {
			return 0, r503.ErrReadTimeout
		}
		if expired == nil {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			expired = timer.C
		}
		select {
		case <-s.notify:
		case <-expired:
			return 0, r503.ErrReadTimeout
		}
	}
}

// Available implements r503.Transport.
func (s *Sensor) Available() (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.out), nil
}

// SetBaudrate implements r503.Transport. Frames written at a baudrate
// other than the sensor's are lost.
func (s *Sensor) SetBaudrate(baud int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.hostBaud = baud
	return nil
}

// PlaceFinger puts a finger on the sensor.
func (s *Sensor) PlaceFinger(f Finger) {
	s.lock.Lock()
	defer s.lock.Unlock()
	f.ID &= idMask
	s.finger = &f
}

// RemoveFinger lifts the finger from the sensor.
func (s *Sensor) RemoveFinger() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.finger = nil
}

// Enroll stores a template of f at location of the library.
func (s *Sensor) Enroll(location uint16, f Finger) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.library[location] = renderTemplate(f.ID&idMask, int(s.TemplateSize))
}

// Template returns the template stored at location.
func (s *Sensor) Template(location uint16) ([]byte, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	t, ok := s.library[location]
	return append([]byte(nil), t...), ok
}

// CharBuffer returns the content of a character buffer.
func (s *Sensor) CharBuffer(n byte) []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	if n < 1 || n > charBuffers {
		return nil
	}
	return append([]byte(nil), s.chars[n]...)
}

// Image returns the content of the image buffer.
func (s *Sensor) Image() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]byte(nil), s.image...)
}

// LED returns the current state of the LED ring.
func (s *Sensor) LED() LED {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.led
}

func (s *Sensor) handlePacket(pkt *r503.Packet) {
	if pkt.Address != s.Address {
		glog.V(2).Infof("sim: ignored packet for %08x", pkt.Address)
		return
	}
	switch {
	case pkt.Type.IsData():
		if s.upload == nil {
			glog.V(2).Info("sim: ignored unexpected data packet")
			return
		}
		s.upload.data = append(s.upload.data, pkt.Payload...)
		if pkt.Type == r503.PacketDataEnd {
			s.finishUpload()
		}
	case pkt.Type == r503.PacketCommand:
		if len(pkt.Payload) == 0 {
			s.reply(r503.CodeReceiveError)
			return
		}
		s.handleCommand(pkt.Payload[0], pkt.Payload[1:])
	}
}

func (s *Sensor) finishUpload() {
	u := s.upload
	s.upload = nil
	glog.V(1).Infof("sim: received %d bytes into buffer %d", len(u.data), u.buffer)
	if u.buffer == 0 {
		s.image = u.data
	} else {
		s.chars[u.buffer] = u.data
	}
}

func (s *Sensor) push(b ...byte) {
	s.out = append(s.out, b...)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Sensor) reply(code r503.Code, data ...byte) {
	payload := append([]byte{byte(code)}, data...)
	s.push(r503.NewPacket(s.Address, r503.PacketAck, payload).Bytes()...)
}

// sendData streams data in packets of PacketSize.
func (s *Sensor) sendData(data []byte) {
	s.push(s.StrayBytes...)
	size := s.PacketSize
	if size <= 0 {
		size = DefaultPacketSize
	}
	for offset := 0; ; offset += size {
		end, typ := offset+size, r503.PacketDataStart
		if end >= len(data) {
			end, typ = len(data), r503.PacketDataEnd
		}
		s.push(r503.NewPacket(s.Address, typ, data[offset:end]).Bytes()...)
		if typ == r503.PacketDataEnd {
			return
		}
	}
}

func (s *Sensor) imageSize() int {
	return int(s.ImageWidth) * int(s.ImageHeight) / 2
}
