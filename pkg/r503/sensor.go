package r503

import (
	"fmt"
	"time"

	"github.com/golang/glog"
)

// Defaults.
const (
	DefaultPassword       uint32 = 0
	DefaultBaudrate              = 57600
	DefaultPacketSize            = 32
	DefaultReceiveTimeout        = 3000 * time.Millisecond
	DefaultResetTimeout          = 3000 * time.Millisecond
	DefaultDataTimeout           = 4000 * time.Millisecond

	// templatePadding is added to the template size for template downloads
	// to the sensor.
	templatePadding = 256
	// resetReady is sent by the sensor when it's ready after a soft reset.
	resetReady byte = 0x55
)

// Sensor drives one R503 sensor over a Transport.
//
// A Sensor is the single owner of its Transport. The protocol has no
// request ids, so operations must not be invoked concurrently.
type Sensor struct {
	Transport Transport
	// Address of the sensor on the bus.
	Address uint32
	// Password verified during Init.
	Password uint32
	// ReceiveTimeout bounds waiting for the start of an acknowledge.
	ReceiveTimeout time.Duration
	// FrameTimeout bounds the rest of a frame once it started,
	// ReceiveTimeout is used when zero.
	FrameTimeout time.Duration
	// ResetTimeout bounds waiting for the ready byte after SoftReset.
	ResetTimeout time.Duration
	// Receiver reassembles data streams, a ScanReceiver by default.
	Receiver DataReceiver

	initialized  bool
	baudrate     int
	packetSize   int
	librarySize  uint16
	templateSize uint16
}

// NewSensor creates a Sensor with default settings.
func NewSensor(t Transport) *Sensor {
	return &Sensor{
		Transport:      t,
		Address:        DefaultAddress,
		Password:       DefaultPassword,
		ReceiveTimeout: DefaultReceiveTimeout,
		ResetTimeout:   DefaultResetTimeout,
		Receiver:       &ScanReceiver{Budget: DefaultDataTimeout},
		packetSize:     DefaultPacketSize,
	}
}

// Init configures the transport, verifies the password and caches device
// parameters. It stops at the first stage not succeeding and returns
// its code. The baudrate is cached as soon as the transport is
// reconfigured, so it stays updated after a failed Init.
func (s *Sensor) Init(baud int) (Code, error) {
	s.initialized = false
	if err := s.Transport.SetBaudrate(baud); err != nil {
		return CodeOK, fmt.Errorf("set baudrate %d: %w", baud, err)
	}
	s.baudrate = baud

	code, err := s.VerifyPassword(s.Password)
	if err != nil || !code.OK() {
		glog.Errorf("verify password: %v %v", code, err)
		return code, err
	}
	params, err := s.ReadSystemParameters()
	if err != nil || !params.Code.OK() {
		glog.Errorf("read system parameters: %v %v", params.Code, err)
		return params.Code, err
	}
	info, err := s.ReadDeviceInfo()
	if err != nil || !info.Code.OK() {
		glog.Errorf("read device info: %v %v", info.Code, err)
		return info.Code, err
	}

	s.packetSize = params.PacketSize
	s.librarySize = params.LibrarySize
	s.templateSize = info.TemplateSize
	s.initialized = true
	glog.V(1).Infof("sensor ready: packet size %d, library %d, template %d",
		s.packetSize, s.librarySize, s.templateSize)
	return CodeOK, nil
}

// Initialized indicates Init completed successfully.
func (s *Sensor) Initialized() bool {
	return s.initialized
}

// Baudrate returns the link speed currently configured.
func (s *Sensor) Baudrate() int {
	return s.baudrate
}

// PacketSize returns the cached data packet size.
func (s *Sensor) PacketSize() int {
	return s.packetSize
}

// LibrarySize returns the cached finger library capacity.
func (s *Sensor) LibrarySize() uint16 {
	return s.librarySize
}

// TemplateSize returns the cached template size in bytes.
func (s *Sensor) TemplateSize() uint16 {
	return s.templateSize
}

// Exec sends a command packet with payload [opcode, args...] and waits for
// the acknowledge. It returns the confirmation code and the acknowledge
// payload following it.
func (s *Sensor) Exec(opcode byte, args ...byte) (Code, []byte, error) {
	if n, err := discard(s.Transport); err != nil {
		return CodeOK, nil, err
	} else if n > 0 {
		glog.V(2).Infof("discarded %d stale bytes", n)
	}

	payload := make([]byte, 0, len(args)+1)
	payload = append(payload, opcode)
	payload = append(payload, args...)
	if err := WritePacket(s.Transport, NewPacket(s.Address, PacketCommand, payload)); err != nil {
		return CodeOK, nil, fmt.Errorf("send command 0x%02x: %w", opcode, err)
	}

	pkt, code, err := ReadPacket(s.Transport, s.receiveTimeout(), s.FrameTimeout)
	if err != nil {
		return CodeOK, nil, fmt.Errorf("receive ack 0x%02x: %w", opcode, err)
	}
	if !code.OK() {
		return code, nil, nil
	}
	if pkt.Type != PacketAck || len(pkt.Payload) == 0 {
		return CodePacketMismatch, nil, nil
	}
	return Code(pkt.Payload[0]), pkt.Payload[1:], nil
}

func (s *Sensor) receiveTimeout() time.Duration {
	if s.ReceiveTimeout > 0 {
		return s.ReceiveTimeout
	}
	return DefaultReceiveTimeout
}

func (s *Sensor) receiver() DataReceiver {
	if s.Receiver != nil {
		return s.Receiver
	}
	return &ScanReceiver{}
}
