package r503

import (
	"fmt"
	"time"

	"github.com/golang/glog"
)

// Instruction codes.
const (
	OpTakeImage        byte = 0x01
	OpExtractFeatures  byte = 0x02
	OpMatchFinger      byte = 0x03
	OpSearchFinger     byte = 0x04
	OpCreateTemplate   byte = 0x05
	OpStoreTemplate    byte = 0x06
	OpLoadTemplate     byte = 0x07
	OpDownloadTemplate byte = 0x08
	OpUploadTemplate   byte = 0x09
	OpDownloadImage    byte = 0x0A
	OpUploadImage      byte = 0x0B
	OpDeleteTemplates  byte = 0x0C
	OpEmptyLibrary     byte = 0x0D
	OpSetParameter     byte = 0x0E
	OpReadSysParams    byte = 0x0F
	OpVerifyPassword   byte = 0x13
	OpGetRandomNumber  byte = 0x14
	OpSetAddress       byte = 0x15
	OpTemplateCount    byte = 0x1D
	OpReadIndexTable   byte = 0x1F
	OpCancel           byte = 0x30
	OpAuraLED          byte = 0x35
	OpCheckSensor      byte = 0x36
	OpReadDeviceInfo   byte = 0x3C
	OpSoftReset        byte = 0x3D
	OpHandShake        byte = 0x40
)

// Parameter numbers for SetParameter.
const (
	ParamBaudrate      byte = 4
	ParamSecurityLevel byte = 5
	ParamPacketSize    byte = 6
)

// LEDMode is the control mode of the aura LED ring.
type LEDMode byte

// LED modes.
const (
	LEDBreathing LEDMode = iota + 1
	LEDFlash
	LEDOn
	LEDOff
	LEDFadeIn
	LEDFadeOut
)

// LEDColor is the color of the aura LED ring.
type LEDColor byte

// LED colors.
const (
	LEDRed LEDColor = iota + 1
	LEDBlue
	LEDPurple
	LEDGreen
	LEDYellow
	LEDCyan
	LEDWhite
)

// MatchResult is the result of MatchFinger.
type MatchResult struct {
	Code       Code
	Confidence uint16
}

// SearchResult is the result of SearchFinger.
type SearchResult struct {
	Code       Code
	Location   uint16
	Confidence uint16
}

// CountResult is the result of GetTemplateCount.
type CountResult struct {
	Code  Code
	Count uint16
}

// RandomResult is the result of GetRandomNumber.
type RandomResult struct {
	Code   Code
	Number uint32
}

// IndexTable is one page of the template library usage bitmap.
type IndexTable struct {
	Code   Code
	Page   byte
	Bitmap [32]byte
}

// IndexTablePageSize is the number of locations covered by one page.
const IndexTablePageSize = 256

// Used indicates whether location i of the page holds a template.
func (t IndexTable) Used(i int) bool {
	if i < 0 || i >= IndexTablePageSize {
		return false
	}
	return t.Bitmap[i/8]&(1<<uint(i%8)) != 0
}

// Locations lists the used library locations of the page.
func (t IndexTable) Locations() (locs []uint16) {
	for i := 0; i < IndexTablePageSize; i++ {
		if t.Used(i) {
			locs = append(locs, uint16(int(t.Page)*IndexTablePageSize+i))
		}
	}
	return
}

var validBaudrates = map[int]bool{
	9600:   true,
	19200:  true,
	38400:  true,
	57600:  true,
	115200: true,
}

var packetSizeParams = map[int]byte{
	32:  0,
	64:  1,
	128: 2,
	256: 3,
}

// command executes a command which has no result beyond the code.
func (s *Sensor) command(opcode byte, args ...byte) (Code, error) {
	code, _, err := s.Exec(opcode, args...)
	return code, err
}

// VerifyPassword verifies the handshake password.
func (s *Sensor) VerifyPassword(password uint32) (Code, error) {
	return s.command(OpVerifyPassword, put32(password)...)
}

// SetAddress changes the sensor address; subsequent packets use it.
func (s *Sensor) SetAddress(addr uint32) (Code, error) {
	code, err := s.command(OpSetAddress, put32(addr)...)
	if err == nil && code.OK() {
		s.Address = addr
	}
	return code, err
}

// ReadSystemParameters reads the basic parameters of the sensor.
func (s *Sensor) ReadSystemParameters() (SystemParameters, error) {
	code, data, err := s.Exec(OpReadSysParams)
	return parseSystemParameters(code, data), err
}

// ReadDeviceInfo reads the product information of the sensor.
func (s *Sensor) ReadDeviceInfo() (DeviceInfo, error) {
	code, data, err := s.Exec(OpReadDeviceInfo)
	return parseDeviceInfo(code, data), err
}

// SetParameter writes a system parameter.
func (s *Sensor) SetParameter(param, value byte) (Code, error) {
	return s.command(OpSetParameter, param, value)
}

// WriteParameter is an alias of SetParameter.
func (s *Sensor) WriteParameter(param, value byte) (Code, error) {
	return s.SetParameter(param, value)
}

// SetSecurityLevel sets the matching threshold, 1 (lowest false
// acceptance) to 5 (lowest false rejection).
func (s *Sensor) SetSecurityLevel(level byte) (Code, error) {
	return s.SetParameter(ParamSecurityLevel, level)
}

// SetBaudrate changes the baudrate of the sensor and then the transport.
// Only 9600, 19200, 38400, 57600 and 115200 are accepted; anything else
// returns CodeInvalidBaudrate with ErrInvalidBaudrate without sending.
func (s *Sensor) SetBaudrate(baud int) (Code, error) {
	if !validBaudrates[baud] {
		return CodeInvalidBaudrate, ErrInvalidBaudrate
	}
	code, err := s.SetParameter(ParamBaudrate, byte(baud/9600))
	if err != nil || !code.OK() {
		return code, err
	}
	if err := s.Transport.SetBaudrate(baud); err != nil {
		return code, fmt.Errorf("set transport baudrate %d: %w", baud, err)
	}
	s.baudrate = baud
	return code, nil
}

// SetPacketSize changes the data packet size. Valid sizes are 32, 64, 128
// and 256; any other size selects 128 rather than being rejected.
func (s *Sensor) SetPacketSize(size int) (Code, error) {
	value, ok := packetSizeParams[size]
	if !ok {
		glog.Warningf("invalid packet size %d, using 128", size)
		value = 2
	}
	code, err := s.SetParameter(ParamPacketSize, value)
	if err == nil && code.OK() {
		s.packetSize = 32 << value
	}
	return code, err
}

// SetAuraLED controls the LED ring. speed and repeat are only used by
// breathing and flashing modes; repeat 0 is infinite.
func (s *Sensor) SetAuraLED(mode LEDMode, color LEDColor, speed, repeat byte) (Code, error) {
	return s.command(OpAuraLED, byte(mode), speed, byte(color), repeat)
}

// HandShake checks the sensor is ready for commands.
func (s *Sensor) HandShake() (Code, error) {
	return s.command(OpHandShake)
}

// CheckSensor checks the sensor state, CodeSensorAbnormal if broken.
func (s *Sensor) CheckSensor() (Code, error) {
	return s.command(OpCheckSensor)
}

// CancelInstruction asks the sensor to abort a running instruction.
func (s *Sensor) CancelInstruction() (Code, error) {
	return s.command(OpCancel)
}

// GetTemplateCount returns the number of stored templates.
func (s *Sensor) GetTemplateCount() (CountResult, error) {
	code, data, err := s.Exec(OpTemplateCount)
	r := CountResult{Code: resultCode(code, data, countSize)}
	if len(data) >= countSize {
		r.Count = be16(data)
	}
	return r, err
}

// GetValidTemplateCount is an alias of GetTemplateCount.
func (s *Sensor) GetValidTemplateCount() (CountResult, error) {
	return s.GetTemplateCount()
}

// GetRandomNumber asks the sensor for a 32-bit random number.
func (s *Sensor) GetRandomNumber() (RandomResult, error) {
	code, data, err := s.Exec(OpGetRandomNumber)
	r := RandomResult{Code: resultCode(code, data, randomSize)}
	if len(data) >= randomSize {
		r.Number = be32(data)
	}
	return r, err
}

// ReadIndexTable reads the usage bitmap of a library page.
func (s *Sensor) ReadIndexTable(page byte) (IndexTable, error) {
	code, data, err := s.Exec(OpReadIndexTable, page)
	t := IndexTable{Code: resultCode(code, data, indexTableSize), Page: page}
	copy(t.Bitmap[:], data)
	return t, err
}

// SoftReset resets the sensor and waits for its ready byte.
func (s *Sensor) SoftReset() (Code, error) {
	code, err := s.command(OpSoftReset)
	if err != nil || !code.OK() {
		return code, err
	}
	timeout := s.ResetTimeout
	if timeout <= 0 {
		timeout = DefaultResetTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return CodeTimeout, nil
		}
		b, err := s.Transport.ReadByte(remaining)
		if err == ErrReadTimeout {
			continue
		}
		if err != nil {
			return CodeOK, err
		}
		if b == resetReady {
			return CodeOK, nil
		}
	}
}

// TakeImage captures a finger image into the image buffer.
func (s *Sensor) TakeImage() (Code, error) {
	return s.command(OpTakeImage)
}

// ExtractFeatures generates a character file from the image into a
// character buffer (1 to 6).
func (s *Sensor) ExtractFeatures(buffer byte) (Code, error) {
	return s.command(OpExtractFeatures, buffer)
}

// CreateTemplate merges the character buffers into a template.
func (s *Sensor) CreateTemplate() (Code, error) {
	return s.command(OpCreateTemplate)
}

// StoreTemplate stores the template of a character buffer into the
// library. Locations out of range are reported by the sensor as
// CodeBadLocation.
func (s *Sensor) StoreTemplate(buffer byte, location uint16) (Code, error) {
	return s.command(OpStoreTemplate, buffer, byte(location>>8), byte(location))
}

// LoadTemplate loads a template from the library into a character buffer.
func (s *Sensor) LoadTemplate(buffer byte, location uint16) (Code, error) {
	return s.command(OpLoadTemplate, buffer, byte(location>>8), byte(location))
}

// DeleteTemplates deletes count templates starting at location.
func (s *Sensor) DeleteTemplates(location, count uint16) (Code, error) {
	return s.command(OpDeleteTemplates, byte(location>>8), byte(location), byte(count>>8), byte(count))
}

// DeleteTemplate deletes a single template.
func (s *Sensor) DeleteTemplate(location uint16) (Code, error) {
	return s.DeleteTemplates(location, 1)
}

// EmptyLibrary deletes all templates.
func (s *Sensor) EmptyLibrary() (Code, error) {
	return s.command(OpEmptyLibrary)
}

// MatchFinger compares character buffers 1 and 2.
func (s *Sensor) MatchFinger() (MatchResult, error) {
	code, data, err := s.Exec(OpMatchFinger)
	r := MatchResult{Code: resultCode(code, data, matchSize)}
	if len(data) >= matchSize {
		r.Confidence = be16(data)
	}
	return r, err
}

// SearchFinger searches the whole library for the character buffer.
func (s *Sensor) SearchFinger(buffer byte) (SearchResult, error) {
	if !s.initialized {
		return SearchResult{}, ErrNotInitialized
	}
	return s.SearchFingerRange(buffer, 0, s.librarySize)
}

// SearchFingerRange searches count library locations from start.
func (s *Sensor) SearchFingerRange(buffer byte, start, count uint16) (SearchResult, error) {
	code, data, err := s.Exec(OpSearchFinger, buffer,
		byte(start>>8), byte(start), byte(count>>8), byte(count))
	r := SearchResult{Code: resultCode(code, data, searchSize)}
	if len(data) >= searchSize {
		r.Location = be16(data)
		r.Confidence = be16(data[2:])
	}
	return r, err
}

// DownloadImage transfers the image buffer from the sensor.
func (s *Sensor) DownloadImage() ([]byte, Code, error) {
	if !s.initialized {
		return nil, CodeOK, ErrNotInitialized
	}
	code, err := s.command(OpDownloadImage)
	if err != nil || !code.OK() {
		return nil, code, err
	}
	return s.receiver().ReceiveData(s.Transport, 0)
}

// UploadImage transfers an image into the image buffer of the sensor.
func (s *Sensor) UploadImage(image []byte) (Code, error) {
	if !s.initialized {
		return CodeOK, ErrNotInitialized
	}
	code, err := s.command(OpUploadImage)
	if err != nil || !code.OK() {
		return code, err
	}
	return CodeOK, SendData(s.Transport, s.Address, s.packetSize, image)
}

// DownloadTemplate transfers the template in a character buffer from the
// sensor.
func (s *Sensor) DownloadTemplate(buffer byte) ([]byte, Code, error) {
	if !s.initialized {
		return nil, CodeOK, ErrNotInitialized
	}
	code, err := s.command(OpDownloadTemplate, buffer)
	if err != nil || !code.OK() {
		return nil, code, err
	}
	return s.receiver().ReceiveData(s.Transport, s.templateBufferSize())
}

// UploadTemplate transfers a template into a character buffer of the
// sensor. The sensor expects exactly template size + 256 bytes, so data is
// padded with 0xFF or truncated.
func (s *Sensor) UploadTemplate(buffer byte, data []byte) (Code, error) {
	if !s.initialized {
		return CodeOK, ErrNotInitialized
	}
	buf := make([]byte, s.templateBufferSize())
	n := copy(buf, data)
	for i := n; i < len(buf); i++ {
		buf[i] = 0xFF
	}
	if len(data) > len(buf) {
		glog.Warningf("template truncated from %d to %d bytes", len(data), len(buf))
	}
	code, err := s.command(OpUploadTemplate, buffer)
	if err != nil || !code.OK() {
		return code, err
	}
	return CodeOK, SendData(s.Transport, s.Address, s.packetSize, buf)
}

func (s *Sensor) templateBufferSize() int {
	return int(s.templateSize) + templatePadding
}
