package r503

import (
	"bytes"
	"fmt"
)

// SystemParameters is the result of ReadSystemParameters.
type SystemParameters struct {
	Code           Code
	StatusRegister uint16
	SystemID       uint16
	LibrarySize    uint16
	SecurityLevel  uint16
	Address        uint32
	PacketSize     int
	Baudrate       int
}

// DeviceInfo is the result of ReadDeviceInfo.
type DeviceInfo struct {
	Code         Code
	ModuleType   string
	BatchNumber  string
	SerialNumber string
	HWVersion    [2]byte
	SensorType   string
	SensorWidth  uint16
	SensorHeight uint16
	TemplateSize uint16
	DatabaseSize uint16
}

// Sizes of the results following the confirmation code.
const (
	systemParametersSize = 16
	deviceInfoSize       = 46
	countSize            = 2
	randomSize           = 4
	indexTableSize       = 32
	matchSize            = 2
	searchSize           = 4
)

// resultCode turns CodeOK into CodePacketMismatch when the acknowledge is
// too short to hold the result.
func resultCode(code Code, data []byte, size int) Code {
	if code.OK() && len(data) < size {
		return CodePacketMismatch
	}
	return code
}

func parseSystemParameters(code Code, data []byte) SystemParameters {
	p := SystemParameters{Code: resultCode(code, data, systemParametersSize)}
	if len(data) < systemParametersSize {
		return p
	}
	p.StatusRegister = be16(data[0:])
	p.SystemID = be16(data[2:])
	p.LibrarySize = be16(data[4:])
	p.SecurityLevel = be16(data[6:])
	p.Address = be32(data[8:])
	p.PacketSize = 32 << be16(data[12:])
	p.Baudrate = 9600 * int(be16(data[14:]))
	return p
}

func parseDeviceInfo(code Code, data []byte) DeviceInfo {
	info := DeviceInfo{Code: resultCode(code, data, deviceInfoSize)}
	if len(data) < deviceInfoSize {
		return info
	}
	info.ModuleType = cstring(data[0:16])
	info.BatchNumber = cstring(data[16:20])
	info.SerialNumber = cstring(data[20:28])
	copy(info.HWVersion[:], data[28:30])
	info.SensorType = cstring(data[30:38])
	info.SensorWidth = be16(data[38:])
	info.SensorHeight = be16(data[40:])
	info.TemplateSize = be16(data[42:])
	info.DatabaseSize = be16(data[44:])
	return info
}

// String renders the parameters for display.
func (p SystemParameters) String() string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "Status Register: 0x%02X\n", p.StatusRegister)
	fmt.Fprintf(&w, "System Identifier Code: 0x%04X\n", p.SystemID)
	fmt.Fprintf(&w, "Finger Library Capacity: %d\n", p.LibrarySize)
	fmt.Fprintf(&w, "Security Level: %d\n", p.SecurityLevel)
	fmt.Fprintf(&w, "Device Address: 0x%08X\n", p.Address)
	fmt.Fprintf(&w, "Data Package Size: %d bytes\n", p.PacketSize)
	fmt.Fprintf(&w, "Baudrate: %d", p.Baudrate)
	return w.String()
}

// String renders the device information for display.
func (i DeviceInfo) String() string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "Module Type: %s\n", i.ModuleType)
	fmt.Fprintf(&w, "Module Batch Number: %s\n", i.BatchNumber)
	fmt.Fprintf(&w, "Module Serial Number: %s\n", i.SerialNumber)
	fmt.Fprintf(&w, "Hardware Version: %d.%d\n", i.HWVersion[0], i.HWVersion[1])
	fmt.Fprintf(&w, "Sensor Type: %s\n", i.SensorType)
	fmt.Fprintf(&w, "Sensor Dimension: %dx%d\n", i.SensorWidth, i.SensorHeight)
	fmt.Fprintf(&w, "Sensor Template Size: %d\n", i.TemplateSize)
	fmt.Fprintf(&w, "Sensor Database Size: %d", i.DatabaseSize)
	return w.String()
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func put16(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

func put32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func cstring(b []byte) string {
	if pos := bytes.IndexByte(b, 0); pos >= 0 {
		b = b[:pos]
	}
	return string(b)
}
