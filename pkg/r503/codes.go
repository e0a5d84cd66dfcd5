package r503

import "fmt"

// Code is the confirmation code of an operation. Codes below 0xE0 are
// reported by the sensor, the rest are detected locally.
type Code byte

// Codes reported by the sensor.
const (
	CodeOK              Code = 0x00
	CodeReceiveError    Code = 0x01
	CodeNoFinger        Code = 0x02
	CodeImageFail       Code = 0x03
	CodeImageMessy      Code = 0x06
	CodeFeatureFail     Code = 0x07
	CodeNoMatch         Code = 0x08
	CodeNotFound        Code = 0x09
	CodeMergeFail       Code = 0x0A
	CodeBadLocation     Code = 0x0B
	CodeReadTemplate    Code = 0x0C
	CodeTransferError   Code = 0x0E
	CodeUploadImageFail Code = 0x0F
	CodeDeleteFail      Code = 0x10
	CodeWrongPassword   Code = 0x13
	CodeNoImage         Code = 0x15
	CodeFlashWriteError Code = 0x18
	CodeBadRegister     Code = 0x1A
	CodeSensorAbnormal  Code = 0x29
)

// Codes detected locally.
const (
	CodeAddressMismatch  Code = 0xE1
	CodeNotEnoughMemory  Code = 0xE2
	CodeChecksumMismatch Code = 0xE3
	CodePacketMismatch   Code = 0xE5
	CodeInvalidStartCode Code = 0xE6
	CodeInvalidBaudrate  Code = 0xE8
	CodeTimeout          Code = 0xE9
)

var codeNames = map[Code]string{
	CodeOK:               "ok",
	CodeReceiveError:     "error receiving packet",
	CodeNoFinger:         "no finger",
	CodeImageFail:        "failed to take image",
	CodeImageMessy:       "image too messy",
	CodeFeatureFail:      "feature extraction failed",
	CodeNoMatch:          "no match",
	CodeNotFound:         "no match in library",
	CodeMergeFail:        "failed to merge character files",
	CodeBadLocation:      "bad storage location",
	CodeReadTemplate:     "error reading template",
	CodeTransferError:    "error transferring data",
	CodeUploadImageFail:  "failed to upload image",
	CodeDeleteFail:       "failed to delete template",
	CodeWrongPassword:    "wrong password",
	CodeNoImage:          "no valid image",
	CodeFlashWriteError:  "error writing flash",
	CodeBadRegister:      "invalid register",
	CodeSensorAbnormal:   "sensor abnormal",
	CodeAddressMismatch:  "address mismatch",
	CodeNotEnoughMemory:  "not enough memory",
	CodeChecksumMismatch: "checksum mismatch",
	CodePacketMismatch:   "packet mismatch",
	CodeInvalidStartCode: "invalid start code",
	CodeInvalidBaudrate:  "invalid baudrate",
	CodeTimeout:          "timeout",
}

// OK indicates success.
func (c Code) OK() bool {
	return c == CodeOK
}

// IsLocal indicates the code was produced by this driver, not the sensor.
func (c Code) IsLocal() bool {
	return c >= 0xE0
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code 0x%02x", byte(c))
}

// Err converts a non-success code into a CodeError for op, nil otherwise.
func (c Code) Err(op string) error {
	if c.OK() {
		return nil
	}
	return &CodeError{Op: op, Code: c}
}
