package bridge

import (
	"fmt"

	"github.com/golang/protobuf/proto"
)

// Operations understood by Server, with the Request fields they take and
// the Response values they return.
const (
	// Value: baudrate, DefaultBaudrate when 0.
	OpInit           = "init"
	OpHandShake      = "handshake"
	OpCheckSensor    = "check"
	OpCancel         = "cancel"
	OpVerifyPassword = "verify-password" // Value: password
	OpSetAddress     = "set-address"     // Value: address
	// Values: status, system id, library size, security level, address,
	// packet size, baudrate.
	OpSystemParameters = "sys-params"
	// Values: sensor width, height, template size, database size.
	OpDeviceInfo       = "device-info"
	OpSetParameter     = "set-param"       // Buffer: parameter, Value: value
	OpSetSecurityLevel = "set-security"    // Value: level
	OpSetBaudrate      = "set-baud"        // Value: baudrate
	OpSetPacketSize    = "set-packet-size" // Value: size in bytes
	// Buffer: mode, Value: color, Location: speed, Count: repeat.
	OpAuraLED       = "led"
	OpTemplateCount = "template-count" // Values: count
	OpRandomNumber  = "random"         // Values: number
	// Value: page. Values: used locations, Data: bitmap.
	OpIndexTable      = "index-table"
	OpSoftReset       = "reset"
	OpTakeImage       = "take-image"
	OpExtractFeatures = "extract" // Buffer
	OpCreateTemplate  = "create-template"
	OpStoreTemplate   = "store"  // Buffer, Location
	OpLoadTemplate    = "load"   // Buffer, Location
	OpDeleteTemplates = "delete" // Location, Count (1 when 0)
	OpEmptyLibrary    = "empty"
	OpMatchFinger     = "match" // Values: confidence
	// Buffer, Location and Count, the whole library when Count is 0.
	// Values: location, confidence.
	OpSearchFinger     = "search"
	OpDownloadImage    = "download-image"    // Data: image
	OpUploadImage      = "upload-image"      // Data: image
	OpDownloadTemplate = "download-template" // Buffer. Data: template
	OpUploadTemplate   = "upload-template"   // Buffer, Data: template
)

// Request asks Server to run one sensor operation. Fields not used by Op
// are ignored.
type Request struct {
	Seq      uint32 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Op       string `protobuf:"bytes,2,opt,name=op,proto3" json:"op,omitempty"`
	Buffer   uint32 `protobuf:"varint,3,opt,name=buffer,proto3" json:"buffer,omitempty"`
	Location uint32 `protobuf:"varint,4,opt,name=location,proto3" json:"location,omitempty"`
	Count    uint32 `protobuf:"varint,5,opt,name=count,proto3" json:"count,omitempty"`
	Value    uint32 `protobuf:"varint,6,opt,name=value,proto3" json:"value,omitempty"`
	Data     []byte `protobuf:"bytes,7,opt,name=data,proto3" json:"data,omitempty"`
}

// Reset implements proto.Message.
func (m *Request) Reset() { *m = Request{} }

// String implements proto.Message.
func (m *Request) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Request) ProtoMessage() {}

// Response is the result of a Request with the same Seq.
//
// Code is the confirmation code. Error is set when the operation could not
// be carried out at all. Values holds numeric results in the order
// documented per operation, Text a rendering for display.
type Response struct {
	Seq    uint32   `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Code   uint32   `protobuf:"varint,2,opt,name=code,proto3" json:"code"`
	Data   []byte   `protobuf:"bytes,3,opt,name=data,proto3" json:"data,omitempty"`
	Error  string   `protobuf:"bytes,4,opt,name=error,proto3" json:"error,omitempty"`
	Values []uint32 `protobuf:"varint,5,rep,packed,name=values,proto3" json:"values,omitempty"`
	Text   string   `protobuf:"bytes,6,opt,name=text,proto3" json:"text,omitempty"`
}

// Reset implements proto.Message.
func (m *Response) Reset() { *m = Response{} }

// String implements proto.Message.
func (m *Response) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Response) ProtoMessage() {}

// RemoteError is an error reported by the remote side.
type RemoteError struct {
	Op  string
	Msg string
}

// Error implements error.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: remote: %s", e.Op, e.Msg)
}

// EncodeRequest encodes a Request into a packet.
func EncodeRequest(req *Request) ([]byte, error) {
	return proto.Marshal(req)
}

// DecodeRequest decodes a packet into a Request.
func DecodeRequest(pkt []byte) (*Request, error) {
	var req Request
	if err := proto.Unmarshal(pkt, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// EncodeResponse encodes a Response into a packet.
func EncodeResponse(resp *Response) ([]byte, error) {
	return proto.Marshal(resp)
}

// DecodeResponse decodes a packet into a Response.
func DecodeResponse(pkt []byte) (*Response, error) {
	var resp Response
	if err := proto.Unmarshal(pkt, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
