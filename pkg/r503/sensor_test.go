package r503

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	testSysParams = []byte{
		0x00, 0x00, // status
		0x00, 0x01, // system id
		0x00, 0x64, // library size
		0x00, 0x03, // security level
		0xFF, 0xFF, 0xFF, 0xFF, // address
		0x00, 0x00, // packet size
		0x00, 0x01, // baudrate
	}
	testDeviceInfo = func() []byte {
		b := make([]byte, deviceInfoSize)
		copy(b[0:], "R503")
		copy(b[16:], "BT01")
		copy(b[20:], "SN123456")
		b[28], b[29] = 1, 2
		copy(b[30:], "OPT")
		b[38], b[39] = 0x00, 0xC0 // width 192
		b[40], b[41] = 0x00, 0xC0 // height 192
		b[42], b[43] = 0x06, 0x00 // template 1536
		b[44], b[45] = 0x00, 0xC8 // database 200
		return b
	}()
)

// deviceReplies answers initialization commands like a healthy sensor and
// everything else using fallback.
func deviceReplies(fallback func(pkt *Packet) [][]byte) func(pkt *Packet) [][]byte {
	return func(pkt *Packet) [][]byte {
		switch pkt.Payload[0] {
		case OpVerifyPassword:
			return [][]byte{ack(CodeOK)}
		case OpReadSysParams:
			return [][]byte{ack(CodeOK, testSysParams...)}
		case OpReadDeviceInfo:
			return [][]byte{ack(CodeOK, testDeviceInfo...)}
		}
		if fallback != nil {
			return fallback(pkt)
		}
		return [][]byte{ack(CodeOK)}
	}
}

func newTestSensor(t *testing.T, fallback func(pkt *Packet) [][]byte) (*Sensor, *fakeTransport) {
	ft := newFakeTransport(deviceReplies(fallback))
	s := NewSensor(ft)
	s.ReceiveTimeout = 100 * time.Millisecond
	s.ResetTimeout = 100 * time.Millisecond
	s.Receiver = &ScanReceiver{Budget: 200 * time.Millisecond}
	code, err := s.Init(57600)
	require.NoError(t, err)
	require.Equal(t, CodeOK, code)
	ft.commands = nil
	return s, ft
}

func TestReadSystemParameters(t *testing.T) {
	ft := newFakeTransport(func(pkt *Packet) [][]byte {
		return [][]byte{ack(CodeOK, testSysParams...)}
	})
	s := NewSensor(ft)
	params, err := s.ReadSystemParameters()
	require.NoError(t, err)
	require.Equal(t, CodeOK, params.Code)
	require.Equal(t, uint16(0), params.StatusRegister)
	require.Equal(t, uint16(1), params.SystemID)
	require.Equal(t, uint16(100), params.LibrarySize)
	require.Equal(t, uint16(3), params.SecurityLevel)
	require.Equal(t, uint32(0xFFFFFFFF), params.Address)
	require.Equal(t, 32, params.PacketSize)
	require.Equal(t, 9600, params.Baudrate)

	require.Len(t, ft.commands, 1)
	require.Equal(t, []byte{OpReadSysParams}, ft.commands[0].Payload)
	require.Contains(t, params.String(), "Finger Library Capacity: 100")
}

func TestReadDeviceInfo(t *testing.T) {
	ft := newFakeTransport(func(pkt *Packet) [][]byte {
		return [][]byte{ack(CodeOK, testDeviceInfo...)}
	})
	info, err := NewSensor(ft).ReadDeviceInfo()
	require.NoError(t, err)
	require.Equal(t, CodeOK, info.Code)
	require.Equal(t, "R503", info.ModuleType)
	require.Equal(t, "BT01", info.BatchNumber)
	require.Equal(t, "SN123456", info.SerialNumber)
	require.Equal(t, [2]byte{1, 2}, info.HWVersion)
	require.Equal(t, "OPT", info.SensorType)
	require.Equal(t, uint16(192), info.SensorWidth)
	require.Equal(t, uint16(192), info.SensorHeight)
	require.Equal(t, uint16(1536), info.TemplateSize)
	require.Equal(t, uint16(200), info.DatabaseSize)
	require.Contains(t, info.String(), "Sensor Dimension: 192x192")
}

func TestInit(t *testing.T) {
	s, ft := newTestSensor(t, nil)
	require.True(t, s.Initialized())
	require.Equal(t, 57600, ft.baud)
	require.Equal(t, 57600, s.Baudrate())
	require.Equal(t, 32, s.PacketSize())
	require.Equal(t, uint16(100), s.LibrarySize())
	require.Equal(t, uint16(1536), s.TemplateSize())
}

func TestInitAbortsOnFailure(t *testing.T) {
	testCases := []struct {
		name     string
		failAt   byte
		code     Code
		commands []byte
	}{
		{"wrong password", OpVerifyPassword, CodeWrongPassword, []byte{OpVerifyPassword}},
		{"parameters", OpReadSysParams, CodeReceiveError, []byte{OpVerifyPassword, OpReadSysParams}},
		{"device info", OpReadDeviceInfo, CodeReceiveError, []byte{OpVerifyPassword, OpReadSysParams, OpReadDeviceInfo}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			healthy := deviceReplies(nil)
			ft := newFakeTransport(func(pkt *Packet) [][]byte {
				if pkt.Payload[0] == tc.failAt {
					return [][]byte{ack(tc.code)}
				}
				return healthy(pkt)
			})
			s := NewSensor(ft)
			s.ReceiveTimeout = 100 * time.Millisecond
			code, err := s.Init(57600)
			require.NoError(t, err)
			require.Equal(t, tc.code, code)
			require.False(t, s.Initialized())
			var ops []byte
			for _, cmd := range ft.commands {
				ops = append(ops, cmd.Payload[0])
			}
			require.Equal(t, tc.commands, ops)
		})
	}
}

func TestInitTruncatedAcknowledge(t *testing.T) {
	testCases := []struct {
		name     string
		op       byte
		data     []byte
		commands []byte
	}{
		{"parameters", OpReadSysParams, []byte{0x00, 0x00}, []byte{OpVerifyPassword, OpReadSysParams}},
		{"device info", OpReadDeviceInfo, testDeviceInfo[:deviceInfoSize-1], []byte{OpVerifyPassword, OpReadSysParams, OpReadDeviceInfo}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			healthy := deviceReplies(nil)
			ft := newFakeTransport(func(pkt *Packet) [][]byte {
				if pkt.Payload[0] == tc.op {
					return [][]byte{ack(CodeOK, tc.data...)}
				}
				return healthy(pkt)
			})
			s := NewSensor(ft)
			s.ReceiveTimeout = 100 * time.Millisecond
			code, err := s.Init(57600)
			require.NoError(t, err)
			require.Equal(t, CodePacketMismatch, code)
			require.False(t, s.Initialized())
			require.Equal(t, 0, int(s.LibrarySize()))
			var ops []byte
			for _, cmd := range ft.commands {
				ops = append(ops, cmd.Payload[0])
			}
			require.Equal(t, tc.commands, ops)

			_, err = s.SearchFinger(1)
			require.Equal(t, ErrNotInitialized, err)
		})
	}
}

func TestInitTimeout(t *testing.T) {
	ft := newFakeTransport(nil)
	s := NewSensor(ft)
	s.ReceiveTimeout = 50 * time.Millisecond
	code, err := s.Init(57600)
	require.NoError(t, err)
	require.Equal(t, CodeTimeout, code)
	require.False(t, s.Initialized())
}

func TestNotInitialized(t *testing.T) {
	ft := newFakeTransport(replyOK)
	s := NewSensor(ft)
	_, err := s.SearchFinger(1)
	require.Equal(t, ErrNotInitialized, err)
	_, _, err = s.DownloadImage()
	require.Equal(t, ErrNotInitialized, err)
	_, err = s.UploadImage([]byte{1})
	require.Equal(t, ErrNotInitialized, err)
	_, _, err = s.DownloadTemplate(1)
	require.Equal(t, ErrNotInitialized, err)
	_, err = s.UploadTemplate(1, []byte{1})
	require.Equal(t, ErrNotInitialized, err)
	require.Empty(t, ft.sent())
}

func TestSetPacketSize(t *testing.T) {
	testCases := []struct {
		size   int
		param  byte
		result int
	}{
		{32, 0, 32},
		{64, 1, 64},
		{128, 2, 128},
		{256, 3, 256},
		{100, 2, 128},
	}
	for _, tc := range testCases {
		ft := newFakeTransport(replyOK)
		s := NewSensor(ft)
		code, err := s.SetPacketSize(tc.size)
		require.NoError(t, err)
		require.Equal(t, CodeOK, code)
		require.Len(t, ft.commands, 1)
		require.Equal(t, []byte{OpSetParameter, ParamPacketSize, tc.param}, ft.commands[0].Payload)
		require.Equal(t, tc.result, s.PacketSize())
	}
}

func TestSetPacketSizeRejectedKeepsCache(t *testing.T) {
	ft := newFakeTransport(func(*Packet) [][]byte { return [][]byte{ack(CodeReceiveError)} })
	s := NewSensor(ft)
	code, err := s.SetPacketSize(256)
	require.NoError(t, err)
	require.Equal(t, CodeReceiveError, code)
	require.Equal(t, DefaultPacketSize, s.PacketSize())
}

func TestSetBaudrate(t *testing.T) {
	ft := newFakeTransport(replyOK)
	s := NewSensor(ft)
	code, err := s.SetBaudrate(57600)
	require.NoError(t, err)
	require.Equal(t, CodeOK, code)
	require.Len(t, ft.commands, 1)
	require.Equal(t, []byte{OpSetParameter, ParamBaudrate, 6}, ft.commands[0].Payload)
	require.Equal(t, 57600, ft.baud)

	ft = newFakeTransport(replyOK)
	s = NewSensor(ft)
	code, err = s.SetBaudrate(12345)
	require.Equal(t, ErrInvalidBaudrate, err)
	require.Equal(t, CodeInvalidBaudrate, code)
	require.Empty(t, ft.sent())
	require.Zero(t, ft.baud)
}

func TestSetBaudrateRefusedKeepsTransport(t *testing.T) {
	ft := newFakeTransport(func(*Packet) [][]byte { return [][]byte{ack(CodeReceiveError)} })
	s := NewSensor(ft)
	code, err := s.SetBaudrate(115200)
	require.NoError(t, err)
	require.Equal(t, CodeReceiveError, code)
	require.Zero(t, ft.baud)
}

func TestCommands(t *testing.T) {
	testCases := []struct {
		name    string
		call    func(s *Sensor) (Code, error)
		payload []byte
	}{
		{"verify password", func(s *Sensor) (Code, error) { return s.VerifyPassword(0x01020304) }, []byte{OpVerifyPassword, 1, 2, 3, 4}},
		{"take image", (*Sensor).TakeImage, []byte{OpTakeImage}},
		{"extract features", func(s *Sensor) (Code, error) { return s.ExtractFeatures(2) }, []byte{OpExtractFeatures, 2}},
		{"create template", (*Sensor).CreateTemplate, []byte{OpCreateTemplate}},
		{"store template", func(s *Sensor) (Code, error) { return s.StoreTemplate(1, 0x0102) }, []byte{OpStoreTemplate, 1, 1, 2}},
		{"load template", func(s *Sensor) (Code, error) { return s.LoadTemplate(2, 7) }, []byte{OpLoadTemplate, 2, 0, 7}},
		{"delete templates", func(s *Sensor) (Code, error) { return s.DeleteTemplates(0x0100, 3) }, []byte{OpDeleteTemplates, 1, 0, 0, 3}},
		{"delete template", func(s *Sensor) (Code, error) { return s.DeleteTemplate(5) }, []byte{OpDeleteTemplates, 0, 5, 0, 1}},
		{"empty library", (*Sensor).EmptyLibrary, []byte{OpEmptyLibrary}},
		{"cancel", (*Sensor).CancelInstruction, []byte{OpCancel}},
		{"check sensor", (*Sensor).CheckSensor, []byte{OpCheckSensor}},
		{"handshake", (*Sensor).HandShake, []byte{OpHandShake}},
		{"security level", func(s *Sensor) (Code, error) { return s.SetSecurityLevel(4) }, []byte{OpSetParameter, ParamSecurityLevel, 4}},
		{"write parameter", func(s *Sensor) (Code, error) { return s.WriteParameter(7, 9) }, []byte{OpSetParameter, 7, 9}},
		{"aura led", func(s *Sensor) (Code, error) { return s.SetAuraLED(LEDBreathing, LEDBlue, 100, 0) }, []byte{OpAuraLED, 1, 100, 2, 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ft := newFakeTransport(func(*Packet) [][]byte { return [][]byte{ack(CodeNoFinger)} })
			s := NewSensor(ft)
			code, err := tc.call(s)
			require.NoError(t, err)
			// device codes pass through untouched.
			require.Equal(t, CodeNoFinger, code)
			require.Len(t, ft.commands, 1)
			require.Equal(t, PacketCommand, ft.commands[0].Type)
			require.Equal(t, DefaultAddress, ft.commands[0].Address)
			require.Equal(t, tc.payload, ft.commands[0].Payload)
		})
	}
}

func TestSetAddress(t *testing.T) {
	ft := newFakeTransport(replyOK)
	s := NewSensor(ft)
	code, err := s.SetAddress(0x11223344)
	require.NoError(t, err)
	require.Equal(t, CodeOK, code)
	require.Equal(t, []byte{OpSetAddress, 0x11, 0x22, 0x33, 0x44}, ft.commands[0].Payload)
	require.Equal(t, uint32(0x11223344), s.Address)
	_, err = s.HandShake()
	require.NoError(t, err)
	require.Equal(t, uint32(0x11223344), ft.commands[1].Address)
}

func TestResultCommands(t *testing.T) {
	ft := newFakeTransport(func(pkt *Packet) [][]byte {
		switch pkt.Payload[0] {
		case OpMatchFinger:
			return [][]byte{ack(CodeOK, 0x00, 0x64)}
		case OpTemplateCount:
			return [][]byte{ack(CodeOK, 0x00, 0x0A)}
		case OpGetRandomNumber:
			return [][]byte{ack(CodeOK, 0xDE, 0xAD, 0xBE, 0xEF)}
		case OpReadIndexTable:
			table := make([]byte, 32)
			table[0], table[1] = 0x05, 0x80
			return [][]byte{ack(CodeOK, table...)}
		case OpSearchFinger:
			return [][]byte{ack(CodeOK, 0x00, 0x02, 0x00, 0x50)}
		}
		return [][]byte{ack(CodeOK)}
	})
	s := NewSensor(ft)

	match, err := s.MatchFinger()
	require.NoError(t, err)
	require.Equal(t, MatchResult{Code: CodeOK, Confidence: 100}, match)

	count, err := s.GetTemplateCount()
	require.NoError(t, err)
	require.Equal(t, CountResult{Code: CodeOK, Count: 10}, count)
	count, err = s.GetValidTemplateCount()
	require.NoError(t, err)
	require.Equal(t, uint16(10), count.Count)

	random, err := s.GetRandomNumber()
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), random.Number)

	table, err := s.ReadIndexTable(1)
	require.NoError(t, err)
	require.Equal(t, CodeOK, table.Code)
	require.True(t, table.Used(0))
	require.False(t, table.Used(1))
	require.True(t, table.Used(2))
	require.True(t, table.Used(15))
	require.False(t, table.Used(300))
	require.Equal(t, []uint16{256, 258, 271}, table.Locations())
	require.Equal(t, []byte{OpReadIndexTable, 1}, ft.commands[len(ft.commands)-1].Payload)

	found, err := s.SearchFingerRange(1, 10, 20)
	require.NoError(t, err)
	require.Equal(t, SearchResult{Code: CodeOK, Location: 2, Confidence: 0x50}, found)
	require.Equal(t, []byte{OpSearchFinger, 1, 0, 10, 0, 20}, ft.commands[len(ft.commands)-1].Payload)
}

func TestResultOnDeviceError(t *testing.T) {
	ft := newFakeTransport(func(*Packet) [][]byte { return [][]byte{ack(CodeNoMatch)} })
	match, err := NewSensor(ft).MatchFinger()
	require.NoError(t, err)
	require.Equal(t, MatchResult{Code: CodeNoMatch}, match)
}

func TestResultTruncated(t *testing.T) {
	ft := newFakeTransport(func(pkt *Packet) [][]byte {
		return [][]byte{ack(CodeOK, 0x01)}
	})
	s := NewSensor(ft)
	testCases := []struct {
		name string
		call func() (Code, error)
	}{
		{"match", func() (Code, error) { r, err := s.MatchFinger(); return r.Code, err }},
		{"search", func() (Code, error) { r, err := s.SearchFingerRange(1, 0, 10); return r.Code, err }},
		{"count", func() (Code, error) { r, err := s.GetTemplateCount(); return r.Code, err }},
		{"random", func() (Code, error) { r, err := s.GetRandomNumber(); return r.Code, err }},
		{"index table", func() (Code, error) { r, err := s.ReadIndexTable(0); return r.Code, err }},
		{"parameters", func() (Code, error) { r, err := s.ReadSystemParameters(); return r.Code, err }},
		{"device info", func() (Code, error) { r, err := s.ReadDeviceInfo(); return r.Code, err }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			code, err := tc.call()
			require.NoError(t, err)
			require.Equal(t, CodePacketMismatch, code)
		})
	}
}

func TestSearchFingerUsesLibrarySize(t *testing.T) {
	s, ft := newTestSensor(t, func(pkt *Packet) [][]byte {
		return [][]byte{ack(CodeOK, 0x00, 0x07, 0x00, 0x99)}
	})
	r, err := s.SearchFinger(2)
	require.NoError(t, err)
	require.Equal(t, SearchResult{Code: CodeOK, Location: 7, Confidence: 0x99}, r)
	require.Equal(t, []byte{OpSearchFinger, 2, 0, 0, 0, 100}, ft.commands[0].Payload)
}

func TestPacketMismatch(t *testing.T) {
	ft := newFakeTransport(func(*Packet) [][]byte {
		return [][]byte{dataPacket(PacketDataEnd, []byte{0x00})}
	})
	code, err := NewSensor(ft).HandShake()
	require.NoError(t, err)
	require.Equal(t, CodePacketMismatch, code)
}

func TestStaleBytesDiscarded(t *testing.T) {
	ft := newFakeTransport(func(*Packet) [][]byte { return [][]byte{ack(CodeOK)} })
	// a late acknowledge of an earlier exchange.
	ft.inject(ack(CodeNoFinger))
	code, err := NewSensor(ft).TakeImage()
	require.NoError(t, err)
	require.Equal(t, CodeOK, code)
}

func TestSoftReset(t *testing.T) {
	ft := newFakeTransport(func(*Packet) [][]byte { return [][]byte{ack(CodeOK), {0x00, resetReady}} })
	s := NewSensor(ft)
	s.ResetTimeout = 100 * time.Millisecond
	code, err := s.SoftReset()
	require.NoError(t, err)
	require.Equal(t, CodeOK, code)

	ft = newFakeTransport(replyOK)
	s = NewSensor(ft)
	s.ResetTimeout = 100 * time.Millisecond
	start := time.Now()
	code, err = s.SoftReset()
	require.NoError(t, err)
	require.Equal(t, CodeTimeout, code)
	require.True(t, time.Since(start) >= 100*time.Millisecond)
}

func TestUploadTemplate(t *testing.T) {
	s, ft := newTestSensor(t, nil)
	_, err := s.SetPacketSize(256)
	require.NoError(t, err)
	tmpl := seq(100, 0x10)
	code, err := s.UploadTemplate(1, tmpl)
	require.NoError(t, err)
	require.Equal(t, CodeOK, code)

	var data []byte
	var types []PacketType
	for _, pkt := range ft.sentPackets() {
		if pkt.Type.IsData() {
			data = append(data, pkt.Payload...)
			types = append(types, pkt.Type)
		}
	}
	require.Len(t, data, 1536+256)
	require.Equal(t, tmpl, data[:100])
	require.Equal(t, bytes.Repeat([]byte{0xFF}, len(data)-100), data[100:])
	require.Len(t, types, 7)
	require.Equal(t, PacketDataEnd, types[6])
	require.Equal(t, []byte{OpUploadTemplate, 1}, ft.commands[1].Payload)
}

func TestUploadTemplateRefused(t *testing.T) {
	s, ft := newTestSensor(t, func(*Packet) [][]byte { return [][]byte{ack(CodeTransferError)} })
	code, err := s.UploadTemplate(1, []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, CodeTransferError, code)
	for _, pkt := range ft.sentPackets() {
		require.False(t, pkt.Type.IsData())
	}
}

func TestDownloadTemplate(t *testing.T) {
	first, second := seq(64, 0x10), seq(30, 0x60)
	s, ft := newTestSensor(t, func(pkt *Packet) [][]byte {
		return [][]byte{ack(CodeOK), dataStream(first, second)}
	})
	data, code, err := s.DownloadTemplate(2)
	require.NoError(t, err)
	require.Equal(t, CodeOK, code)
	require.Equal(t, append(append([]byte(nil), first...), second...), data)
	require.Equal(t, []byte{OpDownloadTemplate, 2}, ft.commands[0].Payload)
}

func TestDownloadImageNoImage(t *testing.T) {
	s, _ := newTestSensor(t, func(*Packet) [][]byte { return [][]byte{ack(CodeNoImage)} })
	data, code, err := s.DownloadImage()
	require.NoError(t, err)
	require.Equal(t, CodeNoImage, code)
	require.Nil(t, data)
}

func TestUploadImage(t *testing.T) {
	s, ft := newTestSensor(t, nil)
	image := seq(100, 0)
	code, err := s.UploadImage(image)
	require.NoError(t, err)
	require.Equal(t, CodeOK, code)
	var lengths []int
	for _, pkt := range ft.sentPackets() {
		if pkt.Type.IsData() {
			lengths = append(lengths, len(pkt.Payload))
		}
	}
	require.Equal(t, []int{32, 32, 32, 4}, lengths)
}

func TestCodes(t *testing.T) {
	require.True(t, CodeOK.OK())
	require.False(t, CodeNoFinger.OK())
	require.True(t, CodeTimeout.IsLocal())
	require.False(t, CodeSensorAbnormal.IsLocal())
	require.Equal(t, "no finger", CodeNoFinger.String())
	require.Equal(t, "code 0x42", Code(0x42).String())
	require.NoError(t, CodeOK.Err("take image"))
	err := CodeNoFinger.Err("take image")
	require.EqualError(t, err, "take image: no finger (0x02)")
}
