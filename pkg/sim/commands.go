package sim

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/r503.go/pkg/r503"
)

type handler struct {
	args int
	fn   func(s *Sensor, args []byte)
}

var handlers = map[byte]handler{
	r503.OpTakeImage:        {0, (*Sensor).takeImage},
	r503.OpExtractFeatures:  {1, (*Sensor).extractFeatures},
	r503.OpMatchFinger:      {0, (*Sensor).matchFinger},
	r503.OpSearchFinger:     {5, (*Sensor).searchFinger},
	r503.OpCreateTemplate:   {0, (*Sensor).createTemplate},
	r503.OpStoreTemplate:    {3, (*Sensor).storeTemplate},
	r503.OpLoadTemplate:     {3, (*Sensor).loadTemplate},
	r503.OpDownloadTemplate: {1, (*Sensor).downloadTemplate},
	r503.OpUploadTemplate:   {1, (*Sensor).uploadTemplate},
	r503.OpDownloadImage:    {0, (*Sensor).downloadImage},
	r503.OpUploadImage:      {0, (*Sensor).uploadImage},
	r503.OpDeleteTemplates:  {4, (*Sensor).deleteTemplates},
	r503.OpEmptyLibrary:     {0, (*Sensor).emptyLibrary},
	r503.OpSetParameter:     {2, (*Sensor).setParameter},
	r503.OpReadSysParams:    {0, (*Sensor).readSysParams},
	r503.OpVerifyPassword:   {4, (*Sensor).verifyPassword},
	r503.OpGetRandomNumber:  {0, (*Sensor).getRandomNumber},
	r503.OpSetAddress:       {4, (*Sensor).setAddress},
	r503.OpTemplateCount:    {0, (*Sensor).templateCount},
	r503.OpReadIndexTable:   {1, (*Sensor).readIndexTable},
	r503.OpCancel:           {0, (*Sensor).ok},
	r503.OpAuraLED:          {4, (*Sensor).auraLED},
	r503.OpCheckSensor:      {0, (*Sensor).checkSensor},
	r503.OpReadDeviceInfo:   {0, (*Sensor).readDeviceInfo},
	r503.OpSoftReset:        {0, (*Sensor).softReset},
	r503.OpHandShake:        {0, (*Sensor).ok},
}

func (s *Sensor) handleCommand(op byte, args []byte) {
	glog.V(2).Infof("sim: command 0x%02x [% x]", op, args)
	h, ok := handlers[op]
	if !ok || len(args) < h.args {
		s.reply(r503.CodeReceiveError)
		return
	}
	// a sensor with a password only talks after it has been verified.
	if s.Password != r503.DefaultPassword && !s.verified &&
		op != r503.OpVerifyPassword && op != r503.OpHandShake {
		s.reply(r503.CodeWrongPassword)
		return
	}
	h.fn(s, args)
}

func u16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func u32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func validBuffer(n byte) bool {
	return n >= 1 && n <= charBuffers
}

func (s *Sensor) ok([]byte) {
	s.reply(r503.CodeOK)
}

func (s *Sensor) takeImage([]byte) {
	if s.finger == nil {
		s.reply(r503.CodeNoFinger)
		return
	}
	s.image = renderImage(*s.finger, s.imageSize())
	s.reply(r503.CodeOK)
}

func (s *Sensor) extractFeatures(args []byte) {
	if !validBuffer(args[0]) {
		s.reply(r503.CodeReceiveError)
		return
	}
	id, code := imageFinger(s.image)
	if !code.OK() {
		s.reply(code)
		return
	}
	s.chars[args[0]] = renderTemplate(id, int(s.TemplateSize))
	s.reply(r503.CodeOK)
}

func (s *Sensor) matchFinger([]byte) {
	id1, ok1 := templateFinger(s.chars[1])
	id2, ok2 := templateFinger(s.chars[2])
	if !ok1 || !ok2 || id1 != id2 {
		s.reply(r503.CodeNoMatch, 0, 0)
		return
	}
	s.reply(r503.CodeOK, 0, matchConfidence)
}

func (s *Sensor) searchFinger(args []byte) {
	if !validBuffer(args[0]) {
		s.reply(r503.CodeReceiveError)
		return
	}
	id, ok := templateFinger(s.chars[args[0]])
	start, count := int(u16(args[1:])), int(u16(args[3:]))
	end := start + count
	if end > int(s.LibrarySize) {
		end = int(s.LibrarySize)
	}
	for loc := start; ok && loc < end; loc++ {
		if stored, found := templateFinger(s.library[uint16(loc)]); found && stored == id {
			s.reply(r503.CodeOK, byte(loc>>8), byte(loc), 0, matchConfidence)
			return
		}
	}
	s.reply(r503.CodeNotFound, 0, 0, 0, 0)
}

func (s *Sensor) createTemplate([]byte) {
	id1, ok1 := templateFinger(s.chars[1])
	id2, ok2 := templateFinger(s.chars[2])
	if !ok1 || !ok2 || id1 != id2 {
		s.reply(r503.CodeMergeFail)
		return
	}
	s.chars[2] = append([]byte(nil), s.chars[1]...)
	s.reply(r503.CodeOK)
}

func (s *Sensor) storeTemplate(args []byte) {
	loc := u16(args[1:])
	if !validBuffer(args[0]) || loc >= s.LibrarySize {
		s.reply(r503.CodeBadLocation)
		return
	}
	t := append([]byte(nil), s.chars[args[0]]...)
	if len(t) == 0 {
		t = renderTemplate(0, 0)
	}
	s.library[loc] = t
	s.reply(r503.CodeOK)
}

func (s *Sensor) loadTemplate(args []byte) {
	loc := u16(args[1:])
	if !validBuffer(args[0]) || loc >= s.LibrarySize {
		s.reply(r503.CodeBadLocation)
		return
	}
	t, ok := s.library[loc]
	if !ok {
		s.reply(r503.CodeReadTemplate)
		return
	}
	s.chars[args[0]] = append([]byte(nil), t...)
	s.reply(r503.CodeOK)
}

func (s *Sensor) downloadTemplate(args []byte) {
	if !validBuffer(args[0]) || len(s.chars[args[0]]) == 0 {
		s.reply(r503.CodeTransferError)
		return
	}
	s.reply(r503.CodeOK)
	s.sendData(s.chars[args[0]])
}

func (s *Sensor) uploadTemplate(args []byte) {
	if !validBuffer(args[0]) {
		s.reply(r503.CodeTransferError)
		return
	}
	s.reply(r503.CodeOK)
	s.upload = &upload{buffer: args[0]}
}

func (s *Sensor) downloadImage([]byte) {
	if len(s.image) == 0 {
		s.reply(r503.CodeUploadImageFail)
		return
	}
	s.reply(r503.CodeOK)
	s.sendData(s.image)
}

func (s *Sensor) uploadImage([]byte) {
	s.reply(r503.CodeOK)
	s.upload = &upload{}
}

func (s *Sensor) deleteTemplates(args []byte) {
	loc, count := int(u16(args)), int(u16(args[2:]))
	if count == 0 || loc+count > int(s.LibrarySize) {
		s.reply(r503.CodeDeleteFail)
		return
	}
	for i := loc; i < loc+count; i++ {
		delete(s.library, uint16(i))
	}
	s.reply(r503.CodeOK)
}

func (s *Sensor) emptyLibrary([]byte) {
	s.library = make(map[uint16][]byte)
	s.reply(r503.CodeOK)
}

func (s *Sensor) setParameter(args []byte) {
	param, value := args[0], args[1]
	switch {
	case param == r503.ParamBaudrate && value >= 1 && value <= 12:
		// acknowledged at the old baudrate.
		s.reply(r503.CodeOK)
		s.Baudrate = 9600 * int(value)
	case param == r503.ParamSecurityLevel && value >= 1 && value <= 5:
		s.SecurityLevel = value
		s.reply(r503.CodeOK)
	case param == r503.ParamPacketSize && value <= 3:
		s.PacketSize = 32 << value
		s.reply(r503.CodeOK)
	default:
		s.reply(r503.CodeBadRegister)
	}
}

func (s *Sensor) readSysParams([]byte) {
	var sizeCode uint16
	for 32<<sizeCode < s.PacketSize && sizeCode < 3 {
		sizeCode++
	}
	data := []byte{
		0, 0, // status register
		0, 0x09, // system id
		byte(s.LibrarySize >> 8), byte(s.LibrarySize),
		0, s.SecurityLevel,
		byte(s.Address >> 24), byte(s.Address >> 16), byte(s.Address >> 8), byte(s.Address),
		0, byte(sizeCode),
		0, byte(s.Baudrate / 9600),
	}
	s.reply(r503.CodeOK, data...)
}

func (s *Sensor) readDeviceInfo([]byte) {
	data := make([]byte, 46)
	copy(data[0:16], "R503-SIM")
	copy(data[16:20], "0001")
	copy(data[20:28], "00000001")
	data[28], data[29] = 1, 0
	copy(data[30:38], "SIM")
	fields := []uint16{s.ImageWidth, s.ImageHeight, s.TemplateSize, s.LibrarySize}
	for n, v := range fields {
		data[38+n*2], data[39+n*2] = byte(v>>8), byte(v)
	}
	s.reply(r503.CodeOK, data...)
}

func (s *Sensor) verifyPassword(args []byte) {
	if u32(args) != s.Password {
		s.reply(r503.CodeWrongPassword)
		return
	}
	s.verified = true
	s.reply(r503.CodeOK)
}

func (s *Sensor) getRandomNumber([]byte) {
	n := s.rng.Uint32()
	s.reply(r503.CodeOK, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
}

func (s *Sensor) setAddress(args []byte) {
	s.reply(r503.CodeOK)
	s.Address = u32(args)
}

func (s *Sensor) templateCount([]byte) {
	n := len(s.library)
	s.reply(r503.CodeOK, byte(n>>8), byte(n))
}

func (s *Sensor) readIndexTable(args []byte) {
	var bitmap [32]byte
	base := int(args[0]) * r503.IndexTablePageSize
	for loc := range s.library {
		if i := int(loc) - base; i >= 0 && i < r503.IndexTablePageSize {
			bitmap[i/8] |= 1 << uint(i%8)
		}
	}
	s.reply(r503.CodeOK, bitmap[:]...)
}

func (s *Sensor) auraLED(args []byte) {
	s.led = LED{
		Mode:   r503.LEDMode(args[0]),
		Speed:  args[1],
		Color:  r503.LEDColor(args[2]),
		Repeat: args[3],
	}
	s.reply(r503.CodeOK)
}

func (s *Sensor) checkSensor([]byte) {
	if s.Abnormal {
		s.reply(r503.CodeSensorAbnormal)
		return
	}
	s.reply(r503.CodeOK)
}

func (s *Sensor) softReset([]byte) {
	s.reply(r503.CodeOK)
	s.image, s.upload, s.verified = nil, nil, false
	for n := range s.chars {
		s.chars[n] = nil
	}
	time.AfterFunc(s.ResetDelay, func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		s.push(resetReady)
	})
}
