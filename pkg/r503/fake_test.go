package r503

import (
	"sync"
	"time"
)

// fakeTransport replies to command packets using respond.
type fakeTransport struct {
	respond func(pkt *Packet) [][]byte

	lock     sync.Mutex
	rx       []byte
	tx       []byte
	commands []*Packet
	baud     int
	parser   Parser
}

func newFakeTransport(respond func(pkt *Packet) [][]byte) *fakeTransport {
	return &fakeTransport{respond: respond}
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.tx = append(f.tx, p...)
	for _, pkt := range f.parser.ParseBytes(p) {
		if pkt.Type != PacketCommand {
			continue
		}
		f.commands = append(f.commands, pkt)
		if f.respond != nil {
			for _, b := range f.respond(pkt) {
				f.rx = append(f.rx, b...)
			}
		}
	}
	return len(p), nil
}

func (f *fakeTransport) ReadByte(timeout time.Duration) (byte, error) {
	f.lock.Lock()
	if len(f.rx) > 0 {
		b := f.rx[0]
		f.rx = f.rx[1:]
		f.lock.Unlock()
		return b, nil
	}
	f.lock.Unlock()
	if timeout > 0 {
		time.Sleep(timeout)
	}
	return 0, ErrReadTimeout
}

func (f *fakeTransport) Available() (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.rx), nil
}

func (f *fakeTransport) SetBaudrate(baud int) error {
	f.baud = baud
	return nil
}

func (f *fakeTransport) inject(bs ...[]byte) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for _, b := range bs {
		f.rx = append(f.rx, b...)
	}
}

func (f *fakeTransport) sent() []byte {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]byte(nil), f.tx...)
}

func (f *fakeTransport) sentPackets() []*Packet {
	var p Parser
	return p.ParseBytes(f.sent())
}

func ack(code Code, data ...byte) []byte {
	return NewPacket(DefaultAddress, PacketAck, append([]byte{byte(code)}, data...)).Bytes()
}

func dataPacket(typ PacketType, data []byte) []byte {
	return NewPacket(DefaultAddress, typ, data).Bytes()
}

// replyOK acknowledges every command with CodeOK.
func replyOK(*Packet) [][]byte {
	return [][]byte{ack(CodeOK)}
}

// noisyTransport never stops delivering the same byte.
type noisyTransport struct {
	fakeTransport
	noise byte
}

func (n *noisyTransport) ReadByte(time.Duration) (byte, error) {
	return n.noise, nil
}

func seq(n int, start byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}
