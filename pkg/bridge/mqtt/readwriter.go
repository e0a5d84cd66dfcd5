package mqtt

import (
	"context"
	"io"
	"sync"
)

// Topic suffixes under a device id.
const (
	RequestTopic  = "/req"
	ResponseTopic = "/resp"
	MetaTopic     = "/meta"
)

// ReadWriter implements bridge.PacketReadWriter.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	packetCh  chan []byte
	done      chan struct{}
	closeOnce sync.Once
	sub       *Subscription
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		packetCh: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForServer receives requests and sends responses of device id.
func (p *ReadWriter) ForServer(id string) *ReadWriter {
	return p.WithTopics(id+RequestTopic, id+ResponseTopic)
}

// ForClient sends requests and receives responses of device id.
func (p *ReadWriter) ForClient(id string) *ReadWriter {
	return p.WithTopics(id+ResponseTopic, id+RequestTopic)
}

// ReadPacket implements bridge.PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements bridge.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Subscribe starts receiving packets and waits for the broker to confirm.
func (p *ReadWriter) Subscribe() error {
	if p.sub != nil {
		return nil
	}
	p.sub = p.Queue.Sub(p.SubTopic, p.handleMsg)
	if token := p.sub.Token; token != nil {
		token.Wait()
		return token.Error()
	}
	return nil
}

// Run implements Runnable. It receives packets until ctx is done.
func (p *ReadWriter) Run(ctx context.Context) error {
	if err := p.Subscribe(); err != nil {
		return err
	}
	defer p.sub.Close()
	defer p.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return nil
	}
}

// Close implements io.Closer, pending ReadPacket returns io.EOF.
func (p *ReadWriter) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.done:
	}
}
