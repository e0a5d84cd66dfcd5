package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/r503.go/pkg/framework"
)

// ErrClosed indicates the client stopped receiving responses.
var ErrClosed = errors.New("client closed")

// Client sends requests over a PacketReadWriter and matches responses by
// Seq. Run must be running for Do to receive responses.
type Client struct {
	ReadWriter PacketReadWriter

	lock     sync.Mutex
	seq      uint32
	pending  map[uint32]chan *Response
	closed   bool
	sendLock sync.Mutex
}

// NewClient creates a Client.
func NewClient(rw PacketReadWriter) *Client {
	return &Client{ReadWriter: rw, pending: make(map[uint32]chan *Response)}
}

// Do implements Doer. req.Seq is assigned by the client. A response with
// Error set is returned together with a *RemoteError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	ch := make(chan *Response, 1)
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return nil, ErrClosed
	}
	// 0 is left for responses to undecodable requests.
	if c.seq++; c.seq == 0 {
		c.seq++
	}
	req.Seq = c.seq
	c.pending[req.Seq] = ch
	c.lock.Unlock()
	defer c.forget(req.Seq)

	pkt, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	c.sendLock.Lock()
	err = c.ReadWriter.WritePacket(pkt)
	c.sendLock.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if resp.Error != "" {
			return resp, &RemoteError{Op: req.Op, Msg: resp.Error}
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run implements Runnable.
func (c *Client) Run(ctx context.Context) error {
	defer c.closePending()
	return fx.RunWithContextCloser(ctx, closerOf(c.ReadWriter), func() error {
		for {
			pkt, err := c.ReadWriter.ReadPacket()
			if err != nil {
				return err
			}
			resp, err := DecodeResponse(pkt)
			if err != nil {
				glog.Warningf("bad response: %v", err)
				continue
			}
			c.deliver(resp)
		}
	})
}

func (c *Client) deliver(resp *Response) {
	c.lock.Lock()
	ch := c.pending[resp.Seq]
	delete(c.pending, resp.Seq)
	c.lock.Unlock()
	if ch == nil {
		glog.V(1).Infof("dropped response seq=%d", resp.Seq)
		return
	}
	ch <- resp
}

func (c *Client) forget(seq uint32) {
	c.lock.Lock()
	delete(c.pending, seq)
	c.lock.Unlock()
}

func (c *Client) closePending() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.closed = true
	for seq, ch := range c.pending {
		close(ch)
		delete(c.pending, seq)
	}
}
