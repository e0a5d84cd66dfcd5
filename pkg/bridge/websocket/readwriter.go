// Package websocket carries bridge packets in websocket binary messages.
package websocket

import (
	"net/http"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// ReadWriter implements bridge.PacketReadWriter.
type ReadWriter websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	return (*ReadWriter)(conn)
}

// Dial connects to a websocket endpoint, e.g. ws://host:port/r503.
func Dial(url string) (*ReadWriter, error) {
	conn, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	glog.Infof("connected %s", url)
	return New(conn), nil
}

// Handler serves each websocket connection with serve.
func Handler(serve func(*ReadWriter)) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		glog.Infof("websocket %s connected", conn.Request().RemoteAddr)
		serve(New(conn))
		glog.Infof("websocket %s disconnected", conn.Request().RemoteAddr)
	})
}

// ReadPacket implements bridge.PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements bridge.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return (*websocket.Conn)(p).Close()
}
