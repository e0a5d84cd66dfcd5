// Package bridge exposes a sensor to remote hosts over packet transports.
package bridge

import "context"

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// Doer runs requests, locally (Server) or remotely (Client).
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}
