// Package serial implements r503.Transport on a serial port.
package serial

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	bugst "go.bug.st/serial"

	"github.com/robotalks/r503.go/pkg/r503"
)

// ErrClosed indicates the port has been closed.
var ErrClosed = errors.New("port closed")

const (
	// pollInterval bounds a single blocking read so the read loop notices
	// Close.
	pollInterval = 100 * time.Millisecond
	rxBufferSize = 8192
)

// Device is the underlying serial device, satisfied by go.bug.st/serial.Port.
type Device interface {
	io.ReadWriteCloser
	SetMode(mode *bugst.Mode) error
}

// Port is a serial port with a background reader feeding a byte buffer,
// so pending input can be counted and reads can time out individually.
type Port struct {
	Name string

	dev  Device
	mode bugst.Mode
	rxCh chan byte
	done chan struct{}

	lock      sync.Mutex
	err       error
	closeOnce sync.Once
}

// Open opens a serial port in 8N1 mode.
func Open(name string, baud int) (*Port, error) {
	mode := bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	dev, err := bugst.Open(name, &mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err = dev.SetReadTimeout(pollInterval); err != nil {
		dev.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	glog.Infof("opened %s at %d baud", name, baud)
	return New(name, dev, mode), nil
}

// Ports lists the serial ports of the system.
func Ports() ([]string, error) {
	return bugst.GetPortsList()
}

// New wraps an opened device and starts reading from it.
func New(name string, dev Device, mode bugst.Mode) *Port {
	p := &Port{
		Name: name,
		dev:  dev,
		mode: mode,
		rxCh: make(chan byte, rxBufferSize),
		done: make(chan struct{}),
	}
	go p.readLoop()
	return p
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	return p.dev.Write(b)
}

// ReadByte implements r503.Transport.
func (p *Port) ReadByte(timeout time.Duration) (byte, error) {
	if timeout <= 0 {
		select {
		case b, ok := <-p.rxCh:
			if !ok {
				return 0, p.readErr()
			}
			return b, nil
		default:
			return 0, r503.ErrReadTimeout
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b, ok := <-p.rxCh:
		if !ok {
			return 0, p.readErr()
		}
		return b, nil
	case <-timer.C:
		return 0, r503.ErrReadTimeout
	}
}

// Available implements r503.Transport.
func (p *Port) Available() (int, error) {
	return len(p.rxCh), nil
}

// SetBaudrate implements r503.Transport.
func (p *Port) SetBaudrate(baud int) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.mode.BaudRate == baud {
		return nil
	}
	mode := p.mode
	mode.BaudRate = baud
	if err := p.dev.SetMode(&mode); err != nil {
		return err
	}
	p.mode = mode
	glog.V(1).Infof("%s baudrate changed to %d", p.Name, baud)
	return nil
}

// Baudrate returns the current baudrate.
func (p *Port) Baudrate() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.mode.BaudRate
}

// Close implements io.Closer.
func (p *Port) Close() (err error) {
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.dev.Close()
	})
	return
}

func (p *Port) readLoop() {
	defer close(p.rxCh)
	buf := make([]byte, 256)
	for {
		n, err := p.dev.Read(buf)
		for _, b := range buf[:n] {
			select {
			case p.rxCh <- b:
			case <-p.done:
				return
			}
		}
		if err != nil {
			select {
			case <-p.done:
			default:
				glog.Warningf("%s read error: %v", p.Name, err)
				p.lock.Lock()
				p.err = err
				p.lock.Unlock()
			}
			return
		}
		select {
		case <-p.done:
			return
		default:
		}
	}
}

func (p *Port) readErr() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.err != nil {
		return p.err
	}
	return ErrClosed
}
