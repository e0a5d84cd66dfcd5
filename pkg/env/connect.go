package env

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"

	"github.com/golang/glog"

	"github.com/robotalks/r503.go/pkg/bridge"
	"github.com/robotalks/r503.go/pkg/bridge/mqtt"
	"github.com/robotalks/r503.go/pkg/bridge/stream"
	"github.com/robotalks/r503.go/pkg/bridge/websocket"
	"github.com/robotalks/r503.go/pkg/r503"
	"github.com/robotalks/r503.go/pkg/serial"
	"github.com/robotalks/r503.go/pkg/sim"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenTransport opens the serial port, or creates a simulated sensor
// matching the config.
func (c *Config) OpenTransport() (r503.Transport, io.Closer, error) {
	if c.Sim {
		s := sim.New()
		s.Address = c.Address
		s.Password = c.Password
		s.Baudrate = c.Baudrate
		glog.Info("using simulated sensor")
		return s, nopCloser{}, nil
	}
	if c.Port == "" {
		return nil, nil, fmt.Errorf("serial port must be specified")
	}
	port, err := serial.Open(c.Port, c.Baudrate)
	if err != nil {
		return nil, nil, err
	}
	return port, port, nil
}

// NewSensor opens the transport and creates an uninitialized Sensor on it.
func (c *Config) NewSensor() (*r503.Sensor, io.Closer, error) {
	t, closer, err := c.OpenTransport()
	if err != nil {
		return nil, nil, err
	}
	sensor := r503.NewSensor(t)
	sensor.Address = c.Address
	sensor.Password = c.Password
	return sensor, closer, nil
}

// OpenSensor creates a Sensor and initializes it.
func (c *Config) OpenSensor() (*r503.Sensor, io.Closer, error) {
	sensor, closer, err := c.NewSensor()
	if err != nil {
		return nil, nil, err
	}
	code, err := sensor.Init(c.Baudrate)
	if err == nil && !code.OK() {
		err = code.Err("init")
	}
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return sensor, closer, nil
}

// MustOpenSensor opens a Sensor and fails on error.
func (c *Config) MustOpenSensor() (*r503.Sensor, io.Closer) {
	sensor, closer, err := c.OpenSensor()
	if err != nil {
		log.Fatalln(err)
	}
	return sensor, closer
}

// Conn is a connection to a sensor, local or through a bridge.
type Conn struct {
	bridge.Doer
	// Name describes where the sensor is.
	Name string

	cancel func()
	closer io.Closer
}

// Close releases the connection.
func (c *Conn) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Connect reaches the sensor through Remote if specified, otherwise opens
// a local sensor.
func (c *Config) Connect() (*Conn, error) {
	if c.Remote == "" {
		sensor, closer, err := c.OpenSensor()
		if err != nil {
			return nil, err
		}
		name := c.Port
		if c.Sim {
			name = "sim"
		}
		return &Conn{Doer: bridge.NewServer(sensor), Name: name, closer: closer}, nil
	}

	u, err := url.Parse(c.Remote)
	if err != nil {
		return nil, fmt.Errorf("invalid remote URL: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	conn := &Conn{Name: c.Remote, cancel: cancel}
	var rw bridge.PacketReadWriter
	switch u.Scheme {
	case "tcp":
		rw, err = stream.Dial(u.Host)
	case "ws", "wss":
		rw, err = websocket.Dial(c.Remote)
	case "mqtt", "tcp+mqtt", "ssl":
		rw, err = c.connectMQTT(ctx, conn)
	default:
		err = fmt.Errorf("unknown remote URL scheme: %q", u.Scheme)
	}
	if err != nil {
		cancel()
		return nil, err
	}
	client := bridge.NewClient(rw)
	go client.Run(ctx)
	conn.Doer = client
	return conn, nil
}

func (c *Config) connectMQTT(ctx context.Context, conn *Conn) (bridge.PacketReadWriter, error) {
	if c.ID == "" {
		return nil, fmt.Errorf("sensor ID must be specified")
	}
	q, err := mqtt.NewQueueFromURL(c.Remote)
	if err != nil {
		return nil, err
	}
	if err = q.Connect(); err != nil {
		return nil, fmt.Errorf("connect MQTT broker: %w", err)
	}
	rw := mqtt.NewPacketReadWriter(q).ForClient(c.ID)
	if err = rw.Subscribe(); err != nil {
		q.Close()
		return nil, fmt.Errorf("subscribe responses: %w", err)
	}
	go rw.Run(ctx)
	conn.Name = c.ID
	conn.closer = q
	return rw, nil
}
