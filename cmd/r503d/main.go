package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"net"
	"net/http"

	"github.com/golang/glog"

	"github.com/robotalks/r503.go/pkg/bridge"
	"github.com/robotalks/r503.go/pkg/bridge/mqtt"
	"github.com/robotalks/r503.go/pkg/bridge/stream"
	"github.com/robotalks/r503.go/pkg/bridge/websocket"
	"github.com/robotalks/r503.go/pkg/env"
	fx "github.com/robotalks/r503.go/pkg/framework"
	"github.com/robotalks/r503.go/pkg/r503"
)

var (
	listenAddr  = ":5030"
	wsAddr      string
	description string
)

func init() {
	env.SetupFlags()
	flag.StringVar(&listenAddr, "listen", listenAddr, "TCP address to serve the bridge, empty to disable.")
	flag.StringVar(&wsAddr, "ws", wsAddr, "HTTP address to serve the bridge over websocket.")
	flag.StringVar(&description, "desc", description, "Description of the sensor announced on MQTT.")
}

func serveTCP(ctx context.Context, server *bridge.Server) error {
	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	glog.Infof("serving on tcp %s", l.Addr())
	return fx.RunWithContextCloser(ctx, l, func() error {
		for {
			conn, err := l.Accept()
			if err != nil {
				return err
			}
			go func() {
				glog.Infof("%s connected", conn.RemoteAddr())
				err := server.Serve(ctx, stream.New(conn))
				glog.Infof("%s disconnected: %v", conn.RemoteAddr(), err)
			}()
		}
	})
}

func serveWebsocket(ctx context.Context, server *bridge.Server) error {
	httpServer := &http.Server{
		Addr: wsAddr,
		Handler: websocket.Handler(func(rw *websocket.ReadWriter) {
			server.Serve(ctx, rw)
		}),
	}
	glog.Infof("serving on websocket %s", wsAddr)
	return fx.RunWithContextCloser(ctx, httpServer, httpServer.ListenAndServe)
}

func serveMQTT(ctx context.Context, conf *env.Config, sensor *r503.Sensor, server *bridge.Server) error {
	announcer, err := mqtt.NewAnnouncer(conf.MQTTBrokerURL, mqtt.Meta{
		ID:          conf.ID,
		Port:        conf.Port,
		Description: description,
		Library:     int(sensor.LibrarySize()),
		Template:    int(sensor.TemplateSize()),
	})
	if err != nil {
		return err
	}
	if err = announcer.Queue.Connect(); err != nil {
		return err
	}
	rw := mqtt.NewPacketReadWriter(announcer.Queue).ForServer(conf.ID)
	if err = rw.Subscribe(); err != nil {
		announcer.Queue.Close()
		return err
	}
	glog.Infof("serving on MQTT %s as %s", conf.MQTTBrokerURL, conf.ID)
	return fx.NewRunnerWith(ctx).Go(
		fx.NamedRun("announcer", announcer),
		fx.NamedRun("mqtt", rw),
		fx.NamedFunc("mqtt-server", func(ctx context.Context) error {
			return server.Serve(ctx, rw)
		}),
	).Wait()
}

func main() {
	flag.Parse()

	conf := env.NewConfig()
	sensor, closer := conf.MustOpenSensor()
	defer closer.Close()
	server := bridge.NewServer(sensor)

	runner := fx.NewRunner().HandleSignals()
	if listenAddr != "" {
		runner.Go(fx.NamedFunc("tcp", func(ctx context.Context) error {
			return serveTCP(ctx, server)
		}))
	}
	if wsAddr != "" {
		runner.Go(fx.NamedFunc("websocket", func(ctx context.Context) error {
			return serveWebsocket(ctx, server)
		}))
	}
	if conf.MQTTBrokerURL != "" {
		if conf.ID == "" {
			glog.Exit("sensor ID must be specified for MQTT")
		}
		runner.Go(fx.NamedFunc("mqtt", func(ctx context.Context) error {
			return serveMQTT(ctx, conf, sensor, server)
		}))
	}
	if len(runner.Runners) == 0 {
		glog.Exit("nothing to serve")
	}
	if err := runner.Wait(); err != nil {
		glog.Error(err)
	}
}
