package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/r503.go/pkg/bridge"
	"github.com/robotalks/r503.go/pkg/bridge/mqtt"
	"github.com/robotalks/r503.go/pkg/env"
	"github.com/robotalks/r503.go/pkg/r503"
)

var (
	mqttURL = "mqtt://localhost:1883/r503/"
)

func init() {
	if val := os.Getenv(env.EnvMQTTURL); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func handleMessage(topic string, payload []byte) {
	switch {
	case strings.HasSuffix(topic, mqtt.MetaTopic):
		meta, err := mqtt.ParseMeta(payload)
		if err != nil {
			log.Printf("%s: bad meta: %v", topic, err)
		} else if meta == nil {
			log.Printf("%s: offline", topic)
		} else {
			log.Printf("%s: online %+v", topic, *meta)
		}
	case strings.HasSuffix(topic, mqtt.RequestTopic):
		req, err := bridge.DecodeRequest(payload)
		if err != nil {
			log.Printf("%s: bad request: %v", topic, err)
			return
		}
		log.Printf("%s: [%d] %s buffer=%d location=%d count=%d value=%d data=%d",
			topic, req.Seq, req.Op, req.Buffer, req.Location, req.Count, req.Value, len(req.Data))
	case strings.HasSuffix(topic, mqtt.ResponseTopic):
		resp, err := bridge.DecodeResponse(payload)
		if err != nil {
			log.Printf("%s: bad response: %v", topic, err)
			return
		}
		if resp.Error != "" {
			log.Printf("%s: [%d] error: %s", topic, resp.Seq, resp.Error)
			return
		}
		log.Printf("%s: [%d] %v values=%v data=%d",
			topic, resp.Seq, r503.Code(resp.Code), resp.Values, len(resp.Data))
	default:
		log.Printf("%s: %d bytes", topic, len(payload))
	}
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err = q.Connect(); err != nil {
		log.Fatalln(err)
	}
	q.Sub("#", handleMessage)
	<-(chan struct{})(nil)
}
