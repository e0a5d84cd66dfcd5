package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Meta describes a device on the broker.
type Meta struct {
	ID          string `json:"id"`
	Port        string `json:"port,omitempty"`
	Description string `json:"description,omitempty"`
	Library     int    `json:"library,omitempty"`
	Template    int    `json:"template,omitempty"`
}

// Announcer keeps the retained meta of a device on the broker: published
// on each connect, cleared by the last will or when Run returns.
type Announcer struct {
	Queue *Queue
	Meta  Meta

	metaJSON []byte
}

// NewAnnouncer creates a Queue from brokerURL with the will set, and an
// Announcer on it.
func NewAnnouncer(brokerURL string, meta Meta) (*Announcer, error) {
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+meta.ID+MetaTopic, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("r503:" + meta.ID)
	}
	a := &Announcer{
		Queue:    NewQueue(opts, topicPrefix),
		Meta:     meta,
		metaJSON: metaJSON,
	}
	a.Queue.OnConnect = func(*Queue) { a.publish(a.metaJSON) }
	return a, nil
}

// Run implements Runnable. The Queue is connected if it's not yet.
func (a *Announcer) Run(ctx context.Context) error {
	if !a.Queue.Client.IsConnected() {
		if err := a.Queue.Connect(); err != nil {
			return fmt.Errorf("connect MQTT broker: %w", err)
		}
	}
	<-ctx.Done()
	a.publish(nil).Wait()
	a.Queue.Close()
	return nil
}

func (a *Announcer) publish(payload []byte) paho.Token {
	return a.Queue.PubWith(a.Meta.ID+MetaTopic, payload, 1, true)
}

// ParseMeta decodes a retained meta message, nil payload means offline.
func ParseMeta(payload []byte) (*Meta, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var meta Meta
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
