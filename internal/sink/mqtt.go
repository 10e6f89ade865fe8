// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttDisconnectQuiesce = 250 // milliseconds
	defaultMQTTTimeout    = time.Second * 5
)

// ErrPublishTimeout is returned when the broker does not acknowledge a publish in time.
var ErrPublishTimeout = errors.New("timeout waiting for MQTT publish")

// MQTTConfig holds the connection settings of the MQTT sink.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	Timeout  time.Duration
}

// publishFunc sends payload to topic and waits for the broker acknowledgement.
type publishFunc func(ctx context.Context, topic string, payload []byte) error

// MQTT publishes updates as JSON to "<topic>/<resourceId>".
type MQTT struct {
	client  mqtt.Client
	publish publishFunc
	topic   string
}

// NewMQTT connects to the configured broker and returns a MQTT sink.
func NewMQTT(conf MQTTConfig) (*MQTT, error) {
	if conf.Timeout <= 0 {
		conf.Timeout = defaultMQTTTimeout
	}
	opts := mqtt.NewClientOptions().
		AddBroker(conf.Broker).
		SetClientID(conf.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(conf.Timeout)
	if conf.Username != "" {
		opts.SetUsername(conf.Username)
		opts.SetPassword(conf.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(conf.Timeout) {
		return nil, fmt.Errorf("timeout connecting to MQTT broker %s", conf.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", conf.Broker, err)
	}

	sink := newMQTT(conf.Topic, func(ctx context.Context, topic string, payload []byte) error {
		token := client.Publish(topic, conf.QoS, false, payload)
		timeout := conf.Timeout
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
			timeout = time.Until(deadline)
		}
		if !token.WaitTimeout(timeout) {
			return ErrPublishTimeout
		}
		return token.Error()
	})
	sink.client = client
	return sink, nil
}

func newMQTT(topic string, publish publishFunc) *MQTT {
	return &MQTT{
		publish: publish,
		topic:   strings.TrimRight(topic, "/"),
	}
}

// Name returns the name of the sink.
func (m *MQTT) Name() string {
	return "mqtt"
}

// Forward implements the Forwarder interface for MQTT.
func (m *MQTT) Forward(ctx context.Context, update Update) error {
	payload, err := update.MarshalPayload()
	if err != nil {
		return err
	}
	topic := m.topic + "/" + update.ResourceID
	if err = m.publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("failed to publish update to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(mqttDisconnectQuiesce)
	}
	return nil
}
