package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"zwave-console/protocol"
)

const (
	DefaultMQTTBroker      = "tcp://127.0.0.1:1883"
	DefaultMQTTClientID    = "zwave-console"
	DefaultMQTTTopicPrefix = "zwave-console"

	mqttDisconnectQuiesce = 250 // ms
)

// ErrNotConnected is returned when publishing before the broker connection is up
var ErrNotConnected = errors.New("mqtt client not connected")

// mqttClient is the part of mqtt.Client the publisher uses
type mqttClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTOptions configures an MQTTPublisher
type MQTTOptions struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Retain      bool
}

// MQTTPublisher republishes event payloads to an MQTT broker under
// <prefix>/<event topic>.
type MQTTPublisher struct {
	client mqttClient
	prefix string
	qos    byte
	retain bool
}

// NewMQTTPublisher creates a publisher with a paho client. Call Connect before use.
func NewMQTTPublisher(opts MQTTOptions) *MQTTPublisher {
	if opts.Broker == "" {
		opts.Broker = DefaultMQTTBroker
	}
	if opts.ClientID == "" {
		opts.ClientID = DefaultMQTTClientID
	}

	clientOptions := mqtt.NewClientOptions()
	clientOptions.SetKeepAlive(60 * time.Second)
	clientOptions.SetCleanSession(true)
	clientOptions.AddBroker(opts.Broker)
	clientOptions.SetClientID(opts.ClientID)
	clientOptions.SetAutoReconnect(true)
	clientOptions.SetConnectRetry(true)
	clientOptions.SetConnectRetryInterval(10 * time.Second)
	clientOptions.SetOrderMatters(false)
	clientOptions.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		slog.Warn("MQTT connection lost", "broker", opts.Broker, "err", err)
	})
	clientOptions.SetOnConnectHandler(func(c mqtt.Client) {
		slog.Info("MQTT connected", "broker", opts.Broker)
	})

	return newMQTTPublisher(mqtt.NewClient(clientOptions), opts)
}

func newMQTTPublisher(client mqttClient, opts MQTTOptions) *MQTTPublisher {
	prefix := opts.TopicPrefix
	if prefix == "" {
		prefix = DefaultMQTTTopicPrefix
	}
	return &MQTTPublisher{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		qos:    opts.QoS,
		retain: opts.Retain,
	}
}

// Connect starts the broker connection and waits for it or for ctx.
// With connect-retry enabled paho keeps trying in the background after ctx ends.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	token := p.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Topic returns the MQTT topic an event topic is published to
func (p *MQTTPublisher) Topic(eventTopic string) string {
	return p.prefix + "/" + strings.TrimPrefix(eventTopic, "/")
}

// Publish sends an event's raw payload to the broker without waiting for delivery
func (p *MQTTPublisher) Publish(env protocol.Envelope) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	token := p.client.Publish(p.Topic(env.Topic), p.qos, p.retain, env.Payload)
	go p.tokenFinalize(env.Topic, token)
	return nil
}

// HandleEvent makes the publisher usable as a dispatcher handler
func (p *MQTTPublisher) HandleEvent(env protocol.Envelope, _ interface{}) {
	if err := p.Publish(env); err != nil {
		slog.Debug("Skipping MQTT relay", "topic", env.Topic, "err", err)
	}
}

// Close disconnects from the broker
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(mqttDisconnectQuiesce)
}

func (p *MQTTPublisher) tokenFinalize(topic string, t mqtt.Token) {
	t.Wait()
	if err := t.Error(); err != nil {
		slog.Warn("MQTT publish error", "topic", topic, "err", err)
	}
}
