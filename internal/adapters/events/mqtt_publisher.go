package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"logiflow-service/internal/domain"
)

const (
	DefaultTopicPrefix = "logiflow/deliveries"
	publishTimeout     = 2 * time.Second
)

// mqttClient is the subset of mqtt.Client the publisher needs.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher sends delivery events to "<prefix>/<event type>".
type MQTTPublisher struct {
	client mqttClient
	prefix string
	qos    byte
}

// ConnectMQTT dials the broker with auto-reconnect enabled.
func ConnectMQTT(broker, clientID string) (*MQTTPublisher, error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		slog.Info("mqtt connection established", "broker", broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		slog.Warn("mqtt connection lost, will auto-reconnect", "broker", broker, "err", err)
	}

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return newMQTTPublisher(client, DefaultTopicPrefix), nil
}

func newMQTTPublisher(client mqttClient, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: strings.TrimRight(prefix, "/"), qos: 1}
}

func (p *MQTTPublisher) Topic(t domain.EventType) string {
	return p.prefix + "/" + strings.ReplaceAll(string(t), ".", "/")
}

func (p *MQTTPublisher) Publish(ctx context.Context, ev domain.DeliveryEvent) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}

	topic := p.Topic(ev.Type)

	timeout := publishTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(dl))
	}

	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	slog.Debug("event published", "backend", "mqtt", "topic", topic, "size", len(payload))
	return nil
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
