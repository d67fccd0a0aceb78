package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mqttQoS is at-least-once; retained so new subscribers get the last state.
const mqttQoS = 1

// disconnectQuiesce is how long Disconnect waits for in-flight work, in ms.
const disconnectQuiesce = 250

// MQTTSink publishes every frame as a retained message on one topic.
type MQTTSink struct {
	client mqtt.Client
	topic  string
}

// NewMQTTSink creates a client for broker. The connection is attempted in the
// background and retried; writes fail until it is up.
func NewMQTTSink(broker, clientID, topic string) *MQTTSink {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.OnConnect = func(mqtt.Client) {
		slog.Info("mqtt mirror connected", "broker", broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("mqtt mirror connection lost", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	client.Connect()
	return &MQTTSink{client: client, topic: topic}
}

func (s *MQTTSink) Name() string { return "mqtt" }

// Connected reports whether the broker connection is up.
func (s *MQTTSink) Connected() bool {
	return s.client.IsConnectionOpen()
}

// Write publishes payload and waits for the broker ack or ctx.
func (s *MQTTSink) Write(ctx context.Context, payload []byte) error {
	if !s.client.IsConnectionOpen() {
		return errors.New("not connected")
	}
	token := s.client.Publish(s.topic, mqttQoS, true, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", s.topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", s.topic, ctx.Err())
	}
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(disconnectQuiesce)
	return nil
}
