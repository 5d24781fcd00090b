package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttQuiesceMS      = 250
)

// mqttPublisher is the subset of mqtt.Client the sink needs.
type mqttPublisher interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// mqttSink publishes scroll events as JSON to Topic and lifecycle events to
// Topic + "/lifecycle". Publishing never waits for the broker ack.
type mqttSink struct {
	client mqttPublisher
	topic  string
	qos    byte
	logger *slog.Logger
}

func newMQTTSink(client mqttPublisher, topic string, qos int, logger *slog.Logger) *mqttSink {
	return &mqttSink{client: client, topic: topic, qos: byte(qos), logger: logger}
}

func (s *mqttSink) Name() string { return "mqtt" }

func (s *mqttSink) PublishScroll(p ScrollPublication) error {
	return s.publish(s.topic, p)
}

func (s *mqttSink) PublishLifecycle(l LifecyclePublication) error {
	return s.publish(s.topic+"/lifecycle", l)
}

func (s *mqttSink) publish(topic string, v any) error {
	if !s.client.IsConnectionOpen() {
		return errors.New("mqtt: not connected")
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("mqtt: marshal: %w", err)
	}
	tok := s.client.Publish(topic, s.qos, false, payload)
	go func() {
		if !tok.WaitTimeout(mqttPublishTimeout) {
			s.logger.Warn("mqtt publish not acknowledged", "topic", topic)
			return
		}
		if err := tok.Error(); err != nil {
			s.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
		}
	}()
	return nil
}

// mqttSamplePayload is accepted on the samples topic. Either dx/dy or a packed
// binding param must be present.
type mqttSamplePayload struct {
	DX    *int    `json:"dx"`
	DY    *int    `json:"dy"`
	Param *uint32 `json:"param"`
}

// decodeMQTTSample converts a samples-topic message into a daemon event.
func decodeMQTTSample(payload []byte) (Event, error) {
	var p mqttSamplePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode sample: %w", err)
	}
	if p.Param != nil {
		return BindingPressed{Param: *p.Param}, nil
	}
	if p.DX == nil || p.DY == nil {
		return nil, errors.New("decode sample: need dx and dy, or param")
	}
	if !fitsInt16(*p.DX) || !fitsInt16(*p.DY) {
		return nil, fmt.Errorf("decode sample: dx/dy out of int16 range (%d, %d)", *p.DX, *p.DY)
	}
	return MotionSample{DX: int16(*p.DX), DY: int16(*p.DY), Source: "mqtt"}, nil
}

func fitsInt16(v int) bool {
	return v >= math.MinInt16 && v <= math.MaxInt16
}

// mqttClientID returns the configured client id or one derived from the
// instance id.
func mqttClientID(cfg MQTTConfig, instanceID string) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	id := instanceID
	if len(id) > 8 {
		id = id[:8]
	}
	return "omniscroll-" + id
}

// connectMQTT dials the broker and, when SamplesTopic is set, subscribes it as
// a sample source feeding out. The returned client must be disconnected by the
// caller.
func connectMQTT(ctx context.Context, cfg MQTTConfig, instanceID string, out chan<- Event, logger *slog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(mqttClientID(cfg, instanceID)).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		})

	if cfg.SamplesTopic != "" {
		// Resubscribe after every (re)connect; the broker forgets
		// non-persistent sessions.
		opts.SetOnConnectHandler(func(c mqtt.Client) {
			tok := c.Subscribe(cfg.SamplesTopic, byte(cfg.QoS), func(_ mqtt.Client, msg mqtt.Message) {
				ev, err := decodeMQTTSample(msg.Payload())
				if err != nil {
					logger.Warn("invalid mqtt sample", "topic", msg.Topic(), "error", err)
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
				}
			})
			if tok.WaitTimeout(mqttConnectTimeout) && tok.Error() != nil {
				logger.Error("mqtt subscribe failed", "topic", cfg.SamplesTopic, "error", tok.Error())
			}
		})
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	logger.Info("connected to MQTT broker", "broker", cfg.Broker, "topic", cfg.Topic, "samples_topic", cfg.SamplesTopic)
	return client, nil
}

func disconnectMQTT(client mqtt.Client) {
	if client != nil {
		client.Disconnect(mqttQuiesceMS)
	}
}
