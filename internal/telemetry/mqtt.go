// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"bytes"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes every telemetry line as one message on a topic.
type MQTTSink struct {
	client mqttPublisher
	topic  string
}

func NewMQTTSink(client mqtt.Client, topic string) *MQTTSink {
	return &MQTTSink{client: client, topic: topic}
}

// Write publishes p without its trailing newline and waits for the broker
// to acknowledge it.
func (s *MQTTSink) Write(p []byte) (int, error) {
	payload := bytes.TrimRight(p, "\r\n")
	token := s.client.Publish(s.topic, 0, false, append([]byte(nil), payload...))
	if !token.WaitTimeout(publishTimeout) {
		return 0, fmt.Errorf("mqtt publish to %s: timed out", s.topic)
	}
	if err := token.Error(); err != nil {
		return 0, fmt.Errorf("mqtt publish to %s: %w", s.topic, err)
	}
	return len(p), nil
}
