package app

import (
	"context"
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/env_station/internal/config"
	"github.com/relabs-tech/env_station/internal/gps"
)

// RunGPSMonitor reads the receiver on its own, logs every change of the
// parsed position and, when a broker is configured, publishes it as JSON
// on TOPIC_GPS.
func RunGPSMonitor(ctx context.Context, cfg *config.Config) error {
	port, err := openGPS(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	var client mqtt.Client
	if cfg.MQTTBroker != "" {
		client, err = connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDGPS)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
	}

	m := &gpsMonitor{parser: gps.NewParser(port), last: gps.UnknownPosition(), pos: gps.UnknownPosition()}
	if client != nil {
		m.publish = func(payload []byte) error {
			token := client.Publish(cfg.TopicGPS, 0, true, payload)
			token.Wait()
			return token.Error()
		}
	}

	for ctx.Err() == nil {
		if err := m.step(); err != nil {
			return err
		}
	}
	log.Printf("gps: stopping, %+v", m.parser.Stats())
	return nil
}

type gpsMonitor struct {
	parser  *gps.Parser
	pos     gps.Position
	last    gps.Position
	publish func([]byte) error
}

// step drains the receiver once and reports a changed position.
func (m *gpsMonitor) step() error {
	if err := m.parser.Poll(&m.pos); err != nil {
		return err
	}
	if m.pos.Equal(m.last) {
		return nil
	}
	m.last = m.pos

	payload, err := json.Marshal(m.pos)
	if err != nil {
		log.Printf("gps: JSON marshal error: %v", err)
		return nil
	}
	log.Printf("gps: %s", payload)
	log.Debugf("gps: parser stats %+v", m.parser.Stats())

	if m.publish != nil {
		if err := m.publish(payload); err != nil {
			log.Printf("gps: publish error: %v", err)
		}
	}
	return nil
}
