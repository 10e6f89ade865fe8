// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"fmt"
	"strings"

	"github.com/wneessen/aprs-relay/internal/config"
	"github.com/wneessen/aprs-relay/internal/http"
	"github.com/wneessen/aprs-relay/internal/sink"
)

func (s *Service) selectSink() error {
	var forwarder sink.Forwarder

	switch strings.ToLower(s.config.Sink.Type) {
	case config.SinkHTTP:
		client := http.NewWithTimeout(s.logger, s.config.Sink.Timeout)
		forwarder = sink.NewHTTP(client, s.config.Sink.URL, s.config.Sink.Authorization)
	case config.SinkMQTT:
		mqttConf := s.config.Sink.MQTT
		mqtt, err := sink.NewMQTT(sink.MQTTConfig{
			Broker:   mqttConf.Broker,
			Topic:    mqttConf.Topic,
			ClientID: mqttConf.ClientID,
			Username: mqttConf.Username,
			Password: mqttConf.Password,
			QoS:      byte(mqttConf.QoS),
			Timeout:  s.config.Sink.Timeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create MQTT sink: %w", err)
		}
		forwarder = mqtt
		s.closer = mqtt
	default:
		return fmt.Errorf("unsupported sink type: %s", s.config.Sink.Type)
	}

	if s.config.Sink.Retries > 0 {
		forwarder = sink.NewRetrying(forwarder, s.logger, s.config.Sink.Retries)
	}
	s.sink = forwarder
	return nil
}
