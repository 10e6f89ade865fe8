// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"
)

const (
	configEnv = "APRSRELAY"

	SinkHTTP = "http"
	SinkMQTT = "mqtt"

	CacheKeyCallsign = "callsign"
	CacheKeyResource = "resource"

	maxMQTTQoS = 2
)

var (
	// ErrMissingCallsign is returned when no APRS-IS login callsign is configured.
	ErrMissingCallsign = errors.New("feed callsign is required")

	// ErrInvalidSink is returned when the sink configuration is incomplete or unknown.
	ErrInvalidSink = errors.New("invalid sink configuration")
)

// Config represents the application's configuration structure.
type Config struct {
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Feed struct {
		Server            string        `fig:"server" default:"noam.aprs2.net:14580"`
		Callsign          string        `fig:"callsign"`
		Passcode          string        `fig:"passcode" default:"-1"`
		Filter            string        `fig:"filter"`
		DialTimeout       time.Duration `fig:"dial_timeout" default:"10s"`
		Keepalive         time.Duration `fig:"keepalive" default:"0s"`
		ReconnectAttempts uint          `fig:"reconnect_attempts" default:"5"`
	} `fig:"feed"`

	Roster struct {
		File string `fig:"file"`
	} `fig:"roster"`

	Gate struct {
		// Minimum movement in meters before a new position is forwarded
		MinDistance float64 `fig:"min_distance" default:"20"`
		// Allowed values: callsign, resource
		CacheKey string `fig:"cache_key" default:"callsign"`
	} `fig:"gate"`

	Sink struct {
		// Allowed values: http, mqtt
		Type          string        `fig:"type" default:"http"`
		URL           string        `fig:"url" default:"http://127.0.0.1:8080/api/v0/resources/location"`
		Authorization string        `fig:"authorization"`
		Timeout       time.Duration `fig:"timeout" default:"10s"`
		Retries       uint          `fig:"retries" default:"3"`

		MQTT struct {
			Broker   string `fig:"broker"`
			Topic    string `fig:"topic" default:"aprs-relay/location"`
			ClientID string `fig:"client_id" default:"aprs-relay"`
			Username string `fig:"username"`
			Password string `fig:"password"`
			QoS      uint   `fig:"qos" default:"1"`
		} `fig:"mqtt"`
	} `fig:"sink"`

	Metrics struct {
		Listen string `fig:"listen"`
	} `fig:"metrics"`

	Intervals struct {
		Stats time.Duration `fig:"stats" default:"5m"`
	} `fig:"intervals"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}
	if conf.Roster.File != "" && !filepath.IsAbs(conf.Roster.File) {
		conf.Roster.File = filepath.Join(path, conf.Roster.File)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func (c *Config) Validate() error {
	c.Feed.Callsign = strings.ToUpper(strings.TrimSpace(c.Feed.Callsign))
	if c.Feed.Callsign == "" {
		return ErrMissingCallsign
	}
	if c.Feed.Server == "" {
		return errors.New("feed server is required")
	}
	if c.Roster.File == "" {
		home, _ := os.UserHomeDir()
		c.Roster.File = filepath.Join(home, ".config", "aprs-relay", "roster.json")
	}
	if c.Gate.MinDistance <= 0 {
		return fmt.Errorf("invalid minimum distance: %f", c.Gate.MinDistance)
	}
	if c.Gate.CacheKey != CacheKeyCallsign && c.Gate.CacheKey != CacheKeyResource {
		return fmt.Errorf("invalid cache key: %s", c.Gate.CacheKey)
	}

	switch c.Sink.Type {
	case SinkHTTP:
		endpoint, err := url.Parse(c.Sink.URL)
		if err != nil {
			return fmt.Errorf("%w: failed to parse sink URL: %w", ErrInvalidSink, err)
		}
		if (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
			return fmt.Errorf("%w: sink URL must be an absolute http(s) URL: %s", ErrInvalidSink, c.Sink.URL)
		}
	case SinkMQTT:
		if c.Sink.MQTT.Broker == "" {
			return fmt.Errorf("%w: mqtt broker is required", ErrInvalidSink)
		}
		if c.Sink.MQTT.Topic == "" {
			return fmt.Errorf("%w: mqtt topic is required", ErrInvalidSink)
		}
		if c.Sink.MQTT.QoS > maxMQTTQoS {
			return fmt.Errorf("%w: invalid mqtt qos: %d", ErrInvalidSink, c.Sink.MQTT.QoS)
		}
	default:
		return fmt.Errorf("%w: unknown sink type: %s", ErrInvalidSink, c.Sink.Type)
	}

	return nil
}
