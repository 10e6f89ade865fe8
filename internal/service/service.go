// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wneessen/aprs-relay/internal/config"
	"github.com/wneessen/aprs-relay/internal/feed"
	"github.com/wneessen/aprs-relay/internal/gate"
	"github.com/wneessen/aprs-relay/internal/logger"
	"github.com/wneessen/aprs-relay/internal/metrics"
	"github.com/wneessen/aprs-relay/internal/pipeline"
	"github.com/wneessen/aprs-relay/internal/roster"
	"github.com/wneessen/aprs-relay/internal/sink"
)

const statsJobName = "stats_job"

type Service struct {
	config    *config.Config
	logger    *logger.Logger
	metrics   *metrics.Collector
	processor *pipeline.Processor
	scheduler gocron.Scheduler
	signals   signalSource
	sink      sink.Forwarder
	closer    io.Closer
}

func New(conf *config.Config, log *logger.Logger) (*Service, error) {
	subscriptions, err := roster.Load(conf.Roster.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	log.Debug("roster loaded", slog.String("file", conf.Roster.File), slog.Int("subscriptions",
		subscriptions.Len()))

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	service := &Service{
		config:    conf,
		logger:    log,
		scheduler: scheduler,
		signals:   stdLibSignalSource{},
	}

	if conf.Metrics.Listen != "" {
		service.metrics, err = metrics.NewCollector(prometheus.NewRegistry())
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics collector: %w", err)
		}
	}

	if err = service.selectSink(); err != nil {
		return nil, err
	}

	keyFunc := gate.CallsignKey
	if conf.Gate.CacheKey == config.CacheKeyResource {
		keyFunc = gate.ResourceKey
	}
	movement := gate.New(conf.Gate.MinDistance, gate.WithKeyFunc(keyFunc))
	service.processor = pipeline.New(subscriptions, movement, service.sink, log,
		pipeline.WithMetrics(service.metrics))

	return service, nil
}

// Run connects to the feed and relays frames until the context is canceled or the feed
// closes. With reconnect attempts configured, a closed feed is dialed again; the last
// reported positions survive the reconnect.
func (s *Service) Run(ctx context.Context) error {
	defer s.shutdown()

	if s.config.Intervals.Stats > 0 {
		if err := s.createScheduledJob(ctx, s.config.Intervals.Stats, s.logStats, statsJobName); err != nil {
			return err
		}
	}
	s.scheduler.Start()

	if s.metrics != nil {
		go func() {
			if err := s.metrics.Serve(ctx, s.config.Metrics.Listen); err != nil {
				s.logger.Error("failed to serve metrics", logger.Err(err))
			}
		}()
	}

	feedConf := s.feedConfig()
	conn, err := feed.Dial(ctx, feedConf, s.logger)
	if err != nil {
		return err
	}

	for {
		err = s.relay(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.logger.Warn("feed stream failed", logger.Err(err))
		}
		if s.config.Feed.ReconnectAttempts == 0 {
			s.logger.Info("feed stream ended")
			return nil
		}

		s.logger.Info("feed stream ended, reconnecting", slog.String("server", conn.Server()))
		conn, err = feed.Redial(ctx, feedConf, s.logger, s.config.Feed.ReconnectAttempts)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to reconnect to APRS-IS: %w", err)
		}
	}
}

// relay processes the frames of a single connection and closes it when done.
func (s *Service) relay(ctx context.Context, conn *feed.Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	context.AfterFunc(connCtx, func() {
		if err := conn.Close(); err != nil {
			s.logger.Debug("failed to close feed connection", logger.Err(err))
		}
	})

	go conn.Keepalive(connCtx, s.config.Feed.Keepalive)

	err := s.processor.Run(connCtx, conn.Reader())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) feedConfig() feed.Config {
	return feed.Config{
		Server:      s.config.Feed.Server,
		Callsign:    s.config.Feed.Callsign,
		Passcode:    s.config.Feed.Passcode,
		Filter:      s.config.Feed.Filter,
		DialTimeout: s.config.Feed.DialTimeout,
		Keepalive:   s.config.Feed.Keepalive,
	}
}

func (s *Service) shutdown() {
	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.Error("failed to shut down scheduler", logger.Err(err))
	}
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			s.logger.Error("failed to close sink", logger.Err(err))
		}
	}
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// logStats logs the processing counters at debug level.
func (s *Service) logStats(ctx context.Context) {
	s.logStatsAt(ctx, slog.LevelDebug)
}

func (s *Service) logStatsAt(ctx context.Context, level slog.Level) {
	stats := s.processor.Stats()
	s.logger.Log(ctx, level, "relay statistics",
		slog.Uint64("frames", stats.Frames),
		slog.Uint64("dropped", stats.Dropped),
		slog.Uint64("forwarded", stats.Forwarded),
		slog.Uint64("delivery_failures", stats.DeliveryFailures),
		slog.Uint64("read_errors", stats.ReadErrors),
	)
}
