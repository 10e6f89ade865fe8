// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace         = "aprs_relay"
	readHeaderTimeout = time.Second * 5
	shutdownTimeout   = time.Second * 5
)

// Collector bundles the Prometheus metrics of the relay pipeline. A nil Collector is valid and
// records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	FramesRead       prometheus.Counter
	FramesDropped    *prometheus.CounterVec
	UpdatesForwarded prometheus.Counter
	DeliveryFailures *prometheus.CounterVec
	MovementMeters   prometheus.Histogram
	TrackedStations  prometheus.Gauge
}

// NewCollector registers the relay metrics against the provided registerer, defaulting to the
// global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	collector := &Collector{
		gatherer: gatherer,
		FramesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_read_total",
			Help:      "Total number of frames read from the inbound feed.",
		}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of frames dropped, labeled by reason.",
		}, []string{"reason"}),
		UpdatesForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_forwarded_total",
			Help:      "Total number of location updates accepted for delivery.",
		}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Total number of failed deliveries, labeled by sink.",
		}, []string{"sink"}),
		MovementMeters: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "movement_meters",
			Help:      "Distance between the last reported and the newly forwarded position.",
			Buckets:   []float64{20, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 50000},
		}),
		TrackedStations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_stations",
			Help:      "Number of stations with a last reported position.",
		}),
	}

	for _, c := range []prometheus.Collector{
		collector.FramesRead, collector.FramesDropped, collector.UpdatesForwarded,
		collector.DeliveryFailures, collector.MovementMeters, collector.TrackedStations,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return collector, nil
}

// FrameRead counts a frame read from the feed.
func (c *Collector) FrameRead() {
	if c == nil {
		return
	}
	c.FramesRead.Inc()
}

// FrameDropped counts a dropped frame.
func (c *Collector) FrameDropped(reason string) {
	if c == nil {
		return
	}
	c.FramesDropped.WithLabelValues(reason).Inc()
}

// UpdateForwarded counts an accepted update and records its movement distance. The first
// update of a station has no distance and increases the number of tracked stations instead.
func (c *Collector) UpdateForwarded(distance float64, first bool) {
	if c == nil {
		return
	}
	c.UpdatesForwarded.Inc()
	if first {
		c.TrackedStations.Inc()
		return
	}
	c.MovementMeters.Observe(distance)
}

// DeliveryFailed counts a failed delivery for the given sink.
func (c *Collector) DeliveryFailed(sink string) {
	if c == nil {
		return
	}
	c.DeliveryFailures.WithLabelValues(sink).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve exposes the metrics on addr under /metrics until the context is canceled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	listener, err := new(net.ListenConfig).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return c.serve(ctx, listener)
}

func (c *Collector) serve(ctx context.Context, listener net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
