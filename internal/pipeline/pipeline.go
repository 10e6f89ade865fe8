// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package pipeline runs frames of the feed through decoding, subscription matching, the
// movement gate and the sink.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"

	"github.com/wneessen/aprs-relay/internal/aprs"
	"github.com/wneessen/aprs-relay/internal/gate"
	"github.com/wneessen/aprs-relay/internal/logger"
	"github.com/wneessen/aprs-relay/internal/metrics"
	"github.com/wneessen/aprs-relay/internal/roster"
	"github.com/wneessen/aprs-relay/internal/sink"
)

const (
	commentPrefix = "#"

	// maxConsecutiveReadErrors is the number of failed reads in a row after which the stream
	// is considered broken.
	maxConsecutiveReadErrors = 10
)

// ErrStreamBroken is returned by Run when reading keeps failing.
var ErrStreamBroken = errors.New("feed stream is broken")

// Stats is a snapshot of the processing counters.
type Stats struct {
	Frames           uint64
	Dropped          uint64
	Forwarded        uint64
	DeliveryFailures uint64
	ReadErrors       uint64
}

type counters struct {
	frames           atomic.Uint64
	dropped          atomic.Uint64
	forwarded        atomic.Uint64
	deliveryFailures atomic.Uint64
	readErrors       atomic.Uint64
}

// Processor handles frames one at a time. Process and Run must not be called concurrently;
// Stats may be called from any goroutine.
type Processor struct {
	decoder aprs.Decoder
	roster  *roster.Roster
	gate    *gate.Gate
	sink    sink.Forwarder
	logger  *logger.Logger
	metrics *metrics.Collector
	stats   counters
}

// Option configures a Processor.
type Option func(*Processor)

// WithDecoder replaces the APRS-IS text decoder.
func WithDecoder(decoder aprs.Decoder) Option {
	return func(p *Processor) {
		p.decoder = decoder
	}
}

// WithMetrics records processing results in the given collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(p *Processor) {
		p.metrics = collector
	}
}

// New returns a Processor forwarding accepted updates of subscribed stations to the sink.
func New(subscriptions *roster.Roster, movement *gate.Gate, forwarder sink.Forwarder,
	log *logger.Logger, opts ...Option,
) *Processor {
	processor := &Processor{
		decoder: aprs.TextDecoder{},
		roster:  subscriptions,
		gate:    movement,
		sink:    forwarder,
		logger:  log,
	}
	for _, opt := range opts {
		opt(processor)
	}
	return processor
}

// Process runs a single frame through the pipeline and returns its Outcome. Accepted updates
// are delivered synchronously.
func (p *Processor) Process(ctx context.Context, line string) Outcome {
	p.stats.frames.Add(1)
	p.metrics.FrameRead()

	outcome := p.process(ctx, strings.TrimRight(line, "\r\n"))
	if !outcome.IsForwarded() {
		p.stats.dropped.Add(1)
		p.metrics.FrameDropped(outcome.Reason.String())
	}
	return outcome
}

func (p *Processor) process(ctx context.Context, line string) Outcome {
	if strings.HasPrefix(line, commentPrefix) {
		return Dropped(ReasonComment, nil)
	}

	beacon, err := p.decoder.Decode(line)
	if err != nil {
		p.logger.Debug("dropping undecodable frame", logger.Err(err), slog.String("frame", line))
		return Dropped(ReasonDecode, err)
	}

	sub, ok := p.roster.Match(beacon.Source)
	if !ok {
		outcome := Dropped(ReasonNoMatch, nil)
		outcome.Beacon = beacon
		return outcome
	}

	decision := p.gate.Evaluate(sub, beacon)
	attrs := []any{
		slog.String("callsign", beacon.Source.Callsign),
		slog.String("ssid", beacon.Source.SSID.String()),
		slog.String("resource", sub.ResourceID),
	}
	var outcome Outcome
	switch decision.Verdict {
	case gate.VerdictNoPosition:
		p.logger.Debug("dropping beacon without position", append(attrs, slog.String("kind", beacon.Kind.String()))...)
		outcome = Dropped(ReasonNoPosition, nil)
	case gate.VerdictBelowThreshold:
		p.logger.Debug("dropping insignificant movement", append(attrs,
			slog.String("distance_m", fmt.Sprintf("%.1f", decision.Distance)))...)
		outcome = Dropped(ReasonBelowThreshold, nil)
		outcome.Distance = decision.Distance
	case gate.VerdictDistanceError:
		p.logger.Warn("failed to compute movement distance", append(attrs, logger.Err(decision.Err))...)
		outcome = Dropped(ReasonDistanceError, decision.Err)
	default:
		outcome = p.forward(ctx, sub, decision, attrs)
	}
	outcome.Beacon = beacon
	return outcome
}

func (p *Processor) forward(ctx context.Context, sub roster.Subscription, decision gate.Decision, attrs []any) Outcome {
	first := decision.Verdict == gate.VerdictFirstSighting
	p.stats.forwarded.Add(1)
	p.metrics.UpdateForwarded(decision.Distance, first)

	attrs = append(attrs, slog.String("position", decision.Position.String()))
	if first {
		attrs = append(attrs, slog.Bool("first", true))
	} else {
		attrs = append(attrs, slog.String("distance_m", fmt.Sprintf("%.1f", decision.Distance)))
	}
	p.logger.Info("forwarding location update", attrs...)

	update := sink.Update{ResourceID: sub.ResourceID, Position: decision.Position}
	err := p.sink.Forward(ctx, update)
	if err != nil {
		p.stats.deliveryFailures.Add(1)
		p.metrics.DeliveryFailed(p.sink.Name())
		p.logger.Error("failed to deliver location update", append(attrs, logger.Err(err),
			slog.String("sink", p.sink.Name()))...)
	}
	return Forwarded(update, decision.Distance, err)
}

// Run reads newline-terminated frames from r and processes them until the stream is closed,
// reading fails repeatedly or the context is canceled. A closed stream returns nil.
func (p *Processor) Run(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReader(r)
	readErrors := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := reader.ReadString('\n')
		if line != "" && (err == nil || errors.Is(err, io.EOF)) {
			p.Process(ctx, line)
		}
		switch {
		case err == nil:
			readErrors = 0
			continue
		case ctx.Err() != nil:
			return ctx.Err()
		case isClosed(err):
			p.logger.Info("feed stream closed")
			return nil
		}

		// a failed read discards the partial frame
		p.stats.readErrors.Add(1)
		readErrors++
		p.logger.Debug("failed to read frame", logger.Err(err))
		if readErrors >= maxConsecutiveReadErrors {
			return fmt.Errorf("%w: %d consecutive read errors: %w", ErrStreamBroken, readErrors, err)
		}
	}
}

// Stats returns the current processing counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Frames:           p.stats.frames.Load(),
		Dropped:          p.stats.dropped.Load(),
		Forwarded:        p.stats.forwarded.Load(),
		DeliveryFailures: p.stats.deliveryFailures.Load(),
		ReadErrors:       p.stats.readErrors.Load(),
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}
