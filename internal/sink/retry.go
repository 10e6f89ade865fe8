// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package sink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/wneessen/aprs-relay/internal/logger"
)

const (
	initialRetryInterval = time.Millisecond * 250
	maxRetryInterval     = time.Second * 5
)

// Retrying retries failed deliveries of the wrapped Forwarder with exponential backoff.
type Retrying struct {
	next        Forwarder
	logger      *logger.Logger
	attempts    uint
	initial     time.Duration
	maxInterval time.Duration
}

// NewRetrying wraps next so that each update is attempted up to 1+retries times.
func NewRetrying(next Forwarder, log *logger.Logger, retries uint) *Retrying {
	return &Retrying{
		next:        next,
		logger:      log,
		attempts:    retries + 1,
		initial:     initialRetryInterval,
		maxInterval: maxRetryInterval,
	}
}

// Name returns the name of the wrapped sink.
func (r *Retrying) Name() string {
	return r.next.Name()
}

// Forward implements the Forwarder interface for Retrying. Permanent status errors are not
// retried.
func (r *Retrying) Forward(ctx context.Context, update Update) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = r.initial
	expBackoff.MaxInterval = r.maxInterval

	operation := func() (struct{}, error) {
		err := r.next.Forward(ctx, update)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Permanent() {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}
	notify := func(err error, next time.Duration) {
		r.logger.Debug("delivery failed, retrying", logger.Err(err),
			slog.String("resource", update.ResourceID), slog.Duration("backoff", next))
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(r.attempts),
		backoff.WithNotify(notify),
	)
	return err
}
