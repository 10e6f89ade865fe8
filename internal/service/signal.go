// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// stdLibSignalSource is the production implementation.
type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleStatsSignal logs the relay statistics at info level whenever one of the given signals
// is received. It returns when the context is canceled.
func (s *Service) HandleStatsSignal(ctx context.Context, sig ...os.Signal) {
	sigChan := make(chan os.Signal, 1)
	s.signals.Notify(sigChan, sig...)
	defer s.signals.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigChan:
			s.logStatsAt(ctx, slog.LevelInfo)
		}
	}
}
