// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/aprs-relay/internal/http"
)

// HTTP posts updates as JSON to a fixed endpoint.
type HTTP struct {
	client        *http.Client
	endpoint      string
	authorization string
}

// NewHTTP returns a HTTP sink. If authorization is not empty, it is sent verbatim in the
// Authorization header of each request.
func NewHTTP(client *http.Client, endpoint, authorization string) *HTTP {
	return &HTTP{
		client:        client,
		endpoint:      endpoint,
		authorization: authorization,
	}
}

// Name returns the name of the sink.
func (h *HTTP) Name() string {
	return "http"
}

// Forward implements the Forwarder interface for HTTP.
func (h *HTTP) Forward(ctx context.Context, update Update) error {
	headers := make(map[string]string)
	if h.authorization != "" {
		headers["Authorization"] = h.authorization
	}

	status, err := h.client.PostJSON(ctx, h.endpoint, update.Payload(), headers)
	if err != nil {
		if errors.Is(err, http.ErrUnexpectedStatus) {
			return &StatusError{Code: status, Err: err}
		}
		return fmt.Errorf("failed to post update for %s: %w", update.ResourceID, err)
	}
	return nil
}
