// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/wneessen/aprs-relay/internal/logger"
)

const (
	// DefaultTimeout is the default timeout value for the HTTPClient
	DefaultTimeout = time.Second * 10

	// maxDrainBytes limits how much of a response body is read before closing it
	maxDrainBytes = 64 << 10
)

var (
	// version is the version of the application (will be set at build time)
	version = "dev"
	// UserAgent is the User-Agent that the HTTP client sends with API requests
	UserAgent = fmt.Sprintf("Mozilla/5.0 (%s; %s) aprs-relay/%s (+https://github.com/wneessen/aprs-relay/)",
		runtime.GOOS,
		runtime.GOARCH,
		version,
	)

	// ErrUnexpectedStatus is returned when the server responds with a non-2xx status code
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)

// Client is a type wrapper for the Go stdlib http.Client and the Config
type Client struct {
	*http.Client
	logger  *logger.Logger
	timeout time.Duration
}

// New returns a new HTTP client
func New(logger *logger.Logger) *Client {
	return NewWithTimeout(logger, DefaultTimeout)
}

// NewWithTimeout returns a new HTTP client using the given default request timeout
func NewWithTimeout(logger *logger.Logger, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	httpTransport := &http.Transport{TLSClientConfig: tlsConfig}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: httpTransport,
	}
	return &Client{httpClient, logger, timeout}
}

// PostJSON JSON-encodes payload and posts it to the given URL. The response body is discarded.
func (h *Client) PostJSON(ctx context.Context, url string, payload any, headers map[string]string) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode JSON: %w", err)
	}
	if headers == nil {
		headers = make(map[string]string)
	}
	headers["Content-Type"] = "application/json"
	return h.Post(ctx, url, bytes.NewReader(body), headers)
}

// Post performs a HTTP POST request for the given URL and returns the status code
func (h *Client) Post(ctx context.Context, url string, body io.Reader, headers map[string]string) (int, error) {
	return h.PostWithTimeout(ctx, url, body, headers, h.timeout)
}

// PostWithTimeout performs a HTTP POST request for the given URL and timeout. A response with
// a status code outside of the 2xx range is returned as ErrUnexpectedStatus.
func (h *Client) PostWithTimeout(ctx context.Context, url string, body io.Reader, headers map[string]string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Prepare HTTP request
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return 0, fmt.Errorf("failed create new HTTP request with context: %w", err)
	}
	request.Header.Set("User-Agent", UserAgent)
	for k, v := range headers {
		request.Header.Set(k, v)
	}
	// Execute HTTP request
	response, err := h.Do(request)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	if response == nil {
		return 0, errors.New("nil response received")
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			h.logger.Error("failed to close HTTP request body", logger.Err(err))
		}
	}(response.Body)

	// Drain the body so the connection can be reused
	if _, err = io.Copy(io.Discard, io.LimitReader(response.Body, maxDrainBytes)); err != nil {
		h.logger.Debug("failed to drain HTTP response body", logger.Err(err))
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return response.StatusCode, fmt.Errorf("%w: %s", ErrUnexpectedStatus, response.Status)
	}
	return response.StatusCode, nil
}
