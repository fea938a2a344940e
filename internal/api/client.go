// Package api is the HTTP client for the game backend's REST surface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quizrally/client/internal/bus"
)

// TokenSource supplies the bearer token for authenticated calls. May return
// empty when the client is not logged in.
type TokenSource func() string

// Client talks to the backend REST API. Failed calls are surfaced as
// EventAPIError on the bus unless the call opts out with SilentError.
type Client struct {
	baseURL string
	http    *http.Client
	bus     *bus.Bus
	token   TokenSource
}

// New builds a client for the API rooted at baseURL (e.g. http://host/api).
func New(baseURL string, b *bus.Bus, token TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		bus:     b,
		token:   token,
	}
}

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Message string
	URL     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api %s: status %d: %s", e.URL, e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 API response, an expected business
// outcome when probing rooms that may no longer exist.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type callOptions struct {
	silent bool
}

// CallOption adjusts a single API call.
type CallOption func(*callOptions)

// SilentError suppresses the global error-notification side effect for calls
// whose failure is an expected outcome.
func SilentError() CallOption {
	return func(o *callOptions) { o.silent = true }
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, opts []CallOption) error {
	var options callOptions
	for _, opt := range opts {
		opt(&options)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if t := c.token(); t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
	}

	log.Debug().Str("method", method).Str("path", path).Msg("api request")
	resp, err := c.http.Do(req)
	if err != nil {
		if !options.silent {
			c.bus.Publish(bus.Event{
				Type:    bus.EventAPIError,
				Payload: bus.APIErrorPayload{Message: err.Error(), URL: path},
			})
		}
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{
			Status:  resp.StatusCode,
			Message: extractMessage(resp.Body),
			URL:     path,
		}
		if !options.silent {
			log.Error().Int("status", apiErr.Status).Str("path", path).Str("message", apiErr.Message).Msg("api error")
			c.bus.Publish(bus.Event{
				Type:    bus.EventAPIError,
				Payload: bus.APIErrorPayload{Status: apiErr.Status, Message: apiErr.Message, URL: path},
			})
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// extractMessage pulls the server's error message out of a failure body,
// falling back to the raw text.
func extractMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return "request failed"
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return string(raw)
}
