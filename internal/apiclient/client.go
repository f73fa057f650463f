// Package apiclient implements the HTTP client for the laptop registry
// backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog"

	"labreg/internal/labreg"
)

const (
	// Retry configuration for remote calls.
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	// Maximum response size to prevent memory exhaustion.
	maxResponseBody = 1024 * 1024 // 1MB limit
)

// ErrInvalidCredentials is returned by Login when the backend rejects the
// email/password pair.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Client talks to the registry backend. All methods retry transient
// failures with backoff; 4xx responses are terminal and decoded into
// typed errors.
type Client struct {
	httpClient *http.Client
	log        zerolog.Logger
	baseURL    string
	attempts   uint
	backoff    time.Duration
}

// Option adjusts client behavior.
type Option func(*Client)

// WithRetry overrides the default retry policy. Used to tighten timings
// where waiting out the production backoff is unacceptable.
func WithRetry(attempts uint, backoff time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.backoff = backoff
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, timeout time.Duration, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "apiclient").Logger(),
		attempts:   maxRetries,
		backoff:    initialBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListDevices fetches the full device collection.
func (c *Client) ListDevices(ctx context.Context) ([]labreg.Device, error) {
	var wire []wireDevice
	if err := c.call(ctx, http.MethodGet, "/api/laptops", nil, &wire); err != nil {
		return nil, err
	}
	devices := make([]labreg.Device, 0, len(wire))
	for i := range wire {
		devices = append(devices, wire[i].device())
	}
	return devices, nil
}

// Device fetches a single device by ID.
func (c *Client) Device(ctx context.Context, id int) (labreg.Device, error) {
	var wire wireDevice
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/api/laptops/%d", id), nil, &wire); err != nil {
		return labreg.Device{}, err
	}
	return wire.device(), nil
}

// Register creates a new device from a draft. Uniqueness conflicts come
// back as *labreg.ConflictError naming the offending field.
func (c *Client) Register(ctx context.Context, draft *labreg.DeviceDraft) (labreg.Device, error) {
	var wire wireDevice
	if err := c.call(ctx, http.MethodPost, "/api/laptops/register", draftToWire(draft), &wire); err != nil {
		return labreg.Device{}, err
	}
	return wire.device(), nil
}

// Update sends a complete device record to replace the stored one.
func (c *Client) Update(ctx context.Context, device labreg.Device) (labreg.Device, error) {
	var wire wireDevice
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("/api/laptops/%d", device.ID), toWire(device), &wire); err != nil {
		return labreg.Device{}, err
	}
	return wire.device(), nil
}

// Verify asks the backend to mark a device verified.
func (c *Client) Verify(ctx context.Context, id int) (labreg.Device, error) {
	var wire wireDevice
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("/api/laptops/%d/verify", id), nil, &wire); err != nil {
		return labreg.Device{}, err
	}
	return wire.device(), nil
}

// Delete removes a device from the backend.
func (c *Client) Delete(ctx context.Context, id int) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/api/laptops/%d", id), nil, nil)
}

// Login verifies the primary admin credentials. The success payload is
// opaque and discarded; only the status matters to callers.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	err := c.call(ctx, http.MethodPost, "/api/auth/login", body, nil)
	var status *statusError
	if errors.As(err, &status) && (status.code == http.StatusBadRequest || status.code == http.StatusUnauthorized) {
		return ErrInvalidCredentials
	}
	return err
}

// statusError is a non-conflict 4xx response.
type statusError struct {
	message string
	code    int
}

func (e *statusError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("server returned status %d: %s", e.code, e.message)
	}
	return fmt.Sprintf("server returned status %d", e.code)
}

// call performs one API request. Network errors and 5xx responses are
// retried with backoff; 4xx responses are decoded once and returned
// without retrying.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	start := time.Now()

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = data
	}

	var terminal error
	err := retry.Do(func() error {
		terminal = nil

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				c.log.Warn().Err(err).Msg("error closing response body")
			}
		}()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		case resp.StatusCode >= http.StatusBadRequest:
			terminal = decodeAPIError(resp.StatusCode, data)
			return nil
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	}, retry.Attempts(c.attempts), retry.Delay(c.backoff), retry.MaxDelay(maxBackoff), retry.Context(ctx))

	c.log.Debug().Str("method", method).Str("path", path).Dur("elapsed", time.Since(start)).Msg("api call")

	if err != nil {
		return err
	}
	return terminal
}

// decodeAPIError maps a 4xx body onto a typed error. Conflict responses
// carry the violated field name.
func decodeAPIError(code int, body []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Field != "" {
			return &labreg.ConflictError{Field: labreg.ConflictField(apiErr.Field)}
		}
		if apiErr.Message != "" {
			return &statusError{code: code, message: apiErr.Message}
		}
	}
	return &statusError{code: code, message: strings.TrimSpace(string(body))}
}
