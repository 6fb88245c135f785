// Package clients talks to the aggregator's HTTP API on behalf of a tracker.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/xerrors"
)

// IdempotencyHeader carries the flush id so the aggregator can drop replays.
const IdempotencyHeader = "Idempotency-Key"

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New returns a client rooted at baseURL, for example
// "http://localhost:3000/api". A nil httpClient uses http.DefaultClient.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, xerrors.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, xerrors.Errorf("api url %q must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: u, http: httpClient}, nil
}

type RegisterDeviceRequest struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	UserID *string `json:"userId"`
}

type RegisterDeviceResponse struct {
	Success  bool    `json:"success"`
	DeviceID string  `json:"deviceId"`
	UserID   *string `json:"userId"`
}

type UsageRequest struct {
	DeviceID        string         `json:"deviceId"`
	ServiceName     string         `json:"serviceName"`
	DurationSeconds int64          `json:"durationSeconds"`
	RequestCount    int            `json:"requestCount"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	UserID          *string        `json:"userId,omitempty"`
}

type UsageResponse struct {
	Success   bool  `json:"success"`
	LogID     int64 `json:"logId"`
	Duplicate bool  `json:"duplicate,omitempty"`
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Code       string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Code)
}

// CodeDeviceNotFound is returned for usage or link calls naming a device the
// aggregator has never seen.
const CodeDeviceNotFound = "device_not_found"

// IsDeviceNotFound reports whether err is a 404 for an unregistered device.
func IsDeviceNotFound(err error) bool {
	var statusErr *StatusError
	return xerrors.As(err, &statusErr) &&
		statusErr.StatusCode == http.StatusNotFound &&
		statusErr.Code == CodeDeviceNotFound
}

// Permanent reports whether resending the same request cannot succeed.
func (e *StatusError) Permanent() bool {
	if e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests {
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func (c *Client) RegisterDevice(ctx context.Context, req RegisterDeviceRequest) (RegisterDeviceResponse, error) {
	var resp RegisterDeviceResponse
	err := c.do(ctx, http.MethodPost, "/devices", nil, req, &resp)
	return resp, err
}

func (c *Client) LinkUser(ctx context.Context, deviceID, userID string) error {
	body := map[string]string{"userId": userID}
	return c.do(ctx, http.MethodPost, "/devices/"+url.PathEscape(deviceID)+"/link-user", nil, body, nil)
}

// LogUsage posts one usage record. A non-empty idempotencyKey is sent as the
// Idempotency-Key header.
func (c *Client) LogUsage(ctx context.Context, idempotencyKey string, req UsageRequest) (UsageResponse, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set(IdempotencyHeader, idempotencyKey)
	}
	var resp UsageResponse
	err := c.do(ctx, http.MethodPost, "/usage", header, req, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return xerrors.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return xerrors.Errorf("build request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return xerrors.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(res.Body, 64<<10)).Decode(&payload)
		return &StatusError{StatusCode: res.StatusCode, Code: payload.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return xerrors.Errorf("decode response: %w", err)
	}
	return nil
}
