// Package httpc provides HTTP clients with sensible timeouts, and a client
// for the framebridge routine API.
package httpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teslashibe/go-framebridge/pkg/web"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// NewClient creates an HTTP client with the specified overall timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// RoutineClient calls routines through the HTTP transport.
type RoutineClient struct {
	base string
	http *http.Client
}

// NewRoutineClient creates a client for the server at baseURL, for example
// "http://localhost:8090". A nil hc uses NewClient(DefaultTimeout).
func NewRoutineClient(baseURL string, hc *http.Client) *RoutineClient {
	if hc == nil {
		hc = NewClient(DefaultTimeout)
	}
	return &RoutineClient{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// StatusError is a non-2xx routine response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// Call invokes routine with args and returns the raw JSON response body.
// Error responses come back as *StatusError.
func (c *RoutineClient) Call(ctx context.Context, routine string, args []any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(web.CallRequest{Args: args})
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}

	u := c.base + "/api/call/" + url.PathEscape(routine)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// Routines returns the raw JSON routine listing.
func (c *RoutineClient) Routines(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/routines", nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *RoutineClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		var cr web.CallResponse
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &cr) == nil && cr.Error != "" {
			msg = cr.Error
		}
		return data, &StatusError{Status: resp.StatusCode, Message: msg}
	}
	return data, nil
}
