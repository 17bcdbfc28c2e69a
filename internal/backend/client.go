// Package backend is the HTTP client for the external REST API. Every
// auth call and every proxy route goes through Client.Do, which forwards
// the bearer token, encodes JSON bodies and classifies failures into
// ResponseError (backend answered non-2xx) and TransportError (the call
// never completed).
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes caps how much of a backend response is read.
const maxResponseBytes = 10 << 20

// Observer receives one observation per backend call.
type Observer interface {
	ObserveUpstream(route, outcome string, d time.Duration)
}

// Request describes one backend call.
type Request struct {
	// Name labels the call in logs and metrics (e.g. "auth.login").
	Name string

	Method string

	// Path is appended to the base URL (e.g. "/auth/login/").
	Path string

	// Token is sent as "Authorization: Bearer <token>" when set.
	Token string

	// Body is JSON-encoded when non-nil.
	Body any

	Query url.Values

	// Timeout, when set, cancels the call after the given duration and marks
	// the resulting TransportError as a timeout.
	Timeout time.Duration
}

// Response is a successful (2xx) backend answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return errors.New("backend: empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("backend: decoding response: %w", err)
	}
	return nil
}

// Client represents an HTTP client for the backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	observer   Observer
}

// New creates a client for baseURL. timeout is the transport-level timeout
// applied to every call.
func New(baseURL string, timeout time.Duration, observer Observer) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		observer:   observer,
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do issues exactly one backend call. It returns *ResponseError for non-2xx
// answers and *TransportError when the call could not complete.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, r)
	if c.observer != nil {
		c.observer.ObserveUpstream(r.Name, outcome(err), time.Since(start))
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, r Request) (*Response, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var body io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, &TransportError{Op: r.Name, Err: fmt.Errorf("marshaling request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	target := c.baseURL + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, &TransportError{Op: r.Name, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: r.Name, Err: err, Timeout: isTimeout(ctx, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: r.Name, Err: fmt.Errorf("reading response: %w", err), Timeout: isTimeout(ctx, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message, payload := ExtractMessage(data, resp.StatusCode)
		slog.Debug("backend returned error",
			slog.String("call", r.Name),
			slog.Int("status", resp.StatusCode),
			slog.String("message", message),
		)
		return nil, &ResponseError{Status: resp.StatusCode, Message: message, Payload: payload}
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// isTimeout reports whether err came from a deadline rather than a refusal.
func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}

// outcome labels a call result for metrics.
func outcome(err error) string {
	var re *ResponseError
	var te *TransportError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &re):
		return "upstream_error"
	case errors.As(err, &te) && te.Timeout:
		return "timeout"
	default:
		return "unreachable"
	}
}
