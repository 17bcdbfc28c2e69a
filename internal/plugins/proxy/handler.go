package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/edugate/internal/apperror"
	"github.com/keyxmakerx/edugate/internal/backend"
)

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 1 << 20

// FallbackObserver counts degraded responses.
type FallbackObserver interface {
	ObserveFallback(route string)
}

// Handler serves proxy routes. It holds no per-request state.
type Handler struct {
	client   *backend.Client
	observer FallbackObserver
}

// NewHandler creates a proxy handler over client. observer may be nil.
func NewHandler(client *backend.Client, observer FallbackObserver) *Handler {
	return &Handler{client: client, observer: observer}
}

// Serve returns the Echo handler for r.
func (h *Handler) Serve(r Route) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := ExtractToken(c)
		if r.RequireAuth && token == "" {
			return apperror.NewUnauthenticated("Authentication required")
		}

		path, err := upstreamPath(r.Upstream, c)
		if err != nil {
			return err
		}
		req := backend.Request{
			Name:    r.Name,
			Method:  r.Method,
			Path:    path,
			Token:   token,
			Timeout: r.Timeout,
		}
		if r.Method == http.MethodGet || r.Method == http.MethodDelete {
			req.Query = c.QueryParams()
		} else {
			body, err := readBody(c)
			if err != nil {
				return err
			}
			if err := checkRequired(body, r.Required); err != nil {
				return err
			}
			if body == nil {
				body = map[string]any{}
			}
			req.Body = body
		}

		resp, err := h.client.Do(c.Request().Context(), req)
		if err != nil {
			return h.failure(c, r, err)
		}
		return relay(c, r, resp)
	}
}

// failure degrades or shapes an upstream error.
func (h *Handler) failure(c echo.Context, r Route, err error) error {
	var re *backend.ResponseError
	var te *backend.TransportError
	isResponse := errors.As(err, &re)

	attrs := []any{slog.String("route", r.Name), slog.Any("error", err)}
	if isResponse {
		attrs = append(attrs, slog.Int("upstream_status", re.Status))
	}

	if r.DegradeOnError {
		slog.Warn("upstream failed, serving fallback", attrs...)
		if h.observer != nil {
			h.observer.ObserveFallback(r.Name)
		}
		return c.JSON(http.StatusOK, r.Fallback)
	}

	switch {
	case isResponse:
		slog.Debug("upstream error relayed", attrs...)
		return apperror.NewUpstream(re.Status, re.Message, re.Payload)
	case errors.As(err, &te) && te.Timeout && r.Timeout > 0:
		slog.Warn("upstream timed out", attrs...)
		return apperror.NewTimeout(err)
	default:
		slog.Error("upstream unreachable", attrs...)
		return apperror.NewUpstreamUnreachable(err)
	}
}

// relay writes a successful backend answer, reshaped when configured.
func relay(c echo.Context, r Route, resp *backend.Response) error {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return c.NoContent(resp.Status)
	}
	if r.Reshape == nil {
		return c.JSONBlob(resp.Status, resp.Body)
	}

	var body any
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return apperror.NewUpstreamUnreachable(fmt.Errorf("decoding %s response: %w", r.Name, err))
	}
	return c.JSON(resp.Status, r.Reshape(body))
}

// upstreamPath fills :param segments from the request's path params. A
// param that is a dot segment would move the call to another backend
// resource and is rejected.
func upstreamPath(tmpl string, c echo.Context) (string, error) {
	if !strings.Contains(tmpl, ":") {
		return tmpl, nil
	}
	segments := strings.Split(tmpl, "/")
	for i, seg := range segments {
		name, ok := strings.CutPrefix(seg, ":")
		if !ok {
			continue
		}
		value := c.Param(name)
		if unescaped, err := url.PathUnescape(value); err == nil {
			value = unescaped
		}
		if value == "" || value == "." || value == ".." {
			return "", apperror.NewValidation(fmt.Sprintf("invalid %s", name))
		}
		segments[i] = url.PathEscape(value)
	}
	return strings.Join(segments, "/"), nil
}

// readBody decodes an optional JSON body. An empty body is nil.
func readBody(c echo.Context) (any, error) {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return nil, apperror.NewBadRequest("could not read request body")
	}
	if len(data) > maxBodyBytes {
		return nil, apperror.NewBadRequest("request body too large")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, apperror.NewBadRequest("request body must be valid JSON")
	}
	return body, nil
}

// checkRequired reports the first required field that is missing, null or
// an empty string.
func checkRequired(body any, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	obj, _ := body.(map[string]any)
	for _, f := range fields {
		v, ok := obj[f]
		if !ok || v == nil {
			return apperror.NewValidation(f + " is required")
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			return apperror.NewValidation(f + " is required")
		}
	}
	return nil
}
