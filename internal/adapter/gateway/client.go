package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/V4T54L/barber-pos/internal/domain"
)

const maxErrorBody = 64 * 1024

// HTTPDoer is the part of *http.Client the gateway needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes one authenticated connection to the service.
type Config struct {
	BaseURL    string
	Token      string
	BusinessID string
	Timeout    time.Duration
	// RequestRate caps requests per second. Zero means unlimited.
	RequestRate float64
	HTTPClient  HTTPDoer `json:"-"`
}

// Client is the remote entity gateway. Its method set mirrors the embedded
// store so the orchestrator can use either behind domain.EntityStore.
type Client struct {
	baseURL    string
	token      string
	businessID string
	http       HTTPDoer
	limiter    *rate.Limiter
	tracer     trace.Tracer
	logger     *slog.Logger
}

var _ domain.EntityStore = (*Client)(nil)

// NewHTTPClient builds the default transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        20,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		},
	}
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	doer := cfg.HTTPClient
	if doer == nil {
		doer = NewHTTPClient(cfg.Timeout)
	}
	limit := rate.Inf
	if cfg.RequestRate > 0 {
		limit = rate.Limit(cfg.RequestRate)
	}
	burst := int(cfg.RequestRate)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		businessID: cfg.BusinessID,
		http:       doer,
		limiter:    rate.NewLimiter(limit, burst),
		tracer:     otel.Tracer("barber-pos/gateway"),
		logger:     logger.With("component", "gateway", "business_id", cfg.BusinessID),
	}
}

// do performs one request. Transport failures become ErrServerUnreachable;
// a caller context that ends while waiting for the rate limiter does not;
// non-2xx answers become *domain.RequestFailedError carrying the server's
// message.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, span := c.tracer.Start(ctx, method+" "+path)
	defer span.End()

	// The service was never contacted, so this says nothing about its
	// reachability.
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("request not sent: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unreachable")
		c.logger.Debug("request failed in transport", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrServerUnreachable, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rerr := decodeError(resp)
		span.SetStatus(codes.Error, rerr.Message)
		return rerr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) *domain.RequestFailedError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	rerr := &domain.RequestFailedError{StatusCode: resp.StatusCode}

	var body domain.ErrorResponse
	if err := json.Unmarshal(b, &body); err == nil && body.Error != "" {
		rerr.Message, rerr.Code = body.Error, body.Code
		return rerr
	}
	rerr.Message = strings.TrimSpace(string(b))
	if rerr.Message == "" {
		rerr.Message = http.StatusText(resp.StatusCode)
	}
	return rerr
}

// IsUnreachable reports whether err means the service could not be reached,
// as opposed to the service answering with a failure.
func IsUnreachable(err error) bool {
	return errors.Is(err, domain.ErrServerUnreachable)
}
