// Package exsitu is the HTTP client of the ex-situ backend API.
package exsitu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/pkg/telemetry"
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	RPS        int
	MaxRetries int
}

// Client reads museum objects and statistics from the ex-situ backend. It
// implements ports.ObjectSource.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	tracer     trace.Tracer
}

// NewClient creates a backend client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "exsitu-gateway/1.0"
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(cfg.RPS)), 1),
		maxRetries: cfg.MaxRetries,
		backoff:    time.Second,
		tracer:     telemetry.Tracer(),
	}
}

// FetchPage returns one page of objects inside the query bounds.
func (c *Client) FetchPage(ctx context.Context, q domain.ObjectQuery) (*domain.ObjectPage, error) {
	ctx, span := c.tracer.Start(ctx, "exsitu.FetchPage", trace.WithAttributes(
		telemetry.AttrUpstream.String(c.baseURL),
		telemetry.AttrPage.Int(q.Page),
		telemetry.AttrPageSize.Int(q.PageSize),
		telemetry.AttrBounds.String(q.Bounds.String()),
	))
	defer span.End()

	params := url.Values{}
	params.Set("filters[latitude][$gte]", formatCoord(q.Bounds.South))
	params.Set("filters[latitude][$lte]", formatCoord(q.Bounds.North))
	params.Set("filters[longitude][$gte]", formatCoord(q.Bounds.West))
	params.Set("filters[longitude][$lte]", formatCoord(q.Bounds.East))
	params.Set("pagination[pageSize]", strconv.Itoa(q.PageSize))
	params.Set("pagination[page]", strconv.Itoa(q.Page))
	params.Set("populate", "*")

	var resp objectsResponse
	if err := c.get(ctx, c.baseURL+"/api/museum-objects?"+params.Encode(), &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch museum objects")
		return nil, fmt.Errorf("fetch museum objects: %w", err)
	}

	page := &domain.ObjectPage{
		Objects:   make([]domain.MuseumObject, 0, len(resp.Data)),
		Page:      resp.Meta.Pagination.Page,
		PageSize:  resp.Meta.Pagination.PageSize,
		PageCount: resp.Meta.Pagination.PageCount,
		Total:     resp.Meta.Pagination.Total,
	}
	for _, raw := range resp.Data {
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			slog.Debug("skipping malformed museum object", "error", err)
			continue
		}
		page.Objects = append(page.Objects, r.toDomain())
	}
	if page.Page == 0 {
		page.Page = q.Page
	}

	span.SetAttributes(telemetry.AttrObjects.Int(len(page.Objects)))
	return page, nil
}

// FetchStats returns per-institution object counts.
func (c *Client) FetchStats(ctx context.Context) ([]domain.StatRow, error) {
	ctx, span := c.tracer.Start(ctx, "exsitu.FetchStats", trace.WithAttributes(
		telemetry.AttrUpstream.String(c.baseURL),
	))
	defer span.End()

	var rows []domain.StatRow
	if err := c.get(ctx, c.baseURL+"/api/stats", &rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch stats")
		return nil, fmt.Errorf("fetch stats: %w", err)
	}
	return rows, nil
}

// get issues a rate-limited GET and decodes the JSON body into target.
// Network errors, 429 and 5xx responses are retried with exponential
// backoff; other statuses fail immediately.
func (c *Client) get(ctx context.Context, u string, target any) error {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			backoff := c.backoff << uint(i-1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retry, err := c.do(ctx, u, target)
		if err == nil {
			return nil
		}
		trace.SpanFromContext(ctx).AddEvent("attempt failed", trace.WithAttributes(
			telemetry.AttrAttempt.Int(i+1),
			attribute.String("error", err.Error()),
		))
		if !retry {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) do(ctx context.Context, u string, target any) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false, err
		}
		return true, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%w: status %d: %s", domain.ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
		return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500, err
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return false, fmt.Errorf("%w: decode response: %v", domain.ErrUpstream, err)
	}
	return false, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
