// Package lockclient implements dht.Locker against the cluster lock
// service (spec §6.3), wrapping each call with the logging discipline
// of pkg/concurrency/distlock's InstrumentedLock.
package lockclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client calls the lock service's /lock-acquire and /lock-release.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
	tracer  trace.Tracer
}

func New(baseURL string, httpClient *http.Client, log *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		log:     log,
		tracer:  otel.Tracer("internal/lockclient"),
	}
}

func (c *Client) Acquire(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "lockclient.Acquire")
	defer span.End()

	c.log.DebugContext(ctx, "acquiring cluster topology lock")
	if err := c.call(ctx, "/lock-acquire"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.ErrorContext(ctx, "failed to acquire cluster topology lock", "err", err)
		return err
	}
	c.log.DebugContext(ctx, "acquired cluster topology lock")
	span.SetAttributes(attribute.Bool("lock.acquired", true))
	return nil
}

func (c *Client) Release(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "lockclient.Release")
	defer span.End()

	c.log.DebugContext(ctx, "releasing cluster topology lock")
	if err := c.call(ctx, "/lock-release"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.ErrorContext(ctx, "failed to release cluster topology lock", "err", err)
		return err
	}
	return nil
}

func (c *Client) call(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s failed: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return nil
}
