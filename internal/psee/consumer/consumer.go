// Package consumer polls a PSEE event source and feeds the read model. It is
// the read model's only writer.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mgcore/internal/psee/events"
	"mgcore/internal/psee/readmodel"
)

const (
	DefaultPollInterval = 5000 * time.Millisecond
	DefaultFetchTimeout = readmodel.DefaultFetchTimeout
)

var ErrAlreadyRunning = errors.New("psee consumer already running")

type Consumer struct {
	source       events.Source
	model        *readmodel.ReadModel
	pollInterval time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
	metrics      *Metrics

	mu     sync.Mutex
	cursor events.Cursor
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Consumer)

// WithPollInterval overrides DefaultPollInterval. Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithFetchTimeout overrides DefaultFetchTimeout. Non-positive values are ignored.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithCursor resumes polling after cursor, e.g. the one Rebuild returned.
func WithCursor(cursor events.Cursor) Option {
	return func(c *Consumer) { c.cursor = cursor }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) { c.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Consumer) { c.metrics = m }
}

func New(source events.Source, model *readmodel.ReadModel, opts ...Option) *Consumer {
	c := &Consumer{
		source:       source,
		model:        model,
		pollInterval: DefaultPollInterval,
		fetchTimeout: DefaultFetchTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the poll loop and returns immediately. The first poll runs
// at once, then every poll interval, until ctx is cancelled or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		c.loop(runCtx)
	}()
	c.logger.InfoContext(ctx, "psee consumer started", "poll_interval", c.pollInterval)
	return nil
}

// Stop cancels the loop and waits for it to exit. It is safe to call more
// than once and while a poll is in flight.
func (c *Consumer) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
	c.logger.Info("psee consumer stopped", "cursor", c.Cursor().Position)
}

// Run starts the consumer and blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	c.Stop()
	return ctx.Err()
}

// Cursor returns the position the next poll resumes from.
func (c *Consumer) Cursor() events.Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

func (c *Consumer) loop(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		c.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Consumer) poll(ctx context.Context) {
	since := c.Cursor()

	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	batch, next, err := c.source.FetchEvents(fetchCtx, since)
	cancel()

	// A batch fetched across a stop is dropped; the next run fetches it again.
	if ctx.Err() != nil {
		c.metrics.IncrementPoll("dropped")
		return
	}
	if err != nil {
		c.metrics.IncrementPoll("error")
		c.logger.WarnContext(ctx, "psee fetch failed",
			"cursor", since.Position,
			"timeout", c.fetchTimeout,
			"error", err,
		)
		return
	}

	stats := c.model.ProcessEvents(batch)

	c.mu.Lock()
	c.cursor = next
	c.mu.Unlock()

	c.metrics.IncrementPoll("ok")
	c.metrics.AddApplied(stats.Applied)
	c.metrics.AddSkipped(stats.Skipped)
	if len(batch) > 0 {
		c.logger.DebugContext(ctx, "psee batch applied",
			"events", len(batch),
			"applied", stats.Applied,
			"duplicates", stats.Duplicates,
			"skipped", stats.Skipped,
			"cursor", next.Position,
		)
	}
}
