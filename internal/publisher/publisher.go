// Package publisher drives the broadcast side: it watches a location
// source and pushes every fix into the shared roster under one identifier.
package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/locshare/locshare/pkg/core"
)

// Source produces location fixes, e.g. a device geolocation watch or the
// demo random walk.
type Source interface {
	// Watch starts producing records until the context is cancelled. The
	// returned channel is closed when production stops.
	Watch(ctx context.Context) (<-chan core.LocationRecord, error)
}

// Sink receives published records. The feed client satisfies this.
type Sink interface {
	Publish(rec core.LocationRecord) error
	Remove(id core.Identifier) error
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithMinInterval drops fixes arriving faster than the given interval.
func WithMinInterval(d time.Duration) Option {
	return func(p *Publisher) {
		p.minInterval = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// Publisher forwards fixes from a Source to a Sink under a fixed
// identifier, and withdraws the identifier's record when stopped.
type Publisher struct {
	id          core.Identifier
	source      Source
	sink        Sink
	minInterval time.Duration
	logger      *slog.Logger
}

func New(id core.Identifier, source Source, sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		id:     id,
		source: source,
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run publishes fixes until the context is cancelled or the source closes,
// then removes this publisher's record from the roster.
func (p *Publisher) Run(ctx context.Context) error {
	fixes, err := p.source.Watch(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := p.sink.Remove(p.id); err != nil {
			p.logger.Warn("Failed to withdraw record on stop", "identifier", p.id, "error", err)
		}
	}()

	var lastPublish time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-fixes:
			if !ok {
				return nil
			}

			if p.minInterval > 0 && time.Since(lastPublish) < p.minInterval {
				continue
			}

			rec.Identifier = p.id
			if rec.Timestamp == 0 {
				rec.Timestamp = time.Now().UnixMilli()
			}

			if err := p.sink.Publish(rec); err != nil {
				p.logger.Warn("Publish failed", "identifier", p.id, "error", err)
				continue
			}
			lastPublish = time.Now()
		}
	}
}
