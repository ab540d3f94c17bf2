// Package dispatch runs the per-domain poll loop: fetch a batch of pending events through the gateway,
// apply each one in order, and acknowledge or record the failure.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"guild-sync/backend/internal/syncevent/domain"
	"guild-sync/backend/internal/telemetry"
	telemetrydomain "guild-sync/backend/internal/telemetry/domain"
)

const (
	// DefaultInterval is the fixed poll cadence of both loops.
	DefaultInterval = 5 * time.Second
	// DefaultBatchSize is the number of events fetched per tick.
	DefaultBatchSize = 50
)

// Handler applies one event to the guild. A nil error acknowledges the event.
type Handler interface {
	Handle(ctx context.Context, ev domain.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev domain.Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev domain.Event) error { return f(ctx, ev) }

// Source is the part of the gateway the loop needs.
type Source interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.Event, error)
	MarkEventProcessed(ctx context.Context, id string) error
	MarkEventFailed(ctx context.Context, id, reason string) error
}

// Metrics receives per-event and per-tick measurements. *otel.SyncMetrics implements it.
type Metrics interface {
	EventProcessed(ctx context.Context, domain, tag string)
	EventFailed(ctx context.Context, domain, tag string)
	TickDuration(ctx context.Context, domain string, d time.Duration)
}

// Ticker delivers tick times. Tests substitute a manual one.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker returns a Ticker backed by time.Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// TickResult counts what one tick did.
type TickResult struct {
	Fetched   int
	Processed int
	Failed    int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) Option {
	return func(ds *Dispatcher) {
		if d > 0 {
			ds.interval = d
		}
	}
}

// WithBatchSize overrides the batch size.
func WithBatchSize(n int) Option {
	return func(ds *Dispatcher) {
		if n > 0 {
			ds.batchSize = n
		}
	}
}

// WithTicker replaces the time.Ticker factory.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(ds *Dispatcher) { ds.newTicker = newTicker }
}

// WithMetrics records counters and tick duration on m.
func WithMetrics(m Metrics) Option {
	return func(ds *Dispatcher) { ds.metrics = m }
}

// WithEmitter publishes an outcome for every handled event.
func WithEmitter(e telemetry.EventEmitter) Option {
	return func(ds *Dispatcher) { ds.emitter = e }
}

// WithWorkerID stamps outcomes with the worker's id.
func WithWorkerID(id string) Option {
	return func(ds *Dispatcher) { ds.workerID = id }
}

// Dispatcher is one domain's poll loop.
type Dispatcher struct {
	domain    domain.Domain
	source    Source
	handler   Handler
	interval  time.Duration
	batchSize int
	newTicker func(time.Duration) Ticker
	metrics   Metrics
	emitter   telemetry.EventEmitter
	workerID  string
	now       func() time.Time
}

// New returns a dispatcher that feeds events for d from source to handler.
func New(d domain.Domain, source Source, handler Handler, opts ...Option) *Dispatcher {
	ds := &Dispatcher{
		domain:    d,
		source:    source,
		handler:   handler,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
		newTicker: NewTimeTicker,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

// Run ticks until ctx is done. Ticks never overlap: a tick that outlasts the interval delays the next one.
// Fetch and ack failures are logged and never stop the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	t := d.newTicker(d.interval)
	defer t.Stop()
	log.Printf("dispatch: %s loop started (interval %s, batch %d)", d.domain, d.interval, d.batchSize)
	for {
		select {
		case <-ctx.Done():
			log.Printf("dispatch: %s loop stopped", d.domain)
			return nil
		case <-t.C():
			d.Tick(ctx)
		}
	}
}

// Tick fetches one batch and processes it sequentially in batch order.
func (d *Dispatcher) Tick(ctx context.Context) TickResult {
	start := d.now()
	var res TickResult
	defer func() {
		if d.metrics != nil {
			d.metrics.TickDuration(ctx, string(d.domain), d.now().Sub(start))
		}
	}()

	events, err := d.source.GetUnprocessedEvents(ctx, d.batchSize)
	if err != nil {
		log.Printf("dispatch: %s fetch failed: %v", d.domain, err)
		return res
	}
	res.Fetched = len(events)
	for _, ev := range events {
		// Shutdown mid-batch: leave the rest pending for the next run.
		if ctx.Err() != nil {
			break
		}
		if d.process(ctx, ev) {
			res.Processed++
		} else {
			res.Failed++
		}
	}
	if res.Fetched > 0 {
		log.Printf("dispatch: %s tick fetched=%d processed=%d failed=%d", d.domain, res.Fetched, res.Processed, res.Failed)
	}
	return res
}

func (d *Dispatcher) process(ctx context.Context, ev domain.Event) bool {
	start := d.now()
	herr := d.safeHandle(ctx, ev)
	outcome := &telemetrydomain.Outcome{
		EventID:    ev.EventID(),
		Domain:     string(d.domain),
		Tag:        string(ev.EventTag()),
		TeamID:     ev.TeamID(),
		WorkerID:   d.workerID,
		DurationMS: d.now().Sub(start).Milliseconds(),
		CreatedAt:  d.now().UTC(),
	}

	if herr == nil {
		outcome.Status = telemetrydomain.StatusProcessed
		if err := d.source.MarkEventProcessed(ctx, ev.EventID()); err != nil {
			log.Printf("dispatch: %s event %s applied but ack failed: %v", d.domain, ev.EventID(), err)
		}
		if d.metrics != nil {
			d.metrics.EventProcessed(ctx, outcome.Domain, outcome.Tag)
		}
		telemetry.EmitAsync(d.emitter, outcome)
		return true
	}

	reason := herr.Error()
	log.Printf("dispatch: %s event %s (%s, team %s) failed: %s", d.domain, ev.EventID(), ev.EventTag(), ev.TeamID(), reason)
	outcome.Status = telemetrydomain.StatusFailed
	outcome.Error = reason
	if err := d.source.MarkEventFailed(ctx, ev.EventID(), reason); err != nil {
		log.Printf("dispatch: %s event %s: recording failure failed: %v", d.domain, ev.EventID(), err)
	}
	if d.metrics != nil {
		d.metrics.EventFailed(ctx, outcome.Domain, outcome.Tag)
	}
	telemetry.EmitAsync(d.emitter, outcome)
	return false
}

// safeHandle turns a handler panic into an error so one event cannot take down the loop.
func (d *Dispatcher) safeHandle(ctx context.Context, ev domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return d.handler.Handle(ctx, ev)
}
