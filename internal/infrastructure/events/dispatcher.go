package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sponnect/sponnect/internal/domain/event"
	"github.com/sponnect/sponnect/internal/infrastructure/metrics"
)

// Handler consumes one event. Errors are logged and never reach the publisher.
type Handler func(ctx context.Context, e event.Event) error

// Dispatcher is a buffered in-process event bus. Publish never blocks:
// when the buffer is full the event is dropped and counted.
type Dispatcher struct {
	queue    chan event.Event
	mu       sync.RWMutex
	handlers map[event.Name][]Handler
	all      []Handler
	logger   zerolog.Logger
}

func NewDispatcher(buffer int, logger zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		queue:    make(chan event.Event, buffer),
		handlers: make(map[event.Name][]Handler),
		logger:   logger.With().Str("component", "event_dispatcher").Logger(),
	}
}

// Subscribe registers h for events called name.
func (d *Dispatcher) Subscribe(name event.Name, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = append(d.handlers[name], h)
}

// SubscribeMetrics counts the events that have no counter at their source.
func (d *Dispatcher) SubscribeMetrics() {
	d.Subscribe(event.ProgressReviewed, func(_ context.Context, e event.Event) error {
		metrics.ObserveProgressReview(e.Status)
		return nil
	})
	d.Subscribe(event.CampaignDeleted, func(context.Context, event.Event) error {
		metrics.ObserveCampaignDeleted()
		return nil
	})
}

// SubscribeAll registers h for every event.
func (d *Dispatcher) SubscribeAll(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.all = append(d.all, h)
}

func (d *Dispatcher) Publish(_ context.Context, e event.Event) {
	select {
	case d.queue <- e:
	default:
		metrics.ObserveDroppedEvent(string(e.Name))
		d.logger.Warn().
			Str("event", string(e.Name)).
			Str("adRequestId", e.AdRequestID.String()).
			Msg("event buffer full, event dropped")
	}
}

// Run delivers queued events until ctx is done, then drains what is left.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case e := <-d.queue:
			d.dispatch(ctx, e)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx := context.Background()
	for {
		select {
		case e := <-d.queue:
			d.dispatch(ctx, e)
		default:
			return
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, e event.Event) {
	d.mu.RLock()
	hs := make([]Handler, 0, len(d.handlers[e.Name])+len(d.all))
	hs = append(hs, d.handlers[e.Name]...)
	hs = append(hs, d.all...)
	d.mu.RUnlock()

	for _, h := range hs {
		if err := d.invoke(ctx, h, e); err != nil {
			d.logger.Error().Err(err).Str("event", string(e.Name)).Msg("event handler failed")
		}
	}
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, e event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, e)
}
