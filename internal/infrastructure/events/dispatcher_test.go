package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sponnect/sponnect/internal/domain/event"
	"github.com/sponnect/sponnect/internal/infrastructure/metrics"
)

type recorder struct {
	mu   sync.Mutex
	seen []event.Name
}

func (r *recorder) handle(_ context.Context, e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, e.Name)
	return nil
}

func (r *recorder) names() []event.Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Name(nil), r.seen...)
}

func TestDispatcher_RoutesByName(t *testing.T) {
	d := NewDispatcher(8, zerolog.Nop())
	payments := &recorder{}
	all := &recorder{}
	d.Subscribe(event.PaymentCompleted, payments.handle)
	d.SubscribeAll(all.handle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.Publish(ctx, event.New(event.NegotiationTransitioned))
	d.Publish(ctx, event.New(event.PaymentCompleted))

	assert.Eventually(t, func() bool { return len(all.names()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []event.Name{event.PaymentCompleted}, payments.names())

	cancel()
	<-done
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(1, zerolog.Nop())
	before := testutil.ToFloat64(metrics.EventsDropped.WithLabelValues(string(event.ProgressReviewed)))

	d.Publish(context.Background(), event.New(event.ProgressReviewed))
	d.Publish(context.Background(), event.New(event.ProgressReviewed))

	after := testutil.ToFloat64(metrics.EventsDropped.WithLabelValues(string(event.ProgressReviewed)))
	assert.Equal(t, before+1, after)
}

func TestDispatcher_HandlerFailuresAreContained(t *testing.T) {
	d := NewDispatcher(4, zerolog.Nop())
	rec := &recorder{}
	d.SubscribeAll(func(context.Context, event.Event) error { panic("boom") })
	d.SubscribeAll(func(context.Context, event.Event) error { return errors.New("nope") })
	d.SubscribeAll(rec.handle)

	d.Publish(context.Background(), event.New(event.CampaignDeleted))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	require.Equal(t, []event.Name{event.CampaignDeleted}, rec.names())
}

func TestDispatcher_SubscribeMetrics(t *testing.T) {
	d := NewDispatcher(8, zerolog.Nop())
	d.SubscribeMetrics()
	approved := testutil.ToFloat64(metrics.ProgressReviews.WithLabelValues("Approved"))
	deleted := testutil.ToFloat64(metrics.CampaignsDeleted)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	reviewed := event.New(event.ProgressReviewed)
	reviewed.Status = "Approved"
	d.Publish(ctx, reviewed)
	d.Publish(ctx, event.New(event.CampaignDeleted))
	d.Publish(ctx, event.New(event.PaymentCompleted))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.CampaignsDeleted) == deleted+1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, approved+1, testutil.ToFloat64(metrics.ProgressReviews.WithLabelValues("Approved")))

	cancel()
	<-done
}
