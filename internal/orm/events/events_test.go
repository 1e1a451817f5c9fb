package events

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	Nop
	operations []OperationEvent
	listings   []ListingEvent
}

func (r *recorder) OnOperation(e OperationEvent) { r.operations = append(r.operations, e) }
func (r *recorder) OnListing(e ListingEvent)     { r.listings = append(r.listings, e) }

type panicky struct{ Nop }

func (panicky) OnOperation(OperationEvent) { panic("observer bug") }

func TestObservers_FanOut(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	obs := Multi(first, nil, panicky{}, second)
	require.Len(t, obs, 3)

	obs.OnOperation(OperationEvent{Name: "Persist", Success: true})
	obs.OnListing(ListingEvent{Phase: ListingEnd, Entity: "Product", Count: 3})
	obs.OnEntityLoaded(EntityLoadedEvent{Entity: "Product", Identifier: 1})

	assert.Len(t, first.operations, 1)
	assert.Len(t, second.operations, 1)
	assert.Equal(t, 3, second.listings[0].Count)
}

func TestLogObserver(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	obs := NewLogObserver(zap.New(core))

	obs.OnOperation(OperationEvent{Name: "FindById", Success: true, Elapsed: time.Millisecond})
	obs.OnOperation(OperationEvent{Name: "Persist", Err: errors.New("boom")})
	obs.OnEntityLoaded(EntityLoadedEvent{Entity: "Product", Identifier: 7, FromCache: true})
	obs.OnListing(ListingEvent{Phase: ListingBegin, Entity: "Product"})

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, "operation completed", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, true, entries[2].ContextMap()["cached"])
	assert.Equal(t, "begin", entries[3].ContextMap()["phase"])
}

func TestMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsObserver(reg)

	m.OnOperation(OperationEvent{Name: "Persist", Success: true, Elapsed: 2 * time.Millisecond})
	m.OnOperation(OperationEvent{Name: "Persist", Success: false})
	m.OnEntityLoaded(EntityLoadedEvent{Entity: "Product", FromCache: true})
	m.OnEntityLoaded(EntityLoadedEvent{Entity: "Product"})
	m.OnEntityLoaded(EntityLoadedEvent{Entity: "Product"})
	m.OnListing(ListingEvent{Phase: ListingBegin, Entity: "Product"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("Persist", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("Persist", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntitiesLoaded.WithLabelValues("Product", "cache")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntitiesLoaded.WithLabelValues("Product", "database")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListingsInFlight))

	m.OnListing(ListingEvent{Phase: ListingEnd, Entity: "Product", Count: 5})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ListingsInFlight))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ListingRows))
}
