// Package events carries the notifications an entity manager emits while it
// works: completed operations, loaded entities and listing boundaries.
// Observers are notified synchronously and cannot influence the operation.
package events

import (
	"time"
)

// Phase marks the boundary of a listing
type Phase int

const (
	// ListingBegin is emitted before rows are hydrated
	ListingBegin Phase = iota
	// ListingEnd is emitted once every row has been hydrated
	ListingEnd
)

func (p Phase) String() string {
	if p == ListingEnd {
		return "end"
	}
	return "begin"
}

// OperationEvent reports a completed manager operation
type OperationEvent struct {
	Name    string
	Success bool
	Elapsed time.Duration
	Err     error
}

// EntityLoadedEvent reports a hydrated entity
type EntityLoadedEvent struct {
	Entity     string
	Identifier any
	FromCache  bool
}

// ListingEvent brackets the hydration of a result set
type ListingEvent struct {
	Phase  Phase
	Entity string
	Count  int
}

// Observer receives manager notifications
type Observer interface {
	OnOperation(e OperationEvent)
	OnEntityLoaded(e EntityLoadedEvent)
	OnListing(e ListingEvent)
}

// Nop ignores every notification
type Nop struct{}

func (Nop) OnOperation(OperationEvent)       {}
func (Nop) OnEntityLoaded(EntityLoadedEvent) {}
func (Nop) OnListing(ListingEvent)           {}

// Observers fans notifications out to every member in order. A panicking
// observer is skipped.
type Observers []Observer

// Multi combines observers, dropping nil entries
func Multi(observers ...Observer) Observers {
	out := make(Observers, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (o Observers) OnOperation(e OperationEvent) {
	for _, obs := range o {
		notify(func() { obs.OnOperation(e) })
	}
}

func (o Observers) OnEntityLoaded(e EntityLoadedEvent) {
	for _, obs := range o {
		notify(func() { obs.OnEntityLoaded(e) })
	}
}

func (o Observers) OnListing(e ListingEvent) {
	for _, obs := range o {
		notify(func() { obs.OnListing(e) })
	}
}

func notify(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
