package splitter

import "context"

// EventKind identifies a step of the split pipeline.
type EventKind string

const (
	EventClassifyStarted   EventKind = "classify_started"
	EventPageClassified    EventKind = "page_classified"
	EventPairsExpanded     EventKind = "pairs_expanded"
	EventPartitionComputed EventKind = "partition_computed"
	EventDocumentsWritten  EventKind = "documents_written"
	EventNoSplitNeeded     EventKind = "no_split_needed"
)

// Event is a progress notification. Fields not relevant to Kind are zero.
type Event struct {
	Kind    EventKind
	Source  string
	Page    int
	Total   int
	Color   bool
	Pages   []int
	Message string
}

// Observer receives pipeline events. Implementations must not block for long;
// they run on the classification goroutine.
type Observer interface {
	OnEvent(ctx context.Context, ev Event)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) OnEvent(ctx context.Context, ev Event) { f(ctx, ev) }

// Observers fans an event out to every member in order.
type Observers []Observer

func (o Observers) OnEvent(ctx context.Context, ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.OnEvent(ctx, ev)
		}
	}
}

type nopObserver struct{}

func (nopObserver) OnEvent(context.Context, Event) {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
