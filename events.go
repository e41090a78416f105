package assetcache

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
)

// EventKind identifies a lifecycle trigger.
type EventKind uint8

const (
	EventInstall EventKind = iota + 1
	EventActivate
	EventFetch
)

func (k EventKind) String() string {
	switch k {
	case EventInstall:
		return "install"
	case EventActivate:
		return "activate"
	case EventFetch:
		return "fetch"
	default:
		return "unknown"
	}
}

// Result is the outcome of a handled Event.
type Result struct {
	// Response is set for fetch events that succeeded.
	Response *http.Response
	// Source reports where a fetch response came from.
	Source Source
	// Removed lists the caches deleted by an activate event.
	Removed []string
	// Err is the failure, if any.
	Err error
}

// Event is a trigger delivered to [Manager.Run].
//
// The sender keeps the Event and calls Wait to learn the outcome; the
// trigger is held open until the work it started resolves.
type Event struct {
	Kind    EventKind
	Request *http.Request

	reply chan Result
}

// InstallEvent returns an install trigger.
func InstallEvent() *Event {
	return &Event{Kind: EventInstall, reply: make(chan Result, 1)}
}

// ActivateEvent returns an activate trigger.
func ActivateEvent() *Event {
	return &Event{Kind: EventActivate, reply: make(chan Result, 1)}
}

// FetchEvent returns a fetch trigger for req.
func FetchEvent(req *http.Request) *Event {
	return &Event{Kind: EventFetch, Request: req, reply: make(chan Result, 1)}
}

// Wait blocks until the event has been handled or ctx is done.
func (e *Event) Wait(ctx context.Context) Result {
	select {
	case r := <-e.reply:
		return r
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}

func (e *Event) resolve(r Result) {
	if e.reply == nil {
		return
	}
	e.reply <- r
}

// errUnknownEvent is reported for events with an unrecognized kind.
var errUnknownEvent = errors.New("unknown event kind")

// Run handles events until ctx is done or events is closed.
//
// Install and activate events are handled one at a time, in arrival order:
// the next event is not taken until the current lifecycle work resolves.
// Fetch events are answered concurrently. Run waits for in-flight fetches
// before returning. It returns ctx.Err() on cancellation and nil when the
// channel is closed.
func (m *Manager) Run(ctx context.Context, events <-chan *Event) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev == nil {
				continue
			}
			m.logger.Debug("event", slog.String("kind", ev.Kind.String()))
			switch ev.Kind {
			case EventInstall:
				ev.resolve(Result{Err: m.Install(ctx)})
			case EventActivate:
				removed, err := m.Activate(ctx)
				ev.resolve(Result{Removed: removed, Err: err})
			case EventFetch:
				wg.Add(1)
				go func() {
					defer wg.Done()
					resp, src, err := m.Resolve(ctx, ev.Request)
					ev.resolve(Result{Response: resp, Source: src, Err: err})
				}()
			default:
				ev.resolve(Result{Err: errUnknownEvent})
			}
		}
	}
}
