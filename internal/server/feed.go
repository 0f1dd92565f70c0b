package server

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/lotas/gestured/internal/applog"
)

// Feed event kinds. CONNECTION through COMMAND mirror what the bridge
// routes; SNAPSHOT is the primer a new subscriber receives first.
const (
	EventSnapshot   = "SNAPSHOT"
	EventConnection = "CONNECTION"
	EventGesture    = "GESTURE"
	EventStatus     = "STATUS"
	EventConfig     = "CONFIG"
	EventMappings   = "MAPPINGS"
	EventEnabled    = "ENABLED"
	EventRecording  = "RECORDING"
	EventExecution  = "EXECUTION"
	EventCommand    = "COMMAND"
	EventWatchdog   = "WATCHDOG"
)

// Event is one frame on the consumer feed.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const subscriberBuffer = 64

// Feed fans daemon events out to WebSocket subscribers. Publishing never
// blocks: a subscriber that cannot drain its buffer loses frames instead of
// stalling the router.
type Feed struct {
	mu   sync.Mutex
	subs map[string]*subscriber
}

type subscriber struct {
	id string
	ch chan []byte
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: map[string]*subscriber{}}
}

// Publish broadcasts one event to every subscriber.
func (f *Feed) Publish(kind string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		applog.Error("feed.marshal", err, "type", kind)
		return
	}
	frame, err := json.Marshal(Event{Type: kind, Data: payload})
	if err != nil {
		applog.Error("feed.marshal", err, "type", kind)
		return
	}

	f.mu.Lock()
	for _, sub := range f.subs {
		select {
		case sub.ch <- frame:
		default:
		}
	}
	f.mu.Unlock()
}

// Subscribers reports the current subscriber count.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) subscribe() *subscriber {
	sub := &subscriber{id: uuid.NewString(), ch: make(chan []byte, subscriberBuffer)}
	f.mu.Lock()
	f.subs[sub.id] = sub
	f.mu.Unlock()
	return sub
}

func (f *Feed) unsubscribe(id string) {
	f.mu.Lock()
	delete(f.subs, id)
	f.mu.Unlock()
}

// push queues frames onto one subscriber only, used to prime a fresh
// subscription before it joins the broadcast stream.
func (f *Feed) push(sub *subscriber, kind string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		applog.Error("feed.marshal", err, "type", kind)
		return
	}
	frame, err := json.Marshal(Event{Type: kind, Data: payload})
	if err != nil {
		applog.Error("feed.marshal", err, "type", kind)
		return
	}
	select {
	case sub.ch <- frame:
	default:
	}
}
