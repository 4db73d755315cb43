package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	pubnub "github.com/pubnub/go"

	"karaoke-live/monitoring"
	"karaoke-live/utils"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Change is one row-level mutation, delivered as a full replacement
// snapshot of the row. Consumers merge last-write-wins by (collection,
// row id, timestamp); ordering across different rows is not promised.
type Change struct {
	Collection string         `json:"collection"`
	Action     string         `json:"action"` // create, update, delete
	RowID      string         `json:"row_id"`
	InstanceID string         `json:"instance_id"`
	Owner      string         `json:"owner,omitempty"`
	Record     map[string]any `json:"record,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Subscriber receives the changes of one scope until closed.
type Subscriber struct {
	ch   chan Change
	d    *Dispatcher
	key  string
	once sync.Once
}

func (s *Subscriber) C() <-chan Change {
	return s.ch
}

// Close releases the subscription; the channel is closed and the
// dispatcher forgets the subscriber. Safe to call more than once.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.d.unsubscribe(s)
		close(s.ch)
	})
}

// Dispatcher fans row-level changes out to every subscriber of the
// affected scope. Delivery is at-least-once and best-effort: a
// subscriber that cannot keep up loses notifications (counted in
// monitoring) and is expected to rebuild from a fresh read, which
// every view in this system can do.
//
// Scopes are "instance:<id>" for participant views, "owner:<id>" for
// coordinator views and "*" for components watching everything, so
// changes never leak across instances.
type Dispatcher struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}

	buffer    int
	pn        *pubnub.PubNub
	breaker   *utils.CircuitBreaker
	republish bool
}

func NewDispatcher(buffer int, pn *pubnub.PubNub, republish bool) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		subs:      make(map[string]map[*Subscriber]struct{}),
		buffer:    buffer,
		pn:        pn,
		breaker:   utils.NewCircuitBreaker("pubnub"),
		republish: republish && pn != nil,
	}
}

func (d *Dispatcher) SubscribeInstance(instanceID string) *Subscriber {
	return d.subscribe("instance:" + instanceID)
}

func (d *Dispatcher) SubscribeOwner(owner string) *Subscriber {
	return d.subscribe("owner:" + owner)
}

// SubscribeAll receives the changes of every instance; used by
// components that maintain cross-instance state, like the registry
// snapshot cache.
func (d *Dispatcher) SubscribeAll() *Subscriber {
	return d.subscribe("*")
}

func (d *Dispatcher) subscribe(key string) *Subscriber {
	sub := &Subscriber{
		ch:  make(chan Change, d.buffer),
		d:   d,
		key: key,
	}

	d.mu.Lock()
	if d.subs[key] == nil {
		d.subs[key] = make(map[*Subscriber]struct{})
	}
	d.subs[key][sub] = struct{}{}
	d.mu.Unlock()

	monitoring.TrackSubscribers(d.count())
	return sub
}

func (d *Dispatcher) unsubscribe(sub *Subscriber) {
	d.mu.Lock()
	if set, ok := d.subs[sub.key]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(d.subs, sub.key)
		}
	}
	d.mu.Unlock()

	monitoring.TrackSubscribers(d.count())
}

func (d *Dispatcher) count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, set := range d.subs {
		n += len(set)
	}
	return n
}

// Publish delivers the change to every subscriber scoped to its
// instance, its owner and the wildcard scope, then republishes to
// PubNub for clients that cannot hold a stream open.
func (d *Dispatcher) Publish(c Change) {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}

	keys := []string{"*", "instance:" + c.InstanceID}
	if c.Owner != "" {
		keys = append(keys, "owner:"+c.Owner)
	}

	d.mu.RLock()
	for _, key := range keys {
		for sub := range d.subs[key] {
			select {
			case sub.ch <- c:
			default:
				// Slow consumer; it re-reads on reconnect.
				monitoring.TrackDroppedChange(c.Collection)
			}
		}
	}
	d.mu.RUnlock()

	if d.republish {
		go d.republishChange(c)
	}
}

func (d *Dispatcher) republishChange(c Change) {
	channel := fmt.Sprintf("instance-%s", c.InstanceID)

	err := d.breaker.Execute(func() error {
		_, _, err := d.pn.Publish().
			Channel(channel).
			Message(map[string]any{
				"type":       "change",
				"collection": c.Collection,
				"action":     c.Action,
				"row_id":     c.RowID,
				"record":     c.Record,
				"timestamp":  c.Timestamp.UnixMilli(),
			}).
			Execute()
		return err
	})
	if err != nil {
		log.Printf("pubnub republish failed for %s: %v", channel, err)
	}
}
