// Package eventbus persists run events to the event log and fans them out
// to in-process subscribers (metrics, notifications, websocket clients).
package eventbus

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mescon/Cachearr/internal/db"
	"github.com/mescon/Cachearr/internal/domain"
	"github.com/mescon/Cachearr/internal/logger"
)

// subscriberBuffer is how many events a slow subscriber may lag behind
// before new events are dropped for it.
const subscriberBuffer = 100

// Publisher defines the interface for publishing events.
type Publisher interface {
	Publish(event domain.Event) error
	Subscribe(eventType domain.EventType, handler func(domain.Event))
}

var _ Publisher = (*EventBus)(nil)

type EventBus struct {
	db          *sql.DB
	subscribers map[domain.EventType][]chan domain.Event
	mu          sync.RWMutex
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	dropped     atomic.Int64
}

func NewEventBus(db *sql.DB) *EventBus {
	return &EventBus{
		db:          db,
		subscribers: make(map[domain.EventType][]chan domain.Event),
		stopChan:    make(chan struct{}),
	}
}

// Publish stores the event, then hands it to every subscriber of its type
// without blocking. The log write is the only part that can fail.
func (eb *EventBus) Publish(event domain.Event) error {
	logger.Debugf("EventBus: Publishing event %s (AggregateID: %s)", event.EventType, event.AggregateID)

	eventDataJSON, err := json.Marshal(event.EventData)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.EventVersion == 0 {
		event.EventVersion = 1
	}

	res, err := db.ExecWithRetry(eb.db, `
        INSERT INTO events (aggregate_type, aggregate_id, event_type, event_data, event_version, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `, event.AggregateType, event.AggregateID, string(event.EventType), string(eventDataJSON), event.EventVersion, db.FormatTime(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		event.ID = id
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[event.EventType] {
		select {
		case ch <- event:
		default:
			eb.dropped.Add(1)
			logger.Warnf("EventBus: subscriber for %s is full, dropping event", event.EventType)
		}
	}

	return nil
}

// Subscribe runs handler on its own goroutine for every event of eventType
// published after this call.
func (eb *EventBus) Subscribe(eventType domain.EventType, handler func(domain.Event)) {
	ch := make(chan domain.Event, subscriberBuffer)

	eb.mu.Lock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	eb.mu.Unlock()

	eb.wg.Add(1)
	go func() {
		defer eb.wg.Done()
		for {
			select {
			case event := <-ch:
				eb.deliver(eventType, handler, event)
			case <-eb.stopChan:
				return
			}
		}
	}()
}

// deliver keeps a panicking handler from taking its subscription down.
func (eb *EventBus) deliver(eventType domain.EventType, handler func(domain.Event), event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("EventBus: %s handler panicked: %v", eventType, r)
		}
	}()
	handler(event)
}

// Dropped returns how many deliveries were skipped because a subscriber
// buffer was full.
func (eb *EventBus) Dropped() int64 {
	return eb.dropped.Load()
}

// Shutdown stops all subscriber goroutines and waits for them to finish.
// Calling it more than once is safe.
func (eb *EventBus) Shutdown() {
	eb.stopOnce.Do(func() {
		close(eb.stopChan)
		eb.wg.Wait()
		logger.Infof("EventBus shutdown complete")
	})
}
