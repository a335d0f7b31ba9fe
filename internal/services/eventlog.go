package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"echoreach/internal/models"
)

// EventStore is any backend that accepts structured decision events.
type EventStore interface {
	WriteEvent(ctx context.Context, event models.Event) error
}

// EventLog fans decision events out to every configured store on a
// background goroutine. Record never blocks: when the buffer is full the
// event is dropped and counted, because audit logging must not stall the
// decision path.
type EventLog struct {
	ch      chan models.Event
	stores  []EventStore
	wg      sync.WaitGroup
	mu      sync.Mutex
	dropped int
	closed  bool
}

// NewEventLog creates a log with the given buffer and starts its writer.
func NewEventLog(buffer int, stores ...EventStore) *EventLog {
	if buffer <= 0 {
		buffer = 256
	}
	l := &EventLog{
		ch:     make(chan models.Event, buffer),
		stores: stores,
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// Record enqueues an event, stamping id and time when absent.
func (l *EventLog) Record(event models.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	select {
	case l.ch <- event:
	default:
		l.mu.Lock()
		l.dropped++
		dropped := l.dropped
		l.mu.Unlock()
		log.Printf("⚠️  [EVENT-LOG] Buffer full, dropped event for post %s (%d dropped total)",
			event.PostID, dropped)
	}
}

// Dropped returns how many events were discarded due to a full buffer.
func (l *EventLog) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close drains pending events and stops the writer.
func (l *EventLog) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	close(l.ch)
	l.wg.Wait()
}

func (l *EventLog) run() {
	defer l.wg.Done()
	for event := range l.ch {
		for _, store := range l.stores {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := store.WriteEvent(ctx, event); err != nil {
				log.Printf("⚠️  [EVENT-LOG] Store write failed for post %s: %v", event.PostID, err)
			}
			cancel()
		}
	}
}
