package jobs

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"fastp-batch/internal/domain"
	"fastp-batch/internal/notify"
)

// EventType classifies messages emitted during job execution.
type EventType string

const (
	EventTypeStatus       EventType = "status"
	EventTypeNotification EventType = "notification"
	EventTypeLog          EventType = "log"
	EventTypeResult       EventType = "result"
	EventTypeError        EventType = "error"
)

// Event is a sequenced payload consumed by subscribers.
type Event struct {
	Seq       int64            `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	JobID     string           `json:"jobId"`
	Sample    string           `json:"sample,omitempty"`
	Type      EventType        `json:"type"`
	Status    domain.JobStatus `json:"status,omitempty"`
	Level     notify.Level     `json:"level,omitempty"`
	Title     string           `json:"title,omitempty"`
	Message   string           `json:"message,omitempty"`
	Command   string           `json:"command,omitempty"`
	Args      []string         `json:"args,omitempty"`
	ExitCode  int              `json:"exitCode,omitempty"`
	OutputURI string           `json:"outputUri,omitempty"`
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 2000
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, min(maxEvents, 256)),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		drop := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[drop:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}
	return lo.Filter(b.events, func(event Event, _ int) bool {
		return event.Seq > seq
	})
}

// Notifier records one job's notifications on the bus.
func (b *EventBus) Notifier(jobID, sample string) notify.Notifier {
	return notify.Func(func(level notify.Level, msg notify.Message) {
		b.Publish(Event{
			JobID:   jobID,
			Sample:  sample,
			Type:    EventTypeNotification,
			Level:   level,
			Title:   msg.Title,
			Message: msg.Body,
		})
	})
}
