package server

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

const maxQueueLen = 128

// eventQueue is the serialized per-FSM event funnel. Producers are
// the timers, the connector, the message receiver and the session
// supervisor; the single consumer is the FSM dispatch loop. Stop
// events flush the queue on enqueue so they are handled next.
type eventQueue struct {
	mu     sync.Mutex
	events []*event
	serial uint16
	notify chan struct{}
	logger *log.Entry
}

func newEventQueue(logger *log.Entry) *eventQueue {
	return &eventQueue{
		events: make([]*event, 0, maxQueueLen),
		notify: make(chan struct{}, 1),
		logger: logger,
	}
}

// enqueue appends ev, stamping it with the next serial number. The
// serial wraps from 65535 back to 1.
func (q *eventQueue) enqueue(ev *event) {
	q.mu.Lock()

	if q.serial == 65535 {
		q.serial = 0
	}
	q.serial++
	ev.serial = q.serial

	if isStopEvent(ev.id) {
		q.events = q.events[:0]
	}

	if len(q.events) >= maxQueueLen {
		q.mu.Unlock()
		q.logger.WithField("event", ev.name()).Warning("Event queue full, dropping event")
		return
	}

	q.events = append(q.events, ev)
	q.mu.Unlock()

	q.logger.Debugf("[ENQ] %s [#%d]", ev.name(), ev.serial)

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// next blocks until an event is available or dying is closed. The
// second return value is false when the queue consumer should exit.
func (q *eventQueue) next(dying <-chan struct{}) (*event, bool) {
	for {
		q.mu.Lock()
		if len(q.events) > 0 {
			ev := q.events[0]
			q.events = q.events[1:]
			q.mu.Unlock()
			q.logger.Debugf("[DEQ] %s [#%d]", ev.name(), ev.serial)
			return ev, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-dying:
			// A stop event may have raced with the kill; deliver
			// whatever is still queued before exiting.
			if q.len() == 0 {
				return nil, false
			}
		}
	}
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
