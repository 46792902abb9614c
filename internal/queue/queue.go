/*
 * Copyright (c) 2026, Datalyr, Inc. (https://datalyr.com).
 *
 * Datalyr, Inc. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package queue buffers outbound telemetry and guarantees at-least-once
// delivery with bounded memory. Events are batched oldest-first, retried
// with exponential backoff, and dead-lettered after the retry cap. The full
// pending sequence is persisted after every structural change so a restart
// resumes with the same outstanding events.
package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datalyr/datalyr-go/internal/storage"
	"github.com/datalyr/datalyr-go/internal/system/errors"
	"github.com/datalyr/datalyr-go/internal/system/log"
	"github.com/datalyr/datalyr-go/internal/transport"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusSending         Status = "sending"
	StatusFailedRetryable Status = "failed-retryable"
	StatusDelivered       Status = "delivered"
	StatusDead            Status = "dead"
)

// QueuedEvent is one buffered telemetry event.
type QueuedEvent struct {
	EventID       string                 `json:"event_id"`
	Payload       map[string]interface{} `json:"payload"`
	EnqueuedAt    int64                  `json:"enqueued_at"`
	RetryCount    int                    `json:"retry_count"`
	Status        Status                 `json:"status"`
	NextAttemptAt int64                  `json:"next_attempt_at,omitempty"`
}

// Options are the queue's sizing and retry knobs.
type Options struct {
	MaxQueueSize  int
	BatchSize     int
	FlushInterval time.Duration
	RetryDelay    time.Duration
	MaxRetries    int
}

// Stats is the observability snapshot returned by GetStats. Pure read, no
// side effects.
type Stats struct {
	Size           int            `json:"size"`
	ByStatus       map[Status]int `json:"by_status"`
	LastFlushAt    int64          `json:"last_flush_at"`
	TotalDelivered int64          `json:"total_delivered"`
	TotalDead      int64          `json:"total_dead"`
	TotalEvicted   int64          `json:"total_evicted"`
}

type Queue struct {
	mutex    sync.Mutex
	events   []*QueuedEvent
	store    storage.Store
	delivery transport.Delivery
	opts     Options
	logger   *log.Logger
	now      func() time.Time

	// deliverMu serializes delivery passes so timer flushes and explicit
	// flushes never run duplicate loops.
	deliverMu sync.Mutex

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	lastFlushAt    int64
	totalDelivered int64
	totalDead      int64
	totalEvicted   int64
}

func NewQueue(store storage.Store, delivery transport.Delivery, opts Options) *Queue {
	q := &Queue{
		store:    store,
		delivery: delivery,
		opts:     opts,
		logger:   log.GetLogger().With(log.String("component", "queue")),
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	q.restore()
	return q
}

// SetClock replaces the time source. Tests only.
func (q *Queue) SetClock(now func() time.Time) {
	q.now = now
}

// restore loads the persisted sequence. Events caught mid-send by a crash
// come back as pending: a previously delivered batch may be redelivered,
// never lost (at-least-once).
func (q *Queue) restore() {
	var persisted []*QueuedEvent
	found, err := storage.GetJSON(q.store, storage.KeyEventQueue, &persisted)
	if err != nil {
		q.logger.Warn("failed to restore event queue", log.Error(err))
		return
	}
	if !found {
		return
	}
	for _, ev := range persisted {
		switch ev.Status {
		case StatusDelivered, StatusDead:
			continue
		case StatusSending:
			ev.Status = StatusPending
		}
		q.events = append(q.events, ev)
	}
}

// Start launches the background flush timer. Destroy stops it; the SDK
// creates a fresh queue on re-initialization so there is never more than one
// delivery loop per process.
func (q *Queue) Start() {
	q.mutex.Lock()
	if q.started {
		q.mutex.Unlock()
		return
	}
	q.started = true
	q.mutex.Unlock()

	go func() {
		defer close(q.done)
		ticker := time.NewTicker(q.opts.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-q.stop:
				return
			case <-ticker.C:
				q.deliver(false)
			}
		}
	}()
}

// Destroy stops the flush timer. An in-flight delivery attempt is not
// aborted; it finishes and its result is applied.
func (q *Queue) Destroy() {
	q.stopOnce.Do(func() { close(q.stop) })
	q.mutex.Lock()
	started := q.started
	q.mutex.Unlock()
	if started {
		<-q.done
	}
}

// Enqueue appends a payload in pending state. It never blocks the caller
// and never fails for well-formed payloads. When the queue is full the
// oldest pending event is evicted first (drop-oldest policy).
func (q *Queue) Enqueue(payload map[string]interface{}) QueuedEvent {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if len(q.events) >= q.opts.MaxQueueSize {
		q.evictOldestLocked()
	}
	ev := &QueuedEvent{
		EventID:    uuid.NewString(),
		Payload:    payload,
		EnqueuedAt: q.now().UnixMilli(),
		Status:     StatusPending,
	}
	q.events = append(q.events, ev)
	q.persistLocked()
	return *ev
}

func (q *Queue) evictOldestLocked() {
	for i, ev := range q.events {
		if ev.Status == StatusPending || ev.Status == StatusFailedRetryable {
			q.logger.Warn("queue full, evicting oldest event",
				log.String("eventId", ev.EventID))
			q.events = append(q.events[:i], q.events[i+1:]...)
			q.totalEvicted++
			return
		}
	}
	// Everything is mid-send; drop the head to honor the bound.
	if len(q.events) > 0 {
		q.totalEvicted++
		q.events = q.events[1:]
	}
}

// Flush forces an immediate delivery attempt of all pending and retryable
// events, regardless of the flush timer and of per-event backoff.
func (q *Queue) Flush() {
	q.deliver(true)
}

// deliver drains due events in batches until none are left. force ignores
// per-event backoff deadlines.
func (q *Queue) deliver(force bool) {
	q.deliverMu.Lock()
	defer q.deliverMu.Unlock()

	q.mutex.Lock()
	q.lastFlushAt = q.now().UnixMilli()
	q.mutex.Unlock()

	for {
		batch := q.takeBatch(force)
		if len(batch) == 0 {
			return
		}

		payloads := make([]map[string]interface{}, len(batch))
		for i, ev := range batch {
			payloads[i] = ev.Payload
		}
		outcome := q.delivery.Send(payloads)
		q.applyOutcome(batch, outcome)
		if outcome != transport.OutcomeSuccess {
			// Failed events wait out their backoff; trying the next batch
			// now would reorder ahead of them anyway (relaxed cross-batch
			// ordering), but a failing endpoint makes it pointless.
			return
		}
	}
}

// takeBatch marks up to BatchSize due events as sending and returns them in
// enqueue order.
func (q *Queue) takeBatch(force bool) []*QueuedEvent {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	now := q.now().UnixMilli()
	var batch []*QueuedEvent
	for _, ev := range q.events {
		if len(batch) >= q.opts.BatchSize {
			break
		}
		if ev.Status != StatusPending && ev.Status != StatusFailedRetryable {
			continue
		}
		if !force && ev.NextAttemptAt > now {
			continue
		}
		ev.Status = StatusSending
		batch = append(batch, ev)
	}
	return batch
}

func (q *Queue) applyOutcome(batch []*QueuedEvent, outcome transport.Outcome) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if outcome == transport.OutcomeSuccess {
		delivered := make(map[string]bool, len(batch))
		for _, ev := range batch {
			ev.Status = StatusDelivered
			delivered[ev.EventID] = true
		}
		kept := q.events[:0]
		for _, ev := range q.events {
			if !delivered[ev.EventID] {
				kept = append(kept, ev)
			}
		}
		q.events = kept
		q.totalDelivered += int64(len(batch))
		q.persistLocked()
		return
	}

	// Fatal outcomes are retried like retryable ones up to the cap; the
	// distinction is logged for operators but does not change policy yet.
	now := q.now().UnixMilli()
	var dead []string
	for _, ev := range batch {
		ev.RetryCount++
		if ev.RetryCount > q.opts.MaxRetries {
			ev.Status = StatusDead
			dead = append(dead, ev.EventID)
			continue
		}
		ev.Status = StatusFailedRetryable
		ev.NextAttemptAt = now + q.backoffDelay(ev.RetryCount).Milliseconds()
	}
	if len(dead) > 0 {
		deadSet := make(map[string]bool, len(dead))
		for _, id := range dead {
			deadSet[id] = true
		}
		kept := q.events[:0]
		for _, ev := range q.events {
			if !deadSet[ev.EventID] {
				kept = append(kept, ev)
			}
		}
		q.events = kept
		q.totalDead += int64(len(dead))
		for _, id := range dead {
			q.logger.Warn("event dead-lettered after exhausting retries",
				log.String("eventId", id), log.Int("maxRetries", q.opts.MaxRetries),
				log.Error(errors.NewServerError(errors.ErrEventDeadLettered, nil)))
		}
	}
	q.persistLocked()
}

// maxBackoffShift caps the backoff exponent; a valid config may carry an
// arbitrarily large retry cap and the doubling must not overflow.
const maxBackoffShift = 16

// backoffDelay computes the delay before the next attempt after retryCount
// failures: retryDelay * 2^retryCount, exponent clamped.
func (q *Queue) backoffDelay(retryCount int) time.Duration {
	if retryCount > maxBackoffShift {
		retryCount = maxBackoffShift
	}
	return q.opts.RetryDelay * time.Duration(1<<uint(retryCount))
}

// GetStats returns the queue's observability snapshot.
func (q *Queue) GetStats() Stats {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	byStatus := make(map[Status]int)
	for _, ev := range q.events {
		byStatus[ev.Status]++
	}
	return Stats{
		Size:           len(q.events),
		ByStatus:       byStatus,
		LastFlushAt:    q.lastFlushAt,
		TotalDelivered: q.totalDelivered,
		TotalDead:      q.totalDead,
		TotalEvicted:   q.totalEvicted,
	}
}

// Snapshot returns copies of the buffered events in enqueue order. Tests
// and diagnostics only.
func (q *Queue) Snapshot() []QueuedEvent {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	out := make([]QueuedEvent, len(q.events))
	for i, ev := range q.events {
		out[i] = *ev
	}
	return out
}

func (q *Queue) persistLocked() {
	if err := storage.SetJSON(q.store, storage.KeyEventQueue, q.events); err != nil {
		q.logger.Warn("failed to persist event queue", log.Error(err))
	}
}
