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

// Package session owns the session lifecycle: active/backgrounded/ended
// transitions, screen and event counters, and timeout-driven rollover.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datalyr/datalyr-go/internal/storage"
	"github.com/datalyr/datalyr-go/internal/system/log"
)

type State string

const (
	StateActive       State = "active"
	StateBackgrounded State = "backgrounded"
	StateEnded        State = "ended"
)

// TouchKind distinguishes what activity touched the session.
type TouchKind int

const (
	TouchEvent TouchKind = iota
	TouchScreenView
)

type Session struct {
	SessionID        string `json:"session_id"`
	StartTime        int64  `json:"start_time"`
	LastActivityTime int64  `json:"last_activity_time"`
	ScreenViews      int    `json:"screen_views"`
	Events           int    `json:"events"`
	State            State  `json:"state"`
}

// EndSummary is the payload of a session_end emission.
type EndSummary struct {
	SessionID   string
	DurationMs  int64
	ScreenViews int
	Events      int
}

// Tracker drives the session state machine. OnStart and OnEnd are installed
// by the orchestrator before first use; they run synchronously under the
// tracker's lock-free single caller contract, so they must not call back in.
type Tracker struct {
	mutex   sync.Mutex
	store   storage.Store
	timeout time.Duration
	current *Session
	logger  *log.Logger
	now     func() time.Time

	OnStart func(s Session)
	OnEnd   func(s EndSummary)
}

func NewTracker(store storage.Store, timeout time.Duration) *Tracker {
	t := &Tracker{
		store:   store,
		timeout: timeout,
		logger:  log.GetLogger().With(log.String("component", "session")),
		now:     time.Now,
	}
	t.restore()
	return t
}

// SetClock replaces the time source. Tests only.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

func (t *Tracker) restore() {
	var persisted Session
	found, err := storage.GetJSON(t.store, storage.KeySession, &persisted)
	if err != nil {
		t.logger.Warn("failed to restore session, starting fresh", log.Error(err))
		return
	}
	if found && persisted.SessionID != "" && persisted.State != StateEnded {
		t.current = &persisted
	}
}

// Touch ensures an active session exists, rolling over an expired one, and
// bumps the counter for kind. It returns a copy of the session the activity
// belongs to.
func (t *Tracker) Touch(kind TouchKind) Session {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	now := t.now()
	if t.current == nil || t.expiredLocked(now) {
		t.rolloverLocked(now)
	}

	t.current.State = StateActive
	t.current.LastActivityTime = now.UnixMilli()
	switch kind {
	case TouchScreenView:
		t.current.ScreenViews++
		t.current.Events++
	default:
		t.current.Events++
	}
	t.persistLocked()
	return *t.current
}

// HandleAppBackground marks the session backgrounded. The last activity
// timestamp is retained so foregrounding can decide between resume and
// rollover.
func (t *Tracker) HandleAppBackground() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.current == nil {
		return
	}
	t.current.State = StateBackgrounded
	t.persistLocked()
}

// HandleAppForeground resumes the current session, or closes it and starts
// a new one when the background stay outlived the timeout.
func (t *Tracker) HandleAppForeground() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.current == nil {
		t.rolloverLocked(t.now())
		t.persistLocked()
		return
	}

	now := t.now()
	if t.expiredLocked(now) {
		t.rolloverLocked(now)
	} else {
		t.current.State = StateActive
		t.current.LastActivityTime = now.UnixMilli()
	}
	t.persistLocked()
}

// ForceEndSession closes the current session immediately regardless of
// timeout.
func (t *Tracker) ForceEndSession() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.current == nil {
		return
	}
	t.endLocked()
	t.current = nil
	if err := t.store.RemoveItem(storage.KeySession); err != nil {
		t.logger.Warn("failed to clear persisted session", log.Error(err))
	}
}

// Current returns a copy of the active session, or false when none exists.
func (t *Tracker) Current() (Session, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.current == nil {
		return Session{}, false
	}
	return *t.current, true
}

func (t *Tracker) expiredLocked(now time.Time) bool {
	elapsed := now.UnixMilli() - t.current.LastActivityTime
	return elapsed >= t.timeout.Milliseconds()
}

// rolloverLocked ends the current session if any and starts a fresh one.
func (t *Tracker) rolloverLocked(now time.Time) {
	if t.current != nil {
		t.endLocked()
	}
	t.current = &Session{
		SessionID:        uuid.NewString(),
		StartTime:        now.UnixMilli(),
		LastActivityTime: now.UnixMilli(),
		State:            StateActive,
	}
	t.logger.Debug("session started", log.String("sessionId", t.current.SessionID))
	if t.OnStart != nil {
		t.OnStart(*t.current)
	}
}

func (t *Tracker) endLocked() {
	ended := *t.current
	ended.State = StateEnded
	duration := ended.LastActivityTime - ended.StartTime
	if duration < 0 {
		duration = 0
	}
	t.logger.Debug("session ended",
		log.String("sessionId", ended.SessionID),
		log.Int64("durationMs", duration))
	if t.OnEnd != nil {
		t.OnEnd(EndSummary{
			SessionID:   ended.SessionID,
			DurationMs:  duration,
			ScreenViews: ended.ScreenViews,
			Events:      ended.Events,
		})
	}
}

func (t *Tracker) persistLocked() {
	if err := storage.SetJSON(t.store, storage.KeySession, t.current); err != nil {
		t.logger.Warn("failed to persist session", log.Error(err))
	}
}
