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

// Package datalyr is the client-side instrumentation engine: it captures
// marketing-attribution signals, turns application events into a durable
// telemetry stream, and compresses that stream into ad-network conversion
// values. Analytics failures never crash or visibly break the host app:
// every public method swallows internal errors and logs them.
package datalyr

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datalyr/datalyr-go/config"
	"github.com/datalyr/datalyr-go/internal/attribution"
	"github.com/datalyr/datalyr-go/internal/bridge"
	"github.com/datalyr/datalyr-go/internal/journey"
	"github.com/datalyr/datalyr-go/internal/queue"
	"github.com/datalyr/datalyr-go/internal/session"
	"github.com/datalyr/datalyr-go/internal/storage"
	"github.com/datalyr/datalyr-go/internal/system/errors"
	"github.com/datalyr/datalyr-go/internal/system/log"
	"github.com/datalyr/datalyr-go/internal/transport"
)

// Reserved event names emitted by the auto-events orchestrator.
const (
	EventInstall      = "install"
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventScreenView   = "screen_view"
)

// Collaborators are the injected external dependencies. Zero values get
// sensible defaults: file or memory storage per config, HTTP delivery to the
// configured endpoint, and noop platform bridges.
type Collaborators struct {
	Store              storage.Store
	Delivery           transport.Delivery
	AttributionSources []attribution.SourceBinding
	WebFetcher         attribution.WebFetcher
	ConversionUpdater  bridge.ConversionUpdater
}

type userIdentity struct {
	UserID     string                 `json:"user_id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// SDK is the one top-level instance owning every service. All state is
// constructor-injected; there are no package-level singletons to reach
// around it.
type SDK struct {
	cfg      *config.Config
	store    storage.Store
	resolver *attribution.Resolver
	sessions *session.Tracker
	journeys *journey.Recorder
	events   *queue.Queue
	encoder  *conversionChannel
	logger   *log.Logger
	now      func() time.Time

	mutex       sync.Mutex
	visitorID   string
	user        userIdentity
	initialized bool
	destroyed   bool
}

// New builds an SDK from config and collaborators. The only error it can
// return is an invalid configuration; everything after construction is
// fail-soft.
func New(cfg *config.Config, collab Collaborators) (*SDK, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewClientError(errors.ErrorMessage{
			Code:        errors.ErrInvalidConfig.Code,
			Message:     errors.ErrInvalidConfig.Message,
			Description: err.Error(),
		})
	}
	if err := log.Init(cfg.Log.Level); err != nil {
		_ = log.Init("INFO")
	}
	logger := log.GetLogger().With(log.String("component", "sdk"))

	store := collab.Store
	if store == nil {
		if cfg.StorageDir != "" {
			fileStore, err := storage.NewFileStore(cfg.StorageDir)
			if err != nil {
				logger.Warn("file storage unavailable, using memory store", log.Error(err))
				store = storage.NewMemoryStore()
			} else {
				store = fileStore
			}
		} else {
			store = storage.NewMemoryStore()
		}
	}

	delivery := collab.Delivery
	if delivery == nil {
		delivery = transport.NewHTTPDelivery(cfg.Endpoint, cfg.WorkspaceID, cfg.APIKey, cfg.SigningSecret)
	}

	updater := collab.ConversionUpdater
	if updater == nil {
		updater = &bridge.NoopConversionUpdater{}
	}

	sdk := &SDK{
		cfg:      cfg,
		store:    store,
		resolver: attribution.NewResolver(store, collab.AttributionSources, collab.WebFetcher, cfg.Attribution.WebFetchTTL.Std()),
		sessions: session.NewTracker(store, cfg.Session.Timeout.Std()),
		journeys: journey.NewRecorder(store, cfg.Attribution.JourneyCap),
		events: queue.NewQueue(store, delivery, queue.Options{
			MaxQueueSize:  cfg.Queue.MaxQueueSize,
			BatchSize:     cfg.Queue.BatchSize,
			FlushInterval: cfg.Queue.FlushInterval.Std(),
			RetryDelay:    cfg.Queue.RetryDelay.Std(),
			MaxRetries:    cfg.Queue.MaxRetries,
		}),
		encoder: newConversionChannel(cfg.Conversion.Template, updater),
		logger:  logger,
		now:     time.Now,
	}
	sdk.sessions.OnStart = sdk.onSessionStart
	sdk.sessions.OnEnd = sdk.onSessionEnd
	return sdk, nil
}

// Initialize resolves attribution, restores identity, starts the delivery
// loop and emits the install event on first run. Idempotent.
func (s *SDK) Initialize() {
	s.mutex.Lock()
	if s.initialized || s.destroyed {
		s.mutex.Unlock()
		return
	}
	s.initialized = true
	s.mutex.Unlock()

	s.resolver.Initialize()
	s.restoreIdentity()
	s.events.Start()

	if s.resolver.IsInstall() {
		record := s.resolver.TrackInstall()
		payload := s.buildPayload(EventInstall, map[string]interface{}{}, "")
		payload["attribution"] = attributionPayload(record)
		s.events.Enqueue(payload)
		s.logger.Info("install tracked", log.String("clickIdType", record.ClickIDType()))
	}
}

// Track records a custom event. Invalid events are rejected locally, logged
// and never enqueued.
func (s *SDK) Track(event string, props Properties) {
	if !s.running() {
		return
	}
	if err := validateEventName(event); err != nil {
		s.logger.Warn("rejecting invalid event", log.String("event", event), log.Error(err))
		return
	}

	sess := s.sessions.Touch(session.TouchEvent)
	payload := s.buildPayload(event, sanitizeProperties(props), sess.SessionID)
	s.events.Enqueue(payload)
	s.encoder.post(event, payload["properties"].(map[string]interface{}))
}

// TrackScreenView records a screen view, which also counts toward the
// session's screen counter.
func (s *SDK) TrackScreenView(screenName string, props Properties) {
	if !s.running() {
		return
	}
	if err := validateEventName(screenName); err != nil {
		s.logger.Warn("rejecting invalid screen name", log.Error(err))
		return
	}

	sess := s.sessions.Touch(session.TouchScreenView)
	merged := sanitizeProperties(props)
	merged["screen_name"] = screenName
	payload := s.buildPayload(EventScreenView, merged, sess.SessionID)
	s.events.Enqueue(payload)
	s.encoder.post(EventScreenView, merged)
}

// Identify attaches a user id and traits to subsequent events.
func (s *SDK) Identify(userID string, props Properties) {
	if !s.running() || userID == "" {
		return
	}

	s.mutex.Lock()
	s.user = userIdentity{UserID: userID, Properties: sanitizeProperties(props)}
	if err := storage.SetJSON(s.store, storage.KeyUserIdentity, &s.user); err != nil {
		s.logger.Warn("failed to persist user identity", log.Error(err))
	}
	s.mutex.Unlock()
}

// Reset clears the user identity and issues a fresh visitor id. Attribution
// and journey state describe the install, not the user, and survive.
func (s *SDK) Reset() {
	if !s.running() {
		return
	}

	s.mutex.Lock()
	s.user = userIdentity{}
	s.visitorID = uuid.NewString()
	if err := s.store.RemoveItem(storage.KeyUserIdentity); err != nil {
		s.logger.Warn("failed to clear user identity", log.Error(err))
	}
	if err := storage.SetJSON(s.store, storage.KeyVisitorID, s.visitorID); err != nil {
		s.logger.Warn("failed to persist visitor id", log.Error(err))
	}
	s.mutex.Unlock()

	s.resolver.ClearWebCache()
}

// Flush forces immediate delivery of everything queued.
func (s *SDK) Flush() {
	if !s.running() {
		return
	}
	s.events.Flush()
}

// HandleDeepLink feeds a deep link (including deferred ones) into the
// attribution resolver.
func (s *SDK) HandleDeepLink(rawURL string) {
	if !s.running() {
		return
	}
	s.resolver.HandleDeepLink(rawURL)
}

// SetAttributionData is the programmatic attribution override.
func (s *SDK) SetAttributionData(params map[string]string) {
	if !s.running() {
		return
	}
	s.resolver.SetAttributionData(params)
}

// MergeWebAttribution merges web-captured attribution for a verified email.
func (s *SDK) MergeWebAttribution(email string) {
	if !s.running() {
		return
	}
	s.resolver.MergeWebAttribution(email)
}

// GetAttributionSummary returns the read-only attribution projection.
func (s *SDK) GetAttributionSummary() attribution.Summary {
	return s.resolver.GetAttributionSummary()
}

// GetJourneySummary returns first-touch, last-touch and touchpoint count.
func (s *SDK) GetJourneySummary() journey.Summary {
	return s.journeys.GetJourneySummary()
}

// GetQueueStats returns the delivery queue's observability snapshot.
func (s *SDK) GetQueueStats() queue.Stats {
	return s.events.GetStats()
}

// HandleAppBackground flushes the queue and backgrounds the session.
func (s *SDK) HandleAppBackground() {
	if !s.running() {
		return
	}
	s.events.Flush()
	s.sessions.HandleAppBackground()
}

// HandleAppForeground resumes or rolls over the session.
func (s *SDK) HandleAppForeground() {
	if !s.running() {
		return
	}
	s.sessions.HandleAppForeground()
}

// ForceEndSession closes the current session immediately.
func (s *SDK) ForceEndSession() {
	if !s.running() {
		return
	}
	s.sessions.ForceEndSession()
}

// Destroy stops the background timers. An in-flight delivery is not
// aborted. The instance cannot be reused afterwards; re-initialization
// means constructing a new SDK, which replaces all timers.
func (s *SDK) Destroy() {
	s.mutex.Lock()
	if s.destroyed {
		s.mutex.Unlock()
		return
	}
	s.destroyed = true
	initialized := s.initialized
	s.mutex.Unlock()

	if initialized {
		s.events.Destroy()
	}
}

func (s *SDK) running() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.initialized && !s.destroyed
}

// onSessionStart enqueues the session_start auto event and appends a
// journey touchpoint when attribution signals exist.
func (s *SDK) onSessionStart(sess session.Session) {
	record := s.resolver.Current()
	payload := s.buildPayload(EventSessionStart, map[string]interface{}{}, sess.SessionID)
	payload["attribution"] = attributionPayload(record)
	s.events.Enqueue(payload)

	if record.HasSignals() {
		s.journeys.Record(journey.Touchpoint{
			Timestamp:      sess.StartTime,
			SessionID:      sess.SessionID,
			Source:         string(record.Source),
			CampaignSource: record.CampaignSource,
			CampaignMedium: record.CampaignMedium,
			CampaignName:   record.CampaignName,
			ClickIDType:    record.ClickIDType(),
			Lyr:            record.LyrTag,
		})
	}
}

// onSessionEnd enqueues the session_end auto event with the session's
// duration and counters.
func (s *SDK) onSessionEnd(summary session.EndSummary) {
	payload := s.buildPayload(EventSessionEnd, map[string]interface{}{
		"duration_ms":  summary.DurationMs,
		"screen_views": summary.ScreenViews,
		"events":       summary.Events,
	}, summary.SessionID)
	s.events.Enqueue(payload)
}

// buildPayload assembles the network-ready event payload: name, timestamp,
// identifiers, properties and the attribution snapshot.
func (s *SDK) buildPayload(event string, props map[string]interface{}, sessionID string) map[string]interface{} {
	s.mutex.Lock()
	visitorID := s.visitorID
	user := s.user
	s.mutex.Unlock()

	record := s.resolver.Current()
	payload := map[string]interface{}{
		"event_name": event,
		"timestamp":  s.now().UnixMilli(),
		"visitor_id": visitorID,
		"properties": props,
	}
	if sessionID != "" {
		payload["session_id"] = sessionID
	}
	if user.UserID != "" {
		payload["user_id"] = user.UserID
		if len(user.Properties) > 0 {
			payload["user_properties"] = user.Properties
		}
	}
	if record.HasSignals() {
		payload["attribution"] = attributionPayload(record)
	}
	return payload
}

func attributionPayload(record attribution.Record) map[string]interface{} {
	out := map[string]interface{}{
		"source":        string(record.Source),
		"click_id_type": record.ClickIDType(),
	}
	set := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	set("campaign_source", record.CampaignSource)
	set("campaign_medium", record.CampaignMedium)
	set("campaign_name", record.CampaignName)
	set("lyr_tag", record.LyrTag)
	set("fbclid", record.Fbclid)
	set("ttclid", record.Ttclid)
	set("gclid", record.Gclid)
	set("gbraid", record.Gbraid)
	set("wbraid", record.Wbraid)
	set("campaign_id", record.CampaignID)
	set("adset_id", record.AdsetID)
	set("ad_id", record.AdID)
	set("creative_id", record.CreativeID)
	set("placement_id", record.PlacementID)
	if record.InstallTime != 0 {
		out["install_time"] = record.InstallTime
	}
	if record.IsInstall {
		out["is_install"] = true
	}
	return out
}

func (s *SDK) restoreIdentity() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var visitorID string
	found, err := storage.GetJSON(s.store, storage.KeyVisitorID, &visitorID)
	if err != nil {
		s.logger.Warn("failed to restore visitor id", log.Error(err))
	}
	if !found || visitorID == "" {
		visitorID = uuid.NewString()
		if err := storage.SetJSON(s.store, storage.KeyVisitorID, visitorID); err != nil {
			s.logger.Warn("failed to persist visitor id", log.Error(err))
		}
	}
	s.visitorID = visitorID

	var user userIdentity
	if _, err := storage.GetJSON(s.store, storage.KeyUserIdentity, &user); err != nil {
		s.logger.Warn("failed to restore user identity", log.Error(err))
	}
	s.user = user
}
