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

// Package attribution deterministically merges attribution signals arriving
// from multiple asynchronous sources over the app's lifetime. Source
// precedence for conflicting single-valued fields: programmatic override >
// freshest deep link > install referrer > search ads > persisted value.
// Every parse or fetch failure degrades to "no attribution from that
// source"; nothing here ever fails SDK initialization.
package attribution

import (
	"sync"
	"time"

	"github.com/datalyr/datalyr-go/internal/bridge"
	"github.com/datalyr/datalyr-go/internal/storage"
	"github.com/datalyr/datalyr-go/internal/system/cache"
	"github.com/datalyr/datalyr-go/internal/system/errors"
	"github.com/datalyr/datalyr-go/internal/system/log"
)

// WebFetcher retrieves a previously captured web-session attribution record
// for a verified email. External collaborator; calls are best-effort.
type WebFetcher interface {
	FetchWebAttribution(email string) (*Record, error)
}

// SourceBinding couples a platform bridge with the attribution source
// category its parameters belong to. Meta and TikTok bridges deliver
// deferred deep-link parameters; the Play bridge delivers install referrer
// data; the Apple bridge delivers search-ads attribution.
type SourceBinding struct {
	Bridge bridge.AttributionSource
	Kind   Source
}

type Resolver struct {
	mutex      sync.Mutex
	store      storage.Store
	bindings   []SourceBinding
	webFetcher WebFetcher
	webCache   *cache.Cache
	logger     *log.Logger
	now        func() time.Time

	record       Record
	hadPersisted bool
}

func NewResolver(store storage.Store, bindings []SourceBinding, webFetcher WebFetcher, webFetchTTL time.Duration) *Resolver {
	return &Resolver{
		store:      store,
		bindings:   bindings,
		webFetcher: webFetcher,
		webCache:   cache.NewCache(webFetchTTL),
		logger:     log.GetLogger().With(log.String("component", "attribution")),
		now:        time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (r *Resolver) SetClock(now func() time.Time) {
	r.now = now
}

// Initialize loads the persisted record and enriches it from every available
// collaborator, applying source precedence field by field. Lower-precedence
// sources are applied first so higher ones get the last word.
func (r *Resolver) Initialize() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	found, err := storage.GetJSON(r.store, storage.KeyAttribution, &r.record)
	if err != nil {
		r.logger.Warn("failed to read persisted attribution", log.Error(err))
	}
	r.hadPersisted = found
	if r.record.Source == "" {
		r.record.Source = SourceNone
	}

	fetched := r.fetchFromBridges()
	changed := false
	for _, kind := range []Source{SourceSearchAds, SourceInstallReferrer, SourceDeepLink} {
		candidate := fetched[kind]
		if candidate == nil || !candidate.HasSignals() {
			continue
		}
		if r.record.overwriteFrom(candidate) {
			r.record.Source = kind
			changed = true
		}
	}
	if changed || !found {
		r.persistLocked()
	}
}

func (r *Resolver) fetchFromBridges() map[Source]*Record {
	fetched := make(map[Source]*Record)
	for _, binding := range r.bindings {
		b := binding.Bridge
		if b == nil {
			continue
		}
		if err := b.Initialize(); err != nil {
			r.logger.Debug("bridge initialization failed",
				log.String("bridge", b.Name()), log.Error(err))
			continue
		}
		if !b.IsAvailable() {
			continue
		}
		result := b.FetchAttribution()
		switch result.Status {
		case bridge.StatusOk:
			candidate := RecordFromParams(result.Params, binding.Kind)
			if !candidate.HasSignals() {
				continue
			}
			// Several bridges can feed one category; first one keeps its
			// values and later ones only fill gaps.
			if existing := fetched[binding.Kind]; existing != nil {
				existing.fillFrom(candidate)
			} else {
				fetched[binding.Kind] = candidate
			}
		case bridge.StatusFailed:
			r.logger.Debug("bridge fetch failed",
				log.String("bridge", b.Name()),
				log.Error(errors.NewServerError(errors.ErrWhileResolvingAttribution, result.Err)))
		}
	}
	return fetched
}

// HandleDeepLink parses a deep link arriving at any point of the app's
// lifetime (including deferred links) and applies it at deep-link
// precedence. The returned copy is nil when the link carried no recognized
// signals or could not be parsed.
func (r *Resolver) HandleDeepLink(rawURL string) *Record {
	parsed, err := ParseDeepLink(rawURL)
	if err != nil {
		r.logger.Warn("ignoring unparseable deep link", log.Error(err))
		return nil
	}
	if !parsed.HasSignals() {
		return nil
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.record.overwriteFrom(parsed)
	r.record.Source = SourceDeepLink
	r.persistLocked()
	out := r.record
	return &out
}

// SetAttributionData is the programmatic override, the highest-precedence
// source. Provided fields overwrite; absent fields are untouched. The record
// is relabeled as manually sourced so summaries never report a deep link
// that did not happen.
func (r *Resolver) SetAttributionData(params map[string]string) {
	override := RecordFromParams(params, SourceNone)
	if !override.HasSignals() {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.record.overwriteFrom(override) {
		r.record.Source = SourceManual
	}
	r.persistLocked()
}

// IsInstall reports whether this is the first run on this device: no
// persisted attribution record existed when the resolver initialized.
func (r *Resolver) IsInstall() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return !r.hadPersisted
}

// TrackInstall marks the install exactly once and returns the merged record
// for inclusion in the install event. Subsequent calls without a storage
// reset return the original install time.
func (r *Resolver) TrackInstall() Record {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.record.InstallTime == 0 {
		r.record.InstallTime = r.now().UnixMilli()
		r.record.IsInstall = true
		r.persistLocked()
	}
	return r.record
}

// MergeWebAttribution merges the web-session record captured for a verified
// email into the mobile record. The merge is additive: mobile-captured
// values win, web values only fill gaps. Fetches are memoized per email.
func (r *Resolver) MergeWebAttribution(email string) {
	if r.webFetcher == nil || email == "" {
		return
	}

	var web *Record
	if cached, ok := r.webCache.Get(email); ok {
		web = cached.(*Record)
	} else {
		fetched, err := r.webFetcher.FetchWebAttribution(email)
		if err != nil {
			r.logger.Warn("web attribution fetch failed",
				log.Error(errors.NewServerError(errors.ErrWhileMergingWebAttribution, err)))
			return
		}
		if fetched == nil {
			return
		}
		r.webCache.Set(email, fetched)
		web = fetched
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.record.fillFrom(web) && r.record.Source == SourceNone {
		r.record.Source = SourceWebMerge
	}
	r.persistLocked()
}

// GetAttributionSummary is a pure projection for status reporting.
func (r *Resolver) GetAttributionSummary() Summary {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return Summary{
		Source:         r.record.Source,
		CampaignSource: r.record.CampaignSource,
		CampaignMedium: r.record.CampaignMedium,
		CampaignName:   r.record.CampaignName,
		LyrTag:         r.record.LyrTag,
		ClickIDType:    r.record.ClickIDType(),
		InstallTime:    r.record.InstallTime,
		IsInstall:      r.record.IsInstall,
		HasAttribution: r.record.HasSignals(),
	}
}

// Current returns a copy of the attribution record for event enrichment.
func (r *Resolver) Current() Record {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.record
}

// ClearWebCache drops memoized web fetches. Called on identity reset.
func (r *Resolver) ClearWebCache() {
	r.webCache.Clear()
}

func (r *Resolver) persistLocked() {
	if err := storage.SetJSON(r.store, storage.KeyAttribution, &r.record); err != nil {
		r.logger.Warn("failed to persist attribution", log.Error(err))
	}
}
