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

// Package journey keeps the ordered touchpoint history of a user's
// marketing contacts. The log is append-only and capped; prior touchpoints
// are never mutated or reordered.
package journey

import (
	"sync"

	"github.com/datalyr/datalyr-go/internal/storage"
	"github.com/datalyr/datalyr-go/internal/system/log"
)

// Touchpoint is one recorded attribution contact. Immutable once appended.
type Touchpoint struct {
	Timestamp      int64  `json:"timestamp"`
	SessionID      string `json:"session_id"`
	Source         string `json:"source"`
	CampaignSource string `json:"campaign_source,omitempty"`
	CampaignMedium string `json:"campaign_medium,omitempty"`
	CampaignName   string `json:"campaign_name,omitempty"`
	ClickIDType    string `json:"click_id_type,omitempty"`
	Lyr            string `json:"lyr,omitempty"`
}

// Summary is the derived read-only view of the journey.
type Summary struct {
	FirstTouch      *Touchpoint `json:"first_touch,omitempty"`
	LastTouch       *Touchpoint `json:"last_touch,omitempty"`
	TouchpointCount int         `json:"touchpoint_count"`
}

type Recorder struct {
	mutex  sync.Mutex
	store  storage.Store
	cap    int
	points []Touchpoint
	logger *log.Logger
}

func NewRecorder(store storage.Store, cap int) *Recorder {
	r := &Recorder{
		store:  store,
		cap:    cap,
		logger: log.GetLogger().With(log.String("component", "journey")),
	}
	found, err := storage.GetJSON(store, storage.KeyJourney, &r.points)
	if err != nil {
		r.logger.Warn("failed to restore journey", log.Error(err))
	}
	if !found {
		r.points = nil
	}
	return r
}

// Record appends one touchpoint. When the cap is exceeded the first
// touchpoint stays pinned, anchoring first-touch attribution for the
// install's lifetime, and the oldest of the remainder is dropped.
func (r *Recorder) Record(tp Touchpoint) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.points = append(r.points, tp)
	if over := len(r.points) - r.cap; over > 0 {
		r.points = append(r.points[:1], r.points[1+over:]...)
	}
	if err := storage.SetJSON(r.store, storage.KeyJourney, r.points); err != nil {
		r.logger.Warn("failed to persist journey", log.Error(err))
	}
}

// GetJourneySummary projects first-touch, last-touch and the count. It never
// mutates the underlying log.
func (r *Recorder) GetJourneySummary() Summary {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.points) == 0 {
		return Summary{}
	}
	first := r.points[0]
	last := r.points[len(r.points)-1]
	return Summary{
		FirstTouch:      &first,
		LastTouch:       &last,
		TouchpointCount: len(r.points),
	}
}

// Len reports the number of recorded touchpoints.
func (r *Recorder) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.points)
}
