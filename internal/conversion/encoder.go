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

// Package conversion compresses an event stream into the small ordinal
// values the ad network's privacy-preserving postback protocol allows.
//
// The fine value packs the event priority and revenue tier as
// priority<<3 | tier, so both a higher tier and a higher-priority event
// always raise the result. Non-revenue events encode priority<<3.
package conversion

import (
	"strconv"

	"github.com/datalyr/datalyr-go/internal/system/errors"
	"github.com/datalyr/datalyr-go/internal/system/log"
)

// Coarse buckets per the SKAN 4 postback protocol.
const (
	CoarseLow    = "low"
	CoarseMedium = "medium"
	CoarseHigh   = "high"
)

// Value is the result of encoding one event.
type Value struct {
	Fine int
	// Matched is false when the event carried no revenue and no listed
	// priority; no postback should be sent for it.
	Matched bool
}

// SKAN4Value extends Value with the coarse bucket and lock-window flag.
type SKAN4Value struct {
	Value
	Coarse     string
	LockWindow bool
}

// Encoder maps tracked events to conversion values. It holds no state
// beyond the immutable template; a nil-template encoder is a warned no-op
// because it sits on the hot path of every tracked event.
type Encoder struct {
	template *Template
	logger   *log.Logger
}

func NewEncoder(template *Template) *Encoder {
	return &Encoder{
		template: template,
		logger:   log.GetLogger().With(log.String("component", "conversion")),
	}
}

// Encode returns the legacy 0-63 fine conversion value for the event.
func (e *Encoder) Encode(event string, properties map[string]interface{}) Value {
	if e.template == nil {
		e.logger.Warn("conversion encoding skipped, no template configured",
			log.String("code", errors.ErrNoTemplateConfigured.Code))
		return Value{}
	}

	priority, listed := e.template.Priorities[event]
	revenue, hasRevenue := revenueOf(properties)

	if !hasRevenue && !listed {
		return Value{}
	}

	fine := priority << 3
	if hasRevenue {
		fine |= e.template.revenueTier(revenue)
	}
	return Value{Fine: fine, Matched: true}
}

// EncodeWithSKAN4 returns the fine value plus the coarse bucket and the
// lock-window flag for template-designated final events.
func (e *Encoder) EncodeWithSKAN4(event string, properties map[string]interface{}) SKAN4Value {
	fine := e.Encode(event, properties)
	if !fine.Matched {
		return SKAN4Value{Value: fine, Coarse: CoarseLow}
	}

	coarse := CoarseLow
	switch {
	case fine.Fine >= e.template.CoarseHighAt:
		coarse = CoarseHigh
	case fine.Fine >= e.template.CoarseMediumAt:
		coarse = CoarseMedium
	}

	return SKAN4Value{
		Value:      fine,
		Coarse:     coarse,
		LockWindow: e.template.LockEvents[event],
	}
}

// revenueOf pulls a revenue amount from the properties, accepting the
// numeric shapes JSON decoding and host bridges produce.
func revenueOf(properties map[string]interface{}) (float64, bool) {
	for _, key := range []string{"revenue", "value"} {
		raw, ok := properties[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case string:
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}
