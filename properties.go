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

package datalyr

import (
	"strconv"
	"unicode"

	"github.com/datalyr/datalyr-go/internal/system/errors"
)

// Properties is an open string-keyed property map. Known analytics keys
// (revenue, value, currency) are validated and coerced at this boundary so
// the rest of the engine never duck-types.
type Properties map[string]interface{}

const maxEventNameLength = 120

// validateEventName rejects empty names and names with control characters.
func validateEventName(name string) error {
	if name == "" {
		return errors.NewClientError(errors.ErrorMessage{
			Code:        errors.ErrInvalidEvent.Code,
			Message:     errors.ErrInvalidEvent.Message,
			Description: "Event name is required.",
		})
	}
	if len(name) > maxEventNameLength {
		return errors.NewClientError(errors.ErrorMessage{
			Code:        errors.ErrInvalidEvent.Code,
			Message:     errors.ErrInvalidEvent.Message,
			Description: "Event name exceeds the maximum length.",
		})
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errors.NewClientError(errors.ErrorMessage{
				Code:        errors.ErrInvalidEvent.Code,
				Message:     errors.ErrInvalidEvent.Message,
				Description: "Event name contains control characters.",
			})
		}
	}
	return nil
}

// sanitizeProperties copies the caller's map so later mutation cannot race
// the queue, and coerces the known numeric keys. Nil-valued entries are
// dropped.
func sanitizeProperties(props Properties) map[string]interface{} {
	if len(props) == 0 {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(props))
	for key, value := range props {
		if value == nil {
			continue
		}
		switch key {
		case "revenue", "value":
			if amount, ok := coerceFloat(value); ok {
				out[key] = amount
				continue
			}
			// Unparseable revenue is kept as-is for the payload; the
			// conversion encoder will treat it as absent.
			out[key] = value
		default:
			out[key] = value
		}
	}
	return out
}

func coerceFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
