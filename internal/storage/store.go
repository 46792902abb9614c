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

// Package storage defines the persistent key-value collaborator every
// stateful component writes through. Callers treat every method as
// fail-soft: a storage error degrades that call to memory-only operation
// and is logged, never surfaced to the host application.
package storage

import (
	"encoding/json"

	"github.com/pkg/errors"

	syserrors "github.com/datalyr/datalyr-go/internal/system/errors"
)

// Logical keys for persisted SDK state.
const (
	KeyVisitorID    = "datalyr_visitor_id"
	KeySession      = "datalyr_session"
	KeyUserIdentity = "datalyr_user"
	KeyAttribution  = "datalyr_attribution"
	KeyEventQueue   = "datalyr_event_queue"
	KeyJourney      = "datalyr_journey"
)

// Store is the persistent key-value collaborator.
type Store interface {
	// GetItem returns the stored bytes for key, or (nil, nil) when absent.
	GetItem(key string) ([]byte, error)
	SetItem(key string, value []byte) error
	RemoveItem(key string) error
}

// GetJSON reads key and unmarshals it into out. It returns false when the
// key is absent; out is untouched in that case. Failures come back as a
// coded ServerError so degradation logs carry the stable read code.
func GetJSON(store Store, key string, out interface{}) (bool, error) {
	raw, err := store.GetItem(key)
	if err != nil {
		return false, syserrors.NewServerError(syserrors.ErrWhileReadingStorage,
			errors.Wrapf(err, "reading %s", key))
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, syserrors.NewServerError(syserrors.ErrWhileReadingStorage,
			errors.Wrapf(err, "decoding %s", key))
	}
	return true, nil
}

// SetJSON marshals value and writes it under key. Failures come back as a
// coded ServerError.
func SetJSON(store Store, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return syserrors.NewServerError(syserrors.ErrWhileWritingStorage,
			errors.Wrapf(err, "encoding %s", key))
	}
	if err := store.SetItem(key, raw); err != nil {
		return syserrors.NewServerError(syserrors.ErrWhileWritingStorage,
			errors.Wrapf(err, "writing %s", key))
	}
	return nil
}
