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

// Package transport carries batched telemetry to the collection endpoint.
package transport

// Outcome classifies one delivery attempt. Retryable outcomes (network
// errors, 5xx, 429) drive the queue's backoff loop; fatal outcomes (other
// 4xx) are still retried up to the same cap, the distinction exists so that
// policy can change without touching the queue.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable-failure"
	case OutcomeFatal:
		return "fatal-failure"
	}
	return "unknown"
}

// Delivery sends one batch of event payloads, oldest first. Implementations
// never panic and never block indefinitely.
type Delivery interface {
	Send(events []map[string]interface{}) Outcome
}
