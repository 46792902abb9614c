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

// Package bridge defines the native platform collaborators (ad-network
// SDKs, install referrer, SKAdNetwork postbacks). Every call is best-effort:
// failure is a value, not an error that propagates, so an absent bridge can
// never block SDK initialization.
package bridge

// Capability states which platform a collaborator can serve. It is probed
// once at initialization; call sites never branch on the platform again.
type Capability int

const (
	CapabilityNone Capability = iota
	CapabilityIOS
	CapabilityAndroid
)

// Status classifies the outcome of a bridge call.
type Status int

const (
	StatusOk Status = iota
	StatusUnavailable
	StatusFailed
)

// Result is the outcome of an attribution fetch. Params holds normalized
// query-style parameters (utm_source, fbclid, ...) when Status is StatusOk.
type Result struct {
	Status Status
	Params map[string]string
	Err    error
}

func Ok(params map[string]string) Result {
	return Result{Status: StatusOk, Params: params}
}

func Unavailable() Result {
	return Result{Status: StatusUnavailable}
}

func Failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}

// AttributionSource is a native collaborator that can contribute attribution
// parameters (Meta, TikTok, Play Install Referrer, Apple Search Ads).
type AttributionSource interface {
	Name() string
	Capability() Capability
	Initialize() error
	IsAvailable() bool
	// FetchAttribution returns the collaborator's current attribution
	// parameters. Unavailable and Failed results are expected outcomes.
	FetchAttribution() Result
}

// ConversionUpdater posts conversion values to the ad network. Both methods
// are fire-and-forget from the encoder's perspective.
type ConversionUpdater interface {
	Capability() Capability
	IsAvailable() bool
	// UpdateConversionValue reports the legacy fine value (0-63).
	UpdateConversionValue(fineValue int) Result
	// UpdatePostbackConversionValue reports fine, coarse and lock-window
	// per the SKAN 4 postback protocol.
	UpdatePostbackConversionValue(fineValue int, coarseValue string, lockWindow bool) Result
}

// NoopAttributionSource stands in for a platform this build cannot reach.
type NoopAttributionSource struct {
	SourceName string
}

func (n *NoopAttributionSource) Name() string {
	if n.SourceName == "" {
		return "noop"
	}
	return n.SourceName
}

func (n *NoopAttributionSource) Capability() Capability { return CapabilityNone }

func (n *NoopAttributionSource) Initialize() error { return nil }

func (n *NoopAttributionSource) IsAvailable() bool { return false }

func (n *NoopAttributionSource) FetchAttribution() Result { return Unavailable() }

// NoopConversionUpdater swallows postbacks on platforms without SKAdNetwork.
type NoopConversionUpdater struct{}

func (n *NoopConversionUpdater) Capability() Capability { return CapabilityNone }

func (n *NoopConversionUpdater) IsAvailable() bool { return false }

func (n *NoopConversionUpdater) UpdateConversionValue(int) Result { return Unavailable() }

func (n *NoopConversionUpdater) UpdatePostbackConversionValue(int, string, bool) Result {
	return Unavailable()
}
