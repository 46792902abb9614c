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
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datalyr/datalyr-go/config"
	"github.com/datalyr/datalyr-go/internal/bridge"
	"github.com/datalyr/datalyr-go/internal/storage"
	"github.com/datalyr/datalyr-go/internal/system/log"
	"github.com/datalyr/datalyr-go/internal/transport"
)

func TestMain(m *testing.M) {
	_ = log.Init("ERROR")
	os.Exit(m.Run())
}

// capturingDelivery accepts every batch and remembers the payloads.
type capturingDelivery struct {
	events []map[string]interface{}
}

func (c *capturingDelivery) Send(events []map[string]interface{}) transport.Outcome {
	c.events = append(c.events, events...)
	return transport.OutcomeSuccess
}

func (c *capturingDelivery) names() []string {
	var out []string
	for _, ev := range c.events {
		out = append(out, ev["event_name"].(string))
	}
	return out
}

// capturingUpdater records conversion postbacks.
type capturingUpdater struct {
	capability bridge.Capability
	fine       []int
	coarse     []string
	locks      []bool
}

func (c *capturingUpdater) Capability() bridge.Capability { return c.capability }
func (c *capturingUpdater) IsAvailable() bool             { return true }

func (c *capturingUpdater) UpdateConversionValue(fine int) bridge.Result {
	c.fine = append(c.fine, fine)
	return bridge.Ok(nil)
}

func (c *capturingUpdater) UpdatePostbackConversionValue(fine int, coarse string, lock bool) bridge.Result {
	c.fine = append(c.fine, fine)
	c.coarse = append(c.coarse, coarse)
	c.locks = append(c.locks, lock)
	return bridge.Ok(nil)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.WorkspaceID = "ws-test"
	cfg.APIKey = "key-test"
	cfg.Conversion.Template = "ecommerce"
	cfg.Log.Level = "ERROR"
	return cfg
}

func newTestSDK(t *testing.T, cfg *config.Config, collab Collaborators) (*SDK, *capturingDelivery) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	delivery := &capturingDelivery{}
	if collab.Delivery == nil {
		collab.Delivery = delivery
	}
	if collab.Store == nil {
		collab.Store = storage.NewMemoryStore()
	}
	sdk, err := New(cfg, collab)
	require.NoError(t, err)
	t.Cleanup(sdk.Destroy)
	return sdk, delivery
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig() // no workspace, no key
	_, err := New(cfg, Collaborators{})
	require.Error(t, err)
}

func TestTrack_BeforeInitializeIsNoop(t *testing.T) {
	sdk, delivery := newTestSDK(t, nil, Collaborators{})
	sdk.Track("purchase", nil)
	sdk.Flush()
	assert.Empty(t, delivery.events)
}

// ---------------------------------------------------------------------------
// Install and auto events
// ---------------------------------------------------------------------------

func TestInitialize_EmitsInstallOnFirstRunOnly(t *testing.T) {
	store := storage.NewMemoryStore()
	sdk, delivery := newTestSDK(t, nil, Collaborators{Store: store})
	sdk.Initialize()
	sdk.Flush()
	assert.Equal(t, []string{"install"}, delivery.names())

	sdk.Destroy()

	// Second launch over the same storage: no second install event.
	again, delivery2 := newTestSDK(t, nil, Collaborators{Store: store})
	again.Initialize()
	again.Flush()
	assert.Empty(t, delivery2.events)
}

func TestTrack_EmitsSessionStartAndEnrichesPayload(t *testing.T) {
	sdk, delivery := newTestSDK(t, nil, Collaborators{})
	sdk.Initialize()
	sdk.Identify("user-1", Properties{"plan": "pro"})
	sdk.SetAttributionData(map[string]string{"utm_source": "meta", "fbclid": "fb-1"})

	sdk.Track("purchase", Properties{"revenue": 12.50})
	sdk.Flush()

	names := delivery.names()
	require.Equal(t, []string{"install", "session_start", "purchase"}, names)

	purchase := delivery.events[2]
	assert.Equal(t, "user-1", purchase["user_id"])
	assert.NotEmpty(t, purchase["visitor_id"])
	assert.NotEmpty(t, purchase["session_id"])

	attributionMap, ok := purchase["attribution"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "fbclid", attributionMap["click_id_type"])
	assert.Equal(t, "meta", attributionMap["campaign_source"])

	props, ok := purchase["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 12.50, props["revenue"])
}

func TestTrackScreenView_AddsScreenName(t *testing.T) {
	sdk, delivery := newTestSDK(t, nil, Collaborators{})
	sdk.Initialize()
	sdk.TrackScreenView("checkout", nil)
	sdk.Flush()

	names := delivery.names()
	require.Contains(t, names, "screen_view")
	last := delivery.events[len(delivery.events)-1]
	props := last["properties"].(map[string]interface{})
	assert.Equal(t, "checkout", props["screen_name"])
}

func TestTrack_InvalidEventNameRejected(t *testing.T) {
	sdk, delivery := newTestSDK(t, nil, Collaborators{})
	sdk.Initialize()
	sdk.Flush() // drain install
	delivery.events = nil

	sdk.Track("", nil)
	sdk.Track("bad\x00name", nil)
	sdk.Flush()
	assert.Empty(t, delivery.names())
}

// ---------------------------------------------------------------------------
// Conversion side channel
// ---------------------------------------------------------------------------

func TestTrack_PostsSKAN4ConversionOnIOS(t *testing.T) {
	updater := &capturingUpdater{capability: bridge.CapabilityIOS}
	sdk, _ := newTestSDK(t, nil, Collaborators{ConversionUpdater: updater})
	sdk.Initialize()

	sdk.Track("purchase", Properties{"revenue": 299.99})

	require.Len(t, updater.fine, 1)
	assert.Equal(t, 63, updater.fine[0])
	assert.Equal(t, []string{"high"}, updater.coarse)
	assert.Equal(t, []bool{true}, updater.locks)
}

func TestTrack_LegacyConversionOffIOS(t *testing.T) {
	updater := &capturingUpdater{capability: bridge.CapabilityAndroid}
	sdk, _ := newTestSDK(t, nil, Collaborators{ConversionUpdater: updater})
	sdk.Initialize()

	sdk.Track("add_to_cart", nil)

	require.Len(t, updater.fine, 1)
	assert.Equal(t, 32, updater.fine[0])
	assert.Empty(t, updater.coarse)
}

func TestTrack_NoTemplateNoPostback(t *testing.T) {
	cfg := testConfig()
	cfg.Conversion.Template = ""
	updater := &capturingUpdater{capability: bridge.CapabilityIOS}
	sdk, _ := newTestSDK(t, cfg, Collaborators{ConversionUpdater: updater})
	sdk.Initialize()

	sdk.Track("purchase", Properties{"revenue": 10})
	assert.Empty(t, updater.fine)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestHandleAppBackground_Flushes(t *testing.T) {
	sdk, delivery := newTestSDK(t, nil, Collaborators{})
	sdk.Initialize()
	sdk.Track("view_item", nil)

	sdk.HandleAppBackground()
	assert.NotEmpty(t, delivery.events)
	assert.Zero(t, sdk.GetQueueStats().Size)
}

func TestReset_IssuesFreshVisitorID(t *testing.T) {
	sdk, delivery := newTestSDK(t, nil, Collaborators{})
	sdk.Initialize()
	sdk.Identify("user-1", nil)
	sdk.Track("view_item", nil)
	sdk.Reset()
	sdk.Track("view_item", nil)
	sdk.Flush()

	var visitors []interface{}
	var users []interface{}
	for _, ev := range delivery.events {
		if ev["event_name"] == "view_item" {
			visitors = append(visitors, ev["visitor_id"])
			users = append(users, ev["user_id"])
		}
	}
	require.Len(t, visitors, 2)
	assert.NotEqual(t, visitors[0], visitors[1])
	assert.Equal(t, "user-1", users[0])
	assert.Nil(t, users[1])
}

func TestDestroy_StopsTracking(t *testing.T) {
	sdk, delivery := newTestSDK(t, nil, Collaborators{})
	sdk.Initialize()
	sdk.Flush()
	delivery.events = nil

	sdk.Destroy()
	sdk.Track("purchase", nil)
	assert.Empty(t, delivery.events)
}

// ---------------------------------------------------------------------------
// Journey and summaries
// ---------------------------------------------------------------------------

func TestJourney_TouchpointPerAttributedSessionStart(t *testing.T) {
	sdk, _ := newTestSDK(t, nil, Collaborators{})
	sdk.Initialize()
	sdk.SetAttributionData(map[string]string{"utm_source": "meta", "fbclid": "fb-1"})

	sdk.Track("view_item", nil)

	summary := sdk.GetJourneySummary()
	require.Equal(t, 1, summary.TouchpointCount)
	assert.Equal(t, "fbclid", summary.FirstTouch.ClickIDType)
	assert.Equal(t, "meta", summary.FirstTouch.CampaignSource)
}

func TestJourney_NoTouchpointWithoutSignals(t *testing.T) {
	sdk, _ := newTestSDK(t, nil, Collaborators{})
	sdk.Initialize()
	sdk.Track("view_item", nil)
	assert.Zero(t, sdk.GetJourneySummary().TouchpointCount)
}

func TestGetAttributionSummary_ReflectsDeepLink(t *testing.T) {
	sdk, _ := newTestSDK(t, nil, Collaborators{})
	sdk.Initialize()
	sdk.HandleDeepLink("datalyr://open?utm_source=tiktok&ttclid=tt-1&lyr=camp7")

	summary := sdk.GetAttributionSummary()
	assert.Equal(t, "ttclid", summary.ClickIDType)
	assert.Equal(t, "camp7", summary.LyrTag)
	assert.True(t, summary.HasAttribution)
}
