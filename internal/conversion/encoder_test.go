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

package conversion

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datalyr/datalyr-go/internal/system/log"
)

func TestMain(m *testing.M) {
	_ = log.Init("ERROR")
	os.Exit(m.Run())
}

func revenue(amount float64) map[string]interface{} {
	return map[string]interface{}{"revenue": amount}
}

// ---------------------------------------------------------------------------
// Revenue tiers
// ---------------------------------------------------------------------------

func TestRevenueTier_Boundaries(t *testing.T) {
	template := TemplateByName("ecommerce")
	require.NotNil(t, template)

	cases := []struct {
		amount float64
		tier   int
	}{
		{0.50, 0},
		{2.99, 1},
		{5.00, 2},
		{10.00, 3},
		{35.99, 4},
		{75.00, 5},
		{100.00, 6},
		{299.99, 7},
		{10_000, 7},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.tier, template.revenueTier(tc.amount), "amount %.2f", tc.amount)
	}
}

// ---------------------------------------------------------------------------
// Fine value monotonicity
// ---------------------------------------------------------------------------

func TestEncode_MonotonicInRevenue(t *testing.T) {
	enc := NewEncoder(TemplateByName("ecommerce"))

	low := enc.Encode("purchase", revenue(2.00))
	mid := enc.Encode("purchase", revenue(30.00))
	high := enc.Encode("purchase", revenue(300.00))

	require.True(t, low.Matched)
	assert.LessOrEqual(t, low.Fine, mid.Fine)
	assert.LessOrEqual(t, mid.Fine, high.Fine)
	assert.LessOrEqual(t, high.Fine, 63)
}

func TestEncode_MonotonicInPriority(t *testing.T) {
	enc := NewEncoder(TemplateByName("ecommerce"))

	view := enc.Encode("view_item", nil)
	cart := enc.Encode("add_to_cart", nil)
	purchase := enc.Encode("purchase", nil)

	assert.Less(t, view.Fine, cart.Fine)
	assert.Less(t, cart.Fine, purchase.Fine)
}

func TestEncode_UnlistedNonRevenueEventIsZero(t *testing.T) {
	enc := NewEncoder(TemplateByName("ecommerce"))
	value := enc.Encode("totally_custom", nil)
	assert.False(t, value.Matched)
	assert.Zero(t, value.Fine)
}

func TestEncode_RevenueOnUnlistedEventStillEncodesTier(t *testing.T) {
	enc := NewEncoder(TemplateByName("ecommerce"))
	value := enc.Encode("custom_sale", revenue(35.99))
	require.True(t, value.Matched)
	assert.Equal(t, 4, value.Fine)
}

func TestEncode_RevenueAsStringCoerced(t *testing.T) {
	enc := NewEncoder(TemplateByName("ecommerce"))
	value := enc.Encode("purchase", map[string]interface{}{"value": "12.50"})
	require.True(t, value.Matched)
	// priority 7 << 3 | tier 3
	assert.Equal(t, 59, value.Fine)
}

// ---------------------------------------------------------------------------
// SKAN 4 coarse value and lock window
// ---------------------------------------------------------------------------

func TestEncodeWithSKAN4_CoarseThresholds(t *testing.T) {
	enc := NewEncoder(TemplateByName("ecommerce"))

	search := enc.EncodeWithSKAN4("search", nil)                 // fine 8
	cart := enc.EncodeWithSKAN4("add_to_cart", nil)              // fine 32
	purchase := enc.EncodeWithSKAN4("purchase", revenue(299.99)) // fine 63

	assert.Equal(t, CoarseLow, search.Coarse)
	assert.Equal(t, CoarseMedium, cart.Coarse)
	assert.Equal(t, CoarseHigh, purchase.Coarse)
}

func TestEncodeWithSKAN4_LockWindowOnFinalEvents(t *testing.T) {
	enc := NewEncoder(TemplateByName("subscription"))

	subscribe := enc.EncodeWithSKAN4("subscribe", revenue(9.99))
	paywall := enc.EncodeWithSKAN4("paywall_view", nil)

	assert.True(t, subscribe.LockWindow)
	assert.False(t, paywall.LockWindow)
}

// ---------------------------------------------------------------------------
// Misconfiguration
// ---------------------------------------------------------------------------

func TestEncode_NoTemplateIsNoop(t *testing.T) {
	enc := NewEncoder(nil)
	assert.NotPanics(t, func() {
		value := enc.Encode("purchase", revenue(50))
		assert.False(t, value.Matched)
		assert.Zero(t, value.Fine)

		skan := enc.EncodeWithSKAN4("purchase", revenue(50))
		assert.False(t, skan.Matched)
	})
}

func TestTemplateByName_Unknown(t *testing.T) {
	assert.Nil(t, TemplateByName("does-not-exist"))
}
