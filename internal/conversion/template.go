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

// Template is the immutable configuration driving conversion encoding.
// Selecting a different template requires SDK re-initialization.
type Template struct {
	Name string
	// Priorities maps event names to a priority 0-7. Events absent from the
	// table and carrying no revenue encode to zero.
	Priorities map[string]int
	// TierBounds are the ascending upper bounds of revenue tiers 0-6; tier 7
	// is everything at or above the last bound.
	TierBounds [7]float64
	// CoarseMediumAt and CoarseHighAt are fine-value thresholds for the
	// SKAN 4 coarse bucket.
	CoarseMediumAt int
	CoarseHighAt   int
	// LockEvents are the "final" events that freeze the attribution window.
	LockEvents map[string]bool
}

// defaultTierBounds is the 8-tier revenue table shared by the built-in
// templates: [0,1) [1,5) [5,10) [10,25) [25,50) [50,100) [100,250) [250,inf).
var defaultTierBounds = [7]float64{1, 5, 10, 25, 50, 100, 250}

var builtinTemplates = map[string]*Template{
	"ecommerce": {
		Name: "ecommerce",
		Priorities: map[string]int{
			"purchase":        7,
			"checkout_start":  5,
			"add_to_cart":     4,
			"add_to_wishlist": 3,
			"view_item":       2,
			"search":          1,
		},
		TierBounds:     defaultTierBounds,
		CoarseMediumAt: 24,
		CoarseHighAt:   48,
		LockEvents:     map[string]bool{"purchase": true},
	},
	"subscription": {
		Name: "subscription",
		Priorities: map[string]int{
			"subscribe":     7,
			"trial_convert": 6,
			"trial_start":   4,
			"signup":        3,
			"paywall_view":  1,
		},
		TierBounds:     defaultTierBounds,
		CoarseMediumAt: 24,
		CoarseHighAt:   48,
		LockEvents:     map[string]bool{"subscribe": true, "trial_convert": true},
	},
	"gaming": {
		Name: "gaming",
		Priorities: map[string]int{
			"purchase":       7,
			"level_complete": 4,
			"tutorial_done":  3,
			"achievement":    2,
			"session_start":  1,
		},
		TierBounds:     defaultTierBounds,
		CoarseMediumAt: 24,
		CoarseHighAt:   48,
		LockEvents:     map[string]bool{"purchase": true},
	},
}

// TemplateByName returns a built-in industry template, or nil when the name
// is unknown.
func TemplateByName(name string) *Template {
	return builtinTemplates[name]
}

// revenueTier maps an amount to its tier index 0-7.
func (t *Template) revenueTier(amount float64) int {
	for i, bound := range t.TierBounds {
		if amount < bound {
			return i
		}
	}
	return len(t.TierBounds)
}
