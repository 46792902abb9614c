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

package attribution

import (
	"net/url"

	"github.com/datalyr/datalyr-go/internal/system/errors"
)

// ParseDeepLink extracts recognized attribution parameters from a deep link
// URL into a Record with Source set to deep_link. Unrecognized query
// parameters are ignored, not stored. A malformed link is rejected with a
// coded client error.
func ParseDeepLink(rawURL string) (*Record, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, invalidDeepLink(err)
	}
	query, err := url.ParseQuery(parsed.RawQuery)
	if err != nil {
		return nil, invalidDeepLink(err)
	}

	params := make(map[string]string, len(query))
	for key, values := range query {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	record := RecordFromParams(params, SourceDeepLink)
	return record, nil
}

func invalidDeepLink(cause error) error {
	return errors.NewClientError(errors.ErrorMessage{
		Code:        errors.ErrInvalidDeepLink.Code,
		Message:     errors.ErrInvalidDeepLink.Message,
		Description: cause.Error(),
	})
}

// RecordFromParams builds a Record from normalized query-style parameters,
// as produced by deep links and platform bridge fetches. Only recognized
// keys are read.
func RecordFromParams(params map[string]string, source Source) *Record {
	record := &Record{Source: source}

	// The lyr tag travels under several aliases; first recognized alias wins.
	for _, alias := range []string{"lyr", "datalyr", "dl_tag"} {
		if v := params[alias]; v != "" {
			record.LyrTag = v
			break
		}
	}

	record.CampaignSource = params["utm_source"]
	record.CampaignMedium = params["utm_medium"]
	record.CampaignName = params["utm_campaign"]

	record.Fbclid = params["fbclid"]
	record.Ttclid = params["ttclid"]
	record.Gclid = params["gclid"]
	record.Gbraid = params["gbraid"]
	record.Wbraid = params["wbraid"]

	record.CampaignID = params["campaign_id"]
	record.AdsetID = params["adset_id"]
	record.AdID = params["ad_id"]
	record.CreativeID = params["creative_id"]
	record.PlacementID = params["placement_id"]

	if !record.HasSignals() {
		record.Source = SourceNone
	}
	return record
}
