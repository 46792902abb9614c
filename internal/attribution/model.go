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

// Source identifies which channel a record's marketing fields came from.
type Source string

const (
	SourceNone            Source = "none"
	SourceDeepLink        Source = "deep_link"
	SourceInstallReferrer Source = "install_referrer"
	SourceSearchAds       Source = "search_ads"
	SourceWebMerge        Source = "web_merge"
	// SourceManual marks fields set through the programmatic override.
	SourceManual Source = "manual"
)

// Record is the attribution state for this install. InstallTime and
// IsInstall are set at most once per app-install lifetime; later updates may
// overwrite marketing fields but never touch them.
type Record struct {
	Source         Source `json:"source"`
	CampaignSource string `json:"campaign_source,omitempty"`
	CampaignMedium string `json:"campaign_medium,omitempty"`
	CampaignName   string `json:"campaign_name,omitempty"`
	LyrTag         string `json:"lyr_tag,omitempty"`

	Fbclid string `json:"fbclid,omitempty"`
	Ttclid string `json:"ttclid,omitempty"`
	Gclid  string `json:"gclid,omitempty"`
	Gbraid string `json:"gbraid,omitempty"`
	Wbraid string `json:"wbraid,omitempty"`

	CampaignID  string `json:"campaign_id,omitempty"`
	AdsetID     string `json:"adset_id,omitempty"`
	AdID        string `json:"ad_id,omitempty"`
	CreativeID  string `json:"creative_id,omitempty"`
	PlacementID string `json:"placement_id,omitempty"`

	InstallTime int64 `json:"install_time,omitempty"`
	IsInstall   bool  `json:"is_install,omitempty"`
}

// ClickIDType derives which click identifier attributes this record.
// Precedence is fbclid > gclid > ttclid > none; first non-empty wins and the
// order is fixed.
func (r *Record) ClickIDType() string {
	switch {
	case r.Fbclid != "":
		return "fbclid"
	case r.Gclid != "":
		return "gclid"
	case r.Ttclid != "":
		return "ttclid"
	}
	return "none"
}

// HasSignals reports whether any marketing field is populated.
func (r *Record) HasSignals() bool {
	return r.CampaignSource != "" || r.CampaignMedium != "" || r.CampaignName != "" ||
		r.LyrTag != "" || r.Fbclid != "" || r.Ttclid != "" || r.Gclid != "" ||
		r.Gbraid != "" || r.Wbraid != "" || r.CampaignID != "" || r.AdsetID != "" ||
		r.AdID != "" || r.CreativeID != "" || r.PlacementID != ""
}

// marketingFields enumerates the overwritable fields as pointers, in a fixed
// order, so merge logic stays in one place.
func (r *Record) marketingFields() []*string {
	return []*string{
		&r.CampaignSource, &r.CampaignMedium, &r.CampaignName, &r.LyrTag,
		&r.Fbclid, &r.Ttclid, &r.Gclid, &r.Gbraid, &r.Wbraid,
		&r.CampaignID, &r.AdsetID, &r.AdID, &r.CreativeID, &r.PlacementID,
	}
}

// fillFrom copies fields from other into r where r is empty. The merge is
// additive: existing values are never overwritten. Install fields are not
// part of the merge.
func (r *Record) fillFrom(other *Record) bool {
	if other == nil {
		return false
	}
	filled := false
	dst := r.marketingFields()
	src := other.marketingFields()
	for i := range dst {
		if *dst[i] == "" && *src[i] != "" {
			*dst[i] = *src[i]
			filled = true
		}
	}
	return filled
}

// overwriteFrom copies every non-empty field from other into r, replacing
// existing values. Install fields are not part of the merge.
func (r *Record) overwriteFrom(other *Record) bool {
	if other == nil {
		return false
	}
	changed := false
	dst := r.marketingFields()
	src := other.marketingFields()
	for i := range dst {
		if *src[i] != "" && *dst[i] != *src[i] {
			*dst[i] = *src[i]
			changed = true
		}
	}
	return changed
}

// Summary is the pure projection returned by GetAttributionSummary.
type Summary struct {
	Source         Source `json:"source"`
	CampaignSource string `json:"campaign_source,omitempty"`
	CampaignMedium string `json:"campaign_medium,omitempty"`
	CampaignName   string `json:"campaign_name,omitempty"`
	LyrTag         string `json:"lyr_tag,omitempty"`
	ClickIDType    string `json:"click_id_type"`
	InstallTime    int64  `json:"install_time,omitempty"`
	IsInstall      bool   `json:"is_install"`
	HasAttribution bool   `json:"has_attribution"`
}
