// Copyright 2019 SpotHero
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSettingsJSON = `{
	"accountId": 12345,
	"sdkKey": "sdk-key",
	"version": 3,
	"campaigns": [
		{"id": 1, "key": "rollout-camp", "type": "ROLLOUT", "status": "RUNNING",
		 "variations": [{"id": 1, "name": "on", "weight": 100}]}
	],
	"features": [
		{"id": 1, "key": "my-feature", "name": "My Feature", "status": "RUNNING",
		 "rules": [{"type": "ROLLOUT", "ruleKey": "rule-1", "campaignId": 1}]}
	],
	"groups": {}
}`

func TestParseSettings_DecodesAndInflates(t *testing.T) {
	settings, err := ParseSettings([]byte(sampleSettingsJSON))
	require.NoError(t, err)
	assert.Equal(t, "12345", settings.AccountID)
	assert.Equal(t, 3, settings.Version)

	feature, ok := settings.FeatureByKey("my-feature")
	require.True(t, ok)
	require.Len(t, feature.RulesLinkedCampaign, 1)
	assert.Equal(t, "rule-1", feature.RulesLinkedCampaign[0].RuleKey)
	assert.Equal(t, 1, feature.RulesLinkedCampaign[0].Variations[0].StartRange)
	assert.Equal(t, 10000, feature.RulesLinkedCampaign[0].Variations[0].EndRange)

	campaign, ok := settings.CampaignByKey("rollout-camp")
	require.True(t, ok)
	assert.True(t, campaign.IsRunning())
}

func TestParseSettings_EmptyGroupsObjectDecodesAsEmptyMap(t *testing.T) {
	settings, err := ParseSettings([]byte(sampleSettingsJSON))
	require.NoError(t, err)
	assert.NotNil(t, settings.CampaignGroups)
	assert.Empty(t, settings.Groups)
}

func TestParseSettings_CampaignsAsEmptyObjectPlaceholderDecodesEmpty(t *testing.T) {
	raw := `{"accountId": 1, "sdkKey": "k", "campaigns": {}, "features": {}}`
	settings, err := ParseSettings([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, settings.Campaigns)
	assert.Empty(t, settings.Features)
}

func TestParseSettings_RejectsMalformedJSON(t *testing.T) {
	_, err := ParseSettings([]byte(`not json`))
	assert.Error(t, err)
}

func TestFeatureByKey_MissingReturnsNotFound(t *testing.T) {
	settings, err := ParseSettings([]byte(sampleSettingsJSON))
	require.NoError(t, err)
	_, ok := settings.FeatureByKey("does-not-exist")
	assert.False(t, ok)
}
