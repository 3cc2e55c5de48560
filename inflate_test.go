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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInflate_LinksRuleToCampaignAndAllocatesRollout(t *testing.T) {
	settings := &Settings{
		Campaigns: []Campaign{
			{ID: 10, Key: "rollout-camp", Type: CampaignRollout, Status: statusRunning,
				Variations: []Variation{{ID: 1, Weight: 40}}},
		},
		Features: []Feature{
			{ID: 1, Key: "feature-a", Status: statusRunning,
				Rules: []FeatureRule{{Type: "ROLLOUT", RuleKey: "rule-1", CampaignID: 10}}},
		},
	}

	inflate(settings)

	require.Len(t, settings.Features[0].RulesLinkedCampaign, 1)
	linked := settings.Features[0].RulesLinkedCampaign[0]
	assert.Equal(t, "rule-1", linked.RuleKey)
	require.Len(t, linked.Variations, 1)
	assert.Equal(t, 1, linked.Variations[0].StartRange)
	assert.Equal(t, 4000, linked.Variations[0].EndRange)
}

func TestInflate_ABCampaignPartitionsFullRange(t *testing.T) {
	settings := &Settings{
		Campaigns: []Campaign{
			{ID: 20, Key: "ab-camp", Type: CampaignAB, Status: statusRunning,
				Variations: []Variation{{ID: 1, Weight: 50}, {ID: 2, Weight: 50}}},
		},
		Features: []Feature{
			{ID: 1, Key: "feature-b", Status: statusRunning,
				Rules: []FeatureRule{{Type: "AB", RuleKey: "rule-1", CampaignID: 20}}},
		},
	}

	inflate(settings)

	linked := settings.Features[0].RulesLinkedCampaign[0]
	require.Len(t, linked.Variations, 2)
	assert.Equal(t, 1, linked.Variations[0].StartRange)
	assert.Equal(t, 10000, linked.Variations[1].EndRange)
}

func TestInflate_PersonalizeFiltersToSingleVariation(t *testing.T) {
	variationID := 2
	settings := &Settings{
		Campaigns: []Campaign{
			{ID: 30, Key: "personalize-camp", Type: CampaignPersonalize, Status: statusRunning,
				Variations: []Variation{{ID: 1, Weight: 50}, {ID: 2, Weight: 50}}},
		},
		Features: []Feature{
			{ID: 1, Key: "feature-c", Status: statusRunning,
				Rules: []FeatureRule{{Type: "PERSONALIZE", RuleKey: "rule-1", CampaignID: 30, VariationID: &variationID}}},
		},
	}

	inflate(settings)

	linked := settings.Features[0].RulesLinkedCampaign[0]
	require.Len(t, linked.Variations, 1)
	assert.Equal(t, 2, linked.Variations[0].ID)
}

func TestInflate_DanglingCampaignReferenceIsSkipped(t *testing.T) {
	settings := &Settings{
		Campaigns: nil,
		Features: []Feature{
			{ID: 1, Key: "feature-d", Status: statusRunning,
				Rules: []FeatureRule{{Type: "ROLLOUT", RuleKey: "rule-1", CampaignID: 999}}},
		},
	}

	inflate(settings)

	assert.Empty(t, settings.Features[0].RulesLinkedCampaign)
}

func TestRequiresGateway_DetectsCountrySegment(t *testing.T) {
	f := &Feature{
		RulesLinkedCampaign: []Campaign{
			{Segments: json.RawMessage(`{"country":{"eq":"US"}}`)},
		},
	}
	assert.True(t, requiresGateway(f))
}

func TestRequiresGateway_DetectsInlistCustomVariable(t *testing.T) {
	f := &Feature{
		RulesLinkedCampaign: []Campaign{
			{Segments: json.RawMessage(`{"custom_variable":{"plan":"inlist(123)"}}`)},
		},
	}
	assert.True(t, requiresGateway(f))
}

func TestRequiresGateway_FalseForPlainCustomVariable(t *testing.T) {
	f := &Feature{
		RulesLinkedCampaign: []Campaign{
			{Segments: json.RawMessage(`{"custom_variable":{"plan":"pro"}}`)},
		},
	}
	assert.False(t, requiresGateway(f))
}
