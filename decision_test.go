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
)

func abCampaign() Campaign {
	return Campaign{
		ID:             1,
		Key:            "camp1",
		Type:           CampaignAB,
		Status:         statusRunning,
		PercentTraffic: 100,
		Salt:           "",
		Variations: []Variation{
			{ID: 1, Name: "a", Weight: 50, StartRange: 1, EndRange: 5000},
			{ID: 2, Name: "b", Weight: 50, StartRange: 5001, EndRange: 10000},
		},
	}
}

func TestIsUserPartOfCampaign_FullTrafficAlwaysPasses(t *testing.T) {
	assert.True(t, isUserPartOfCampaign("user1", abCampaign()))
}

func TestIsUserPartOfCampaign_ZeroTrafficNeverPasses(t *testing.T) {
	c := abCampaign()
	c.PercentTraffic = 0
	assert.False(t, isUserPartOfCampaign("user1", c))
}

func TestGetVariationAlloted_AssignsOneOfTheVariations(t *testing.T) {
	variation, ok := getVariationAlloted("user1", "acct1", abCampaign())
	assert.True(t, ok)
	assert.Contains(t, []int{1, 2}, variation.ID)
}

func TestGetVariationAlloted_RolloutUsesSingleVariation(t *testing.T) {
	rollout := Campaign{
		ID:     2,
		Type:   CampaignRollout,
		Status: statusRunning,
		Variations: []Variation{
			{ID: 10, Weight: 100, StartRange: 1, EndRange: 10000, Salt: "rollout-salt"},
		},
	}
	variation, ok := getVariationAlloted("user1", "acct1", rollout)
	assert.True(t, ok)
	assert.Equal(t, 10, variation.ID)
}

func TestSelectVariation_NoMatchReturnsFalse(t *testing.T) {
	_, ok := selectVariation(nil, 500)
	assert.False(t, ok)
}
