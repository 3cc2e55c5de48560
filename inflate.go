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
	"regexp"
	"strings"
)

// gatewayKeywordRegexp matches any geo or UA segment DSL key that needs the
// gateway service to resolve; segmentNeedsGateway adds the inlist check.
// Mirrors the original source's segmentation-requirement scan.
var gatewayKeywordRegexp = regexp.MustCompile(`\b(country|region|city|os|device_type|browser_string|ua)\b`)

// inflate runs settings inflation (§4.4) in place: linking feature rules to
// deep-copied, range-allocated campaigns, and deriving each feature's
// gateway-service requirement.
func inflate(s *Settings) {
	for fi := range s.Features {
		feature := &s.Features[fi]
		feature.RulesLinkedCampaign = make([]Campaign, 0, len(feature.Rules))
		for _, rule := range feature.Rules {
			source, ok := s.campaignByID(rule.CampaignID)
			if !ok {
				continue
			}
			linked := cloneCampaign(*source)
			linked.RuleKey = rule.RuleKey
			if rule.VariationID != nil {
				linked.Variations = filterVariation(linked.Variations, *rule.VariationID)
			}
			allocateCampaignRanges(&linked)
			feature.RulesLinkedCampaign = append(feature.RulesLinkedCampaign, linked)
		}
		feature.IsGatewayServiceRequired = requiresGateway(feature)
	}
}

func cloneCampaign(c Campaign) Campaign {
	clone := c
	clone.Variations = make([]Variation, len(c.Variations))
	copy(clone.Variations, c.Variations)
	for i := range clone.Variations {
		vars := make([]Variable, len(c.Variations[i].Variables))
		copy(vars, c.Variations[i].Variables)
		clone.Variations[i].Variables = vars
	}
	return clone
}

func filterVariation(variations []Variation, variationID int) []Variation {
	for _, v := range variations {
		if v.ID == variationID {
			return []Variation{v}
		}
	}
	return nil
}

// allocateCampaignRanges assigns Start/End ranges to every variation of an
// inflated campaign. AB campaigns partition [1,10000] across their variations;
// ROLLOUT/PERSONALIZE campaigns have exactly one variation whose range is
// [1, weight*100].
func allocateCampaignRanges(c *Campaign) {
	if len(c.Variations) == 0 {
		return
	}
	if c.Type == CampaignRollout || c.Type == CampaignPersonalize {
		v := &c.Variations[0]
		v.StartRange = 1
		v.EndRange = stepFor(v.Weight)
		return
	}
	weights := make([]float64, len(c.Variations))
	for i, v := range c.Variations {
		weights[i] = v.Weight
	}
	ranges := allocateRanges(weights)
	for i := range c.Variations {
		c.Variations[i].StartRange = ranges[i].Start
		c.Variations[i].EndRange = ranges[i].End
	}
}

func requiresGateway(f *Feature) bool {
	for _, rule := range f.RulesLinkedCampaign {
		if segmentNeedsGateway(rule.Segments) {
			return true
		}
		for _, v := range rule.Variations {
			if segmentNeedsGateway(v.Segments) {
				return true
			}
		}
	}
	return false
}

func segmentNeedsGateway(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	s := string(raw)
	if gatewayKeywordRegexp.MatchString(s) {
		return true
	}
	return strings.Contains(s, `"custom_variable"`) && strings.Contains(s, "inlist(")
}
