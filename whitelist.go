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
	"strconv"

	"github.com/vwo/fme-go-sdk/segmentation"
)

// whitelistResult is the outcome of a successful forced-variation match;
// GetFlag skips bucketing entirely once this is produced.
type whitelistResult struct {
	Variation     Variation
	VariationName string
	VariationID   int
}

// evaluateWhitelisting implements §4.6. Only AB campaigns with
// IsForcedVariationEnabled participate; every other campaign short-circuits to
// "no whitelist match" so the caller falls through to ordinary pre-segmentation.
func (c *Client) evaluateWhitelisting(campaign Campaign, ctx resolvedContext) (*whitelistResult, bool) {
	if campaign.Type != CampaignAB || !campaign.IsForcedVariationEnabled {
		return nil, false
	}

	vwoUserID := ctx.ID
	if campaign.IsUserListEnabled {
		vwoUserID = ctx.uuid
	}
	properties := stringifyProperties(ctx.VariationTargetingVariables)
	properties["_vwoUserId"] = vwoUserID
	evalCtx := segmentation.EvalContext{Properties: properties}

	candidates := make([]Variation, 0, len(campaign.Variations))
	for _, v := range campaign.Variations {
		if len(v.Segments) == 0 {
			continue
		}
		node, err := segmentation.Parse(v.Segments)
		if err != nil {
			c.logger.Debug().Err(err).Str("campaign_key", campaign.Key).Msg("malformed whitelist segment DSL")
			continue
		}
		if segmentation.Evaluate(node, evalCtx) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}

	weights := make([]float64, len(candidates))
	for i, v := range candidates {
		weights[i] = v.Weight
	}
	ranges := allocateRanges(weights)
	for i := range candidates {
		candidates[i].StartRange = ranges[i].Start
		candidates[i].EndRange = ranges[i].End
	}

	seed := bucketingSeed(campaign.Salt, strconv.Itoa(campaign.ID), ctx.ID)
	value := BucketForUser(seed, maxTrafficValue)
	variation, ok := selectVariation(candidates, value)
	if !ok {
		return nil, false
	}
	return &whitelistResult{Variation: *variation, VariationName: variation.Name, VariationID: variation.ID}, true
}

func stringifyProperties(m map[string]interface{}) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = segmentation.NormalizeTagValue(v)
	}
	return out
}
