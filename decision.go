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

// campaignTrafficAndSalt resolves the (traffic, salt) pair the membership check
// uses: the single variation's weight/salt for ROLLOUT/PERSONALIZE, the
// campaign's own percentTraffic/salt for AB.
func campaignTrafficAndSalt(c Campaign) (float64, string) {
	if c.Type == CampaignRollout || c.Type == CampaignPersonalize {
		if len(c.Variations) == 0 {
			return 0, ""
		}
		return c.Variations[0].Weight, c.Variations[0].Salt
	}
	return c.PercentTraffic, c.Salt
}

// isUserPartOfCampaign is the traffic gate (§4.5): true iff the user's bucket on
// a [1,100] scale falls within the campaign's (or rollout variation's) traffic
// percent.
func isUserPartOfCampaign(userID string, campaign Campaign) bool {
	traffic, salt := campaignTrafficAndSalt(campaign)
	seed := bucketingSeed(salt, strconv.Itoa(campaign.ID), userID)
	value := BucketForUser(seed, 100)
	return value > 0 && value <= int(traffic)
}

// selectVariation is a plain range-containment lookup over already-allocated
// variations.
func selectVariation(variations []Variation, bucketValue int) (*Variation, bool) {
	for i := range variations {
		if variations[i].inRange(bucketValue) {
			return &variations[i], true
		}
	}
	return nil, false
}

// bucketUserToVariation buckets userID into one of campaign's variations on the
// [1,10000] scale, seeded with the account id in addition to the campaign/salt
// so the same user buckets differently across VWO accounts.
func bucketUserToVariation(userID, accountID string, campaign Campaign) (*Variation, bool) {
	_, salt := campaignTrafficAndSalt(campaign)
	prefix := strconv.Itoa(campaign.ID)
	if salt != "" {
		prefix = salt
	}
	seed := prefix + "_" + accountID + "_" + userID
	value := Bucket(Hash(seed), maxTrafficValue, 1)
	return selectVariation(campaign.Variations, value)
}

// getPreSegmentationDecision evaluates a campaign's DSL segments against the
// supplied evaluation context. A campaign with no segments always passes; a
// malformed DSL document logs and fails closed, per §4.2.
func (c *Client) getPreSegmentationDecision(campaign Campaign, evalCtx segmentation.EvalContext) bool {
	if len(campaign.Segments) == 0 {
		return true
	}
	node, err := segmentation.Parse(campaign.Segments)
	if err != nil {
		c.logger.Debug().Err(err).Str("campaign_key", campaign.Key).Msg("malformed segment DSL, failing closed")
		return false
	}
	return segmentation.Evaluate(node, evalCtx)
}

// getVariationAlloted combines the membership check with variation selection:
// for ROLLOUT/PERSONALIZE the single variation wins once membership passes, for
// AB the user is bucketed across the campaign's variations.
func getVariationAlloted(userID, accountID string, campaign Campaign) (*Variation, bool) {
	if !isUserPartOfCampaign(userID, campaign) {
		return nil, false
	}
	if campaign.Type == CampaignRollout || campaign.Type == CampaignPersonalize {
		if len(campaign.Variations) == 0 {
			return nil, false
		}
		return &campaign.Variations[0], true
	}
	return bucketUserToVariation(userID, accountID, campaign)
}
