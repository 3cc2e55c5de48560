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

import "context"

// megCandidate pairs an inflated campaign rule with the feature key it was
// reached through, since a group's campaignRefs are resolved across every
// feature in the settings document.
type megCandidate struct {
	FeatureKey string
	Campaign   Campaign
}

// requestState is the per-GetFlag-call mutable scratch space described in §5:
// never shared across goroutines, created fresh for every call.
type requestState struct {
	megGroupWinnerCampaigns map[string]string
}

func newRequestState() *requestState {
	return &requestState{megGroupWinnerCampaigns: make(map[string]string)}
}

// groupIDFor looks up the Mutually-Exclusive Group a campaign rule participates
// in, if any.
func groupIDFor(settings *Settings, campaign Campaign) (string, bool) {
	id, ok := settings.CampaignGroups[campaign.ref()]
	return id, ok
}

// isMEGWinner resolves (and memoizes, per request, in state) the winning
// campaign ref for groupID and reports whether candidate is that winner. This
// implements §4.7 end to end.
func (c *Client) isMEGWinner(settings *Settings, feature Feature, groupID string, candidate Campaign, ctx resolvedContext, state *requestState) bool {
	winnerRef, ok := c.resolveMEGWinner(settings, groupID, ctx, state)
	if !ok {
		return false
	}
	return winnerRef == candidate.ref()
}

func (c *Client) resolveMEGWinner(settings *Settings, groupID string, ctx resolvedContext, state *requestState) (string, bool) {
	if winner, cached := state.megGroupWinnerCampaigns[groupID]; cached {
		return winner, winner != ""
	}

	group, ok := settings.Groups[groupID]
	if !ok {
		state.megGroupWinnerCampaigns[groupID] = ""
		return "", false
	}
	groupRefs := make(map[string]bool, len(group.Campaigns))
	for _, ref := range group.Campaigns {
		groupRefs[ref] = true
	}

	var candidates []megCandidate
	for _, f := range settings.Features {
		var featureCandidates []Campaign
		for _, rule := range f.RulesLinkedCampaign {
			if rule.Type != CampaignRollout && groupRefs[rule.ref()] {
				featureCandidates = append(featureCandidates, rule)
			}
		}
		if len(featureCandidates) == 0 {
			continue
		}
		if !c.featureRolloutsPass(f, ctx) {
			continue
		}
		for _, cand := range featureCandidates {
			candidates = append(candidates, megCandidate{FeatureKey: f.Key, Campaign: cand})
		}
	}
	if len(candidates) == 0 {
		state.megGroupWinnerCampaigns[groupID] = ""
		return "", false
	}

	var withStorage, eligible []megCandidate
	for _, cand := range candidates {
		if c.storage.enabled() {
			record, found := c.storage.get(context.Background(), cand.FeatureKey, ctx.ID)
			if found && record.ExperimentKey == cand.Campaign.RuleKey {
				withStorage = append(withStorage, cand)
				continue
			}
		}
		evalCtx := c.buildEvalContext(cand.Campaign, ctx)
		if c.getPreSegmentationDecision(cand.Campaign, evalCtx) && isUserPartOfCampaign(ctx.ID, cand.Campaign) {
			eligible = append(eligible, cand)
		}
	}

	pool := withStorage
	if len(pool) == 0 {
		pool = eligible
	}
	if len(pool) == 0 {
		state.megGroupWinnerCampaigns[groupID] = ""
		return "", false
	}

	var winner megCandidate
	switch {
	case len(pool) == 1:
		winner = pool[0]
	case group.EvaluationType == 1:
		winner = pickRandomMEGWinner(pool, groupID, ctx.ID)
	default:
		winner = pickPriorityMEGWinner(pool, group, groupID, ctx.ID)
	}

	ref := winner.Campaign.ref()
	state.megGroupWinnerCampaigns[groupID] = ref
	c.persistMEGWinner(winner, groupID, ctx)
	return ref, true
}

func (c *Client) featureRolloutsPass(f Feature, ctx resolvedContext) bool {
	var rollouts []Campaign
	for _, r := range f.RulesLinkedCampaign {
		if r.Type == CampaignRollout {
			rollouts = append(rollouts, r)
		}
	}
	if len(rollouts) == 0 {
		return true
	}
	for _, r := range rollouts {
		evalCtx := c.buildEvalContext(r, ctx)
		if c.getPreSegmentationDecision(r, evalCtx) && isUserPartOfCampaign(ctx.ID, r) {
			return true
		}
	}
	return false
}

func pickRandomMEGWinner(pool []megCandidate, groupID, userID string) megCandidate {
	weights := make([]float64, len(pool))
	equal := 100.0 / float64(len(pool))
	for i := range weights {
		weights[i] = equal
	}
	return pickByZeroIndexedRange(pool, weights, groupID, userID)
}

func pickPriorityMEGWinner(pool []megCandidate, group Group, groupID, userID string) megCandidate {
	byRef := make(map[string]megCandidate, len(pool))
	for _, cand := range pool {
		byRef[cand.Campaign.ref()] = cand
	}
	for _, ref := range group.Priority {
		if cand, ok := byRef[ref]; ok {
			return cand
		}
	}
	weights := make([]float64, len(pool))
	for i, cand := range pool {
		weights[i] = group.Weights[cand.Campaign.ref()]
	}
	return pickByZeroIndexedRange(pool, weights, groupID, userID)
}

func pickByZeroIndexedRange(pool []megCandidate, weights []float64, groupID, userID string) megCandidate {
	ranges := allocateRangesZeroIndexed(weights)
	value := BucketForUser(groupID+"_"+userID, maxTrafficValue)
	for i, r := range ranges {
		if r.contains(value) {
			return pool[i]
		}
	}
	return pool[0]
}

func (c *Client) persistMEGWinner(winner megCandidate, groupID string, ctx resolvedContext) {
	if !c.storage.enabled() {
		return
	}
	record := StorageRecord{
		FeatureKey:            megStorageKey(groupID),
		UserID:                ctx.ID,
		ExperimentKey:         winner.Campaign.RuleKey,
		ExperimentID:          winner.Campaign.ID,
		ExperimentVariationID: -1,
	}
	if winner.Campaign.Type == CampaignPersonalize && len(winner.Campaign.Variations) == 1 {
		record.ExperimentVariationID = winner.Campaign.Variations[0].ID
	}
	c.storage.set(context.Background(), record)
}
