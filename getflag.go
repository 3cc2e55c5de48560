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
	"context"
	"time"

	"github.com/vwo/fme-go-sdk/events"
	"github.com/vwo/fme-go-sdk/segmentation"
)

// GetFlagResult is the outcome of a GetFlag call: whether the feature is
// enabled for the user, and the variable payload of whichever variation was
// selected (the zero value if nothing matched).
type GetFlagResult struct {
	enabled   bool
	variables []Variable
}

// IsEnabled reports whether the feature was turned on for this user.
func (r GetFlagResult) IsEnabled() bool { return r.enabled }

// GetVariables returns every variable attached to the decided variation.
func (r GetFlagResult) GetVariables() []Variable { return r.variables }

// GetVariable looks up a single variable by key, returning def if the
// feature was off or the key is not present on the decided variation.
func (r GetFlagResult) GetVariable(key string, def interface{}) interface{} {
	for _, v := range r.variables {
		if v.Key == key {
			return v.Value()
		}
	}
	return def
}

// decisionOutcome carries everything GetFlag needs to persist, report, and
// return once a rule (or storage) has settled the decision.
type decisionOutcome struct {
	enabled    bool
	campaign   Campaign
	variation  *Variation
	isRollout  bool
	// fromStorage marks a decision read back from a sticky storage record.
	fromStorage bool
}

// GetFlag evaluates featureKey for userCtx, implementing §4.8. A stored
// experiment triple short-circuits everything else; a stored rollout triple
// is kept as a baseline but the experiment cascade still runs on top of it,
// since a matching experiment overrides a rollout's decision whether that
// rollout came from storage or was just evaluated.
func (c *Client) GetFlag(ctx context.Context, featureKey string, userCtx UserContext) (GetFlagResult, error) {
	if c.closed.Load() {
		return GetFlagResult{}, ErrClientClosed
	}

	rc, ok := resolveContext(c.accountID, userCtx)
	if !ok {
		return GetFlagResult{}, ErrInvalidContext
	}

	settings := c.currentSettings()
	if settings == nil {
		return GetFlagResult{}, ErrSettingsUnavailable
	}

	feature, ok := settings.FeatureByKey(featureKey)
	if !ok {
		return GetFlagResult{}, ErrFeatureNotFound
	}

	state := newRequestState()

	baseline, storedRecord, hit := c.decisionFromStorage(*feature, rc)
	var outcome decisionOutcome
	switch hit {
	case storageExperimentHit:
		outcome = baseline
	case storageRolloutHit:
		outcome = c.decideWithRolloutBaseline(settings, *feature, rc, state, baseline, storedRecord)
	default:
		outcome = c.decide(settings, *feature, rc, state)
	}

	result := GetFlagResult{enabled: outcome.enabled}
	if outcome.enabled && outcome.variation != nil {
		result.variables = outcome.variation.Variables
	}

	c.reportDecision(*feature, outcome, rc)
	return result, nil
}

// storageHit classifies what decisionFromStorage found.
type storageHit int

const (
	storageMiss storageHit = iota
	storageExperimentHit
	storageRolloutHit
)

// decisionFromStorage looks for a previously persisted sticky decision for
// this (featureKey, userId) pair. Per the pinned stickiness rule: an
// experiment triple is authoritative and returned as-is; a rollout triple is
// only a baseline, since an experiment can still override it.
func (c *Client) decisionFromStorage(feature Feature, ctx resolvedContext) (decisionOutcome, StorageRecord, storageHit) {
	if !c.storage.enabled() {
		return decisionOutcome{}, StorageRecord{}, storageMiss
	}
	record, found := c.storage.get(context.Background(), feature.Key, ctx.ID)
	if !found {
		return decisionOutcome{}, StorageRecord{}, storageMiss
	}
	if record.hasExperimentTriple() {
		if campaign, variation, ok := findRuleAndVariation(feature, record.ExperimentKey, record.ExperimentVariationID); ok {
			return decisionOutcome{enabled: true, campaign: campaign, variation: variation, fromStorage: true}, record, storageExperimentHit
		}
	}
	if record.hasRolloutTriple() {
		if campaign, variation, ok := findRuleAndVariation(feature, record.RolloutKey, record.RolloutVariationID); ok {
			return decisionOutcome{enabled: true, campaign: campaign, variation: variation, isRollout: true, fromStorage: true}, record, storageRolloutHit
		}
	}
	return decisionOutcome{}, StorageRecord{}, storageMiss
}

func findRuleAndVariation(feature Feature, ruleKey string, variationID int) (Campaign, *Variation, bool) {
	for _, rule := range feature.RulesLinkedCampaign {
		if rule.RuleKey != ruleKey {
			continue
		}
		if v, ok := selectVariationByID(rule.Variations, variationID); ok {
			return rule, v, true
		}
	}
	return Campaign{}, nil, false
}

func selectVariationByID(variations []Variation, id int) (*Variation, bool) {
	for i := range variations {
		if variations[i].ID == id {
			return &variations[i], true
		}
	}
	return nil, false
}

// decide runs the rollout cascade, then falls into the experiment cascade
// whenever the feature has no rollout rules at all, or its rollout cascade
// just turned the feature on. A matching experiment overrides the rollout's
// variation; the rollout stands only when no experiment matches. This
// mirrors get_flag_api.py's should_check_for_experiment_rules: it is set the
// moment a rollout rule clears its traffic check, and is true unconditionally
// when the feature defines no rollout rules.
func (c *Client) decide(settings *Settings, feature Feature, ctx resolvedContext, state *requestState) decisionOutcome {
	var rollouts, experiments []Campaign
	for _, rule := range feature.RulesLinkedCampaign {
		if rule.Type == CampaignRollout {
			rollouts = append(rollouts, rule)
		} else {
			experiments = append(experiments, rule)
		}
	}

	outcome := decisionOutcome{}
	record := StorageRecord{FeatureKey: feature.Key, UserID: ctx.ID}
	shouldCheckExperiments := len(rollouts) == 0

	if len(rollouts) > 0 {
		if rolloutOutcome := c.runRolloutCascade(settings, feature, rollouts, ctx, state); rolloutOutcome.enabled {
			outcome = rolloutOutcome
			record.RolloutID = rolloutOutcome.campaign.ID
			record.RolloutKey = rolloutOutcome.campaign.RuleKey
			record.RolloutVariationID = rolloutOutcome.variation.ID
			shouldCheckExperiments = true
		}
	}

	if shouldCheckExperiments {
		if experimentOutcome := c.runExperimentCascade(settings, feature, experiments, ctx, state); experimentOutcome.enabled {
			outcome = experimentOutcome
			record.ExperimentID = experimentOutcome.campaign.ID
			record.ExperimentKey = experimentOutcome.campaign.RuleKey
			record.ExperimentVariationID = experimentOutcome.variation.ID
		}
	}

	if outcome.enabled {
		c.storage.set(context.Background(), record)
	}
	return outcome
}

// decideWithRolloutBaseline runs only the experiment cascade on top of a
// rollout decision that came from a sticky storage hit, letting a matching
// experiment override the stored rollout the same way a freshly evaluated one
// would. The stored rollout fields are carried into the merged record so a
// later lookup still finds both triples, matching the single accumulated
// storage write get_flag_api.py performs at the end of a decision.
func (c *Client) decideWithRolloutBaseline(settings *Settings, feature Feature, ctx resolvedContext, state *requestState, baseline decisionOutcome, storedRecord StorageRecord) decisionOutcome {
	var experiments []Campaign
	for _, rule := range feature.RulesLinkedCampaign {
		if rule.Type != CampaignRollout {
			experiments = append(experiments, rule)
		}
	}

	experimentOutcome := c.runExperimentCascade(settings, feature, experiments, ctx, state)
	if !experimentOutcome.enabled {
		return baseline
	}

	record := storedRecord
	record.ExperimentID = experimentOutcome.campaign.ID
	record.ExperimentKey = experimentOutcome.campaign.RuleKey
	record.ExperimentVariationID = experimentOutcome.variation.ID
	c.storage.set(context.Background(), record)
	return experimentOutcome
}

// runRolloutCascade implements the first-match rule for ROLLOUT rules: the
// first rule that passes MEG gating and pre-segmentation commits the
// decision, whether or not it then clears the traffic check.
func (c *Client) runRolloutCascade(settings *Settings, feature Feature, rollouts []Campaign, ctx resolvedContext, state *requestState) decisionOutcome {
	for _, campaign := range rollouts {
		if !campaign.IsRunning() {
			continue
		}
		if groupID, inGroup := groupIDFor(settings, campaign); inGroup && !c.isMEGWinner(settings, feature, groupID, campaign, ctx, state) {
			continue
		}
		evalCtx := c.buildEvalContext(campaign, ctx)
		if !c.getPreSegmentationDecision(campaign, evalCtx) {
			continue
		}
		variation, ok := getVariationAlloted(ctx.ID, c.accountID, campaign)
		if !ok {
			return decisionOutcome{isRollout: true, campaign: campaign}
		}
		return decisionOutcome{enabled: true, campaign: campaign, variation: variation, isRollout: true}
	}
	return decisionOutcome{}
}

// runExperimentCascade implements the first-match rule for AB/PERSONALIZE
// rules, including whitelisting's immediate-finalize short-circuit.
func (c *Client) runExperimentCascade(settings *Settings, feature Feature, experiments []Campaign, ctx resolvedContext, state *requestState) decisionOutcome {
	for _, campaign := range experiments {
		if !campaign.IsRunning() {
			continue
		}
		if groupID, inGroup := groupIDFor(settings, campaign); inGroup && !c.isMEGWinner(settings, feature, groupID, campaign, ctx, state) {
			continue
		}

		if wl, ok := c.evaluateWhitelisting(campaign, ctx); ok {
			variation := wl.Variation
			return decisionOutcome{enabled: true, campaign: campaign, variation: &variation}
		}

		evalCtx := c.buildEvalContext(campaign, ctx)
		if !c.getPreSegmentationDecision(campaign, evalCtx) {
			continue
		}
		variation, ok := getVariationAlloted(ctx.ID, c.accountID, campaign)
		if !ok {
			return decisionOutcome{campaign: campaign}
		}
		return decisionOutcome{enabled: true, campaign: campaign, variation: variation}
	}
	return decisionOutcome{}
}

// buildEvalContext assembles the segmentation.EvalContext a campaign's DSL is
// evaluated against: the caller's custom variables plus location/UA data,
// taken from the caller's pre-resolved VWO data or, when either map is still
// missing and a gateway is configured, from the gateway service. The
// feature's IsGatewayServiceRequired flag is not consulted.
func (c *Client) buildEvalContext(campaign Campaign, ctx resolvedContext) segmentation.EvalContext {
	properties := stringifyProperties(ctx.CustomVariables)
	properties["_vwoUserId"] = ctx.ID

	evalCtx := segmentation.EvalContext{
		Properties:       properties,
		UserAgent:        ctx.UserAgent,
		IPAddress:        ctx.IPAddress,
		CheckInlist:      c.checkInlist(ctx.ID),
		HasFeatureRecord: c.hasFeatureRecord(ctx.ID),
		OnError: func(err error) {
			c.logger.Debug().Err(err).Str("campaign_key", campaign.Key).Msg("segmentation predicate error")
		},
	}
	if ctx.VWO != nil {
		evalCtx.Location = ctx.VWO.Location
		evalCtx.UAInfo = ctx.VWO.UAInfo
	}
	if (evalCtx.Location == nil || evalCtx.UAInfo == nil) && c.gateway != nil {
		location, uaInfo, err := c.gateway.ResolveUserData(context.Background(), ctx.UserAgent, ctx.IPAddress)
		if err != nil {
			c.logger.Debug().Err(err).Msg("gateway resolution failed")
		} else {
			if evalCtx.Location == nil {
				evalCtx.Location = location
			}
			if evalCtx.UAInfo == nil {
				evalCtx.UAInfo = uaInfo
			}
		}
	}
	return evalCtx
}

func (c *Client) checkInlist(userID string) func(attribute, listID string) (bool, error) {
	return func(attribute, listID string) (bool, error) {
		if c.gateway == nil {
			return false, ErrSettingsUnavailable
		}
		return c.gateway.CheckInlist(context.Background(), c.accountID, attribute, listID, userID)
	}
}

func (c *Client) hasFeatureRecord(userID string) func(string) bool {
	return func(featureKey string) bool {
		if !c.storage.enabled() {
			return false
		}
		_, found := c.storage.get(context.Background(), featureKey, userID)
		return found
	}
}

// reportDecision emits the variation-shown impression, the impact-campaign
// impression, and the integration hook, in that order, fire-and-forget
// (failures never reach the caller). A decision read back from storage emits
// no variation-shown impression, and a stored experiment hit emits no impact
// impression either; the hook runs for every decision.
func (c *Client) reportDecision(feature Feature, outcome decisionOutcome, ctx resolvedContext) {
	now := time.Now().Unix()
	info := DecisionInfo{
		FeatureKey:  feature.Key,
		FeatureName: feature.Name,
		UserID:      ctx.ID,
		IsEnabled:   outcome.enabled,
	}

	if outcome.variation != nil {
		info.VariationName = outcome.variation.Name
		info.VariationID = outcome.variation.ID
		info.RuleKey = outcome.campaign.RuleKey
		if outcome.isRollout {
			info.RolloutID = outcome.campaign.ID
			info.RolloutKey = outcome.campaign.RuleKey
		} else {
			info.ExperimentID = outcome.campaign.ID
			info.ExperimentKey = outcome.campaign.RuleKey
		}
		if !outcome.fromStorage {
			c.eventsBatcher.Enqueue(events.Impression(ctx.ID, ctx.uuid, ctx.sessionID, outcome.campaign.ID, outcome.variation.ID, now))
		}
	}

	if feature.ImpactCampaign != nil && !(outcome.fromStorage && !outcome.isRollout) {
		c.emitImpactImpression(*feature.ImpactCampaign, outcome.enabled, ctx, now)
	}

	c.invokeHook(info)
}

// emitImpactImpression reports exposure to a feature's impact campaign
// regardless of which rule decided the flag: variation id 2 means "enabled",
// variation id 1 means "disabled", matching the two-armed impact campaigns VWO
// settings always construct.
func (c *Client) emitImpactImpression(impact ImpactCampaign, enabled bool, ctx resolvedContext, timestamp int64) {
	settings := c.currentSettings()
	campaign, ok := settings.campaignByID(impact.CampaignID)
	if !ok || len(campaign.Variations) < 2 {
		return
	}
	variationID := 1
	if enabled {
		variationID = 2
	}
	c.eventsBatcher.Enqueue(events.Impression(ctx.ID, ctx.uuid, ctx.sessionID, campaign.ID, variationID, timestamp))
}
