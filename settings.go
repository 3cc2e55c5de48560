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
	"bytes"
	"encoding/json"
	"strconv"

	"golang.org/x/xerrors"
)

// VariableType is the tagged-variant discriminator for a Variable's dynamically
// typed value.
type VariableType string

// Recognized variable types.
const (
	VariableString  VariableType = "string"
	VariableInteger VariableType = "integer"
	VariableDouble  VariableType = "double"
	VariableBoolean VariableType = "boolean"
	VariableJSON    VariableType = "json"
)

// Variable is one feature flag payload value. It is immutable once parsed; callers
// read it through Value, StringValue, and friends rather than the raw field.
type Variable struct {
	ID   int
	Key  string
	Type VariableType
	raw  json.RawMessage
}

// Value decodes the variable's value into the Go type matching Type.
func (v Variable) Value() interface{} {
	switch v.Type {
	case VariableInteger:
		var i int64
		_ = json.Unmarshal(v.raw, &i)
		return i
	case VariableDouble:
		var f float64
		_ = json.Unmarshal(v.raw, &f)
		return f
	case VariableBoolean:
		var b bool
		_ = json.Unmarshal(v.raw, &b)
		return b
	case VariableJSON:
		var m interface{}
		_ = json.Unmarshal(v.raw, &m)
		return m
	default:
		var s string
		_ = json.Unmarshal(v.raw, &s)
		return s
	}
}

// StringValue returns the variable rendered as a string regardless of Type.
func (v Variable) StringValue() string {
	if s, ok := v.Value().(string); ok {
		return s
	}
	return string(bytes.Trim(v.raw, `"`))
}

// CampaignType distinguishes the three campaign shapes a Settings document carries.
type CampaignType string

// Recognized campaign types.
const (
	CampaignAB          CampaignType = "AB"
	CampaignPersonalize CampaignType = "PERSONALIZE"
	CampaignRollout     CampaignType = "ROLLOUT"
)

const statusRunning = "RUNNING"

// Variation is one arm of a Campaign, carrying the variables a matched user
// receives. StartRange/EndRange are populated by allocation (see inflate.go) and
// are meaningless before that point.
type Variation struct {
	ID         int
	Name       string
	Weight     float64
	StartRange int
	EndRange   int
	Salt       string
	Segments   json.RawMessage
	Variables  []Variable
}

func (v Variation) inRange(bucketValue int) bool {
	return bucketingRange{v.StartRange, v.EndRange}.contains(bucketValue)
}

// Campaign is a single experiment, rollout, or personalize ruleset. RuleKey is
// empty on a Settings.Campaigns entry and is overwritten on every inflated copy
// hanging off a Feature's RulesLinkedCampaign (see inflate.go).
type Campaign struct {
	ID                       int
	Key                      string
	RuleKey                  string
	Name                     string
	Type                     CampaignType
	Status                   string
	PercentTraffic           float64
	Salt                     string
	Segments                 json.RawMessage
	IsForcedVariationEnabled bool
	IsAlwaysCheckSegment     bool
	IsUserListEnabled        bool
	Variations               []Variation
}

// IsRunning reports whether the campaign is eligible for evaluation at all.
func (c Campaign) IsRunning() bool {
	return c.Status == statusRunning
}

// ref returns the campaignGroups lookup key for this campaign: the bare campaign
// id for AB/ROLLOUT, or "<id>_<variationId>" for a PERSONALIZE rule copy.
func (c Campaign) ref() string {
	if c.Type == CampaignPersonalize && len(c.Variations) == 1 {
		return strconv.Itoa(c.ID) + "_" + strconv.Itoa(c.Variations[0].ID)
	}
	return strconv.Itoa(c.ID)
}

// Metric is a tracked outcome identifier attached to a Feature.
type Metric struct {
	Identifier string
}

// ImpactCampaign is the optional "feature impact" campaign a Feature reports an
// impression to regardless of which rule decided the flag.
type ImpactCampaign struct {
	CampaignID int
}

// FeatureRuleType mirrors CampaignType for the rules hanging off a Feature.
type FeatureRuleType string

// Recognized feature rule types.
const (
	RuleTypeRollout     FeatureRuleType = "ROLLOUT"
	RuleTypeAB          FeatureRuleType = "AB"
	RuleTypePersonalize FeatureRuleType = "PERSONALIZE"
)

// FeatureRule references a Campaign (and, for PERSONALIZE, one of its variations)
// by id, under a rule-scoped key.
type FeatureRule struct {
	Type        FeatureRuleType
	RuleKey     string
	CampaignID  int
	VariationID *int
}

// Feature is the evaluation unit GetFlag operates on. RulesLinkedCampaign and
// IsGatewayServiceRequired are populated by inflation (see inflate.go); they are
// never present on the raw wire payload.
type Feature struct {
	ID                       int
	Key                      string
	Name                     string
	Type                     string
	Status                   string
	Metrics                  []Metric
	ImpactCampaign           *ImpactCampaign
	Rules                    []FeatureRule
	RulesLinkedCampaign      []Campaign
	IsGatewayServiceRequired bool
}

// Group is a Mutually-Exclusive Group: at most one of Campaigns may activate for
// a given user within one request. EvaluationType 1 selects the random algorithm;
// anything else selects priority/weighted arbitration (see meg.go).
type Group struct {
	Name           string
	Campaigns      []string
	EvaluationType int
	Priority       []string
	Weights        map[string]float64
}

// Settings is the parsed, inflated representation of one signed settings
// document. It is immutable after ParseSettings/inflate return it; the Client
// swaps snapshots atomically rather than mutating one in place.
type Settings struct {
	AccountID        string
	SDKKey           string
	Version          int
	PollInterval     int
	CollectionPrefix string
	Campaigns        []Campaign
	Features         []Feature
	Groups           map[string]Group
	CampaignGroups   map[string]string

	campaignsByKey map[string]*Campaign
	featuresByKey  map[string]*Feature
}

// FeatureByKey looks up a Feature by its unique key.
func (s *Settings) FeatureByKey(key string) (*Feature, bool) {
	if s == nil {
		return nil, false
	}
	f, ok := s.featuresByKey[key]
	return f, ok
}

// CampaignByKey looks up a top-level Campaign (not an inflated rule copy) by key.
func (s *Settings) CampaignByKey(key string) (*Campaign, bool) {
	if s == nil {
		return nil, false
	}
	c, ok := s.campaignsByKey[key]
	return c, ok
}

func (s *Settings) index() {
	s.campaignsByKey = make(map[string]*Campaign, len(s.Campaigns))
	for i := range s.Campaigns {
		s.campaignsByKey[s.Campaigns[i].Key] = &s.Campaigns[i]
	}
	s.featuresByKey = make(map[string]*Feature, len(s.Features))
	for i := range s.Features {
		s.featuresByKey[s.Features[i].Key] = &s.Features[i]
	}
}

// campaignByID is used during inflation, before the by-key index is meaningful
// for rule resolution (rules reference campaigns by id, not key).
func (s *Settings) campaignByID(id int) (*Campaign, bool) {
	for i := range s.Campaigns {
		if s.Campaigns[i].ID == id {
			return &s.Campaigns[i], true
		}
	}
	return nil, false
}

// --- wire format -----------------------------------------------------------

type settingsDTO struct {
	AccountID        json.Number        `json:"accountId"`
	SDKKey           string             `json:"sdkKey"`
	Version          int                `json:"version"`
	PollInterval     int                `json:"pollInterval"`
	CollectionPrefix string             `json:"collectionPrefix"`
	Campaigns        flexibleList[campaignDTO] `json:"campaigns"`
	Features         flexibleList[featureDTO]  `json:"features"`
	Groups           map[string]groupDTO       `json:"groups"`
	CampaignGroups   map[string]string         `json:"campaignGroups"`
}

type variableDTO struct {
	ID    int             `json:"id"`
	Key   string          `json:"key"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type variationDTO struct {
	ID                 int             `json:"id"`
	Name               string          `json:"name"`
	Weight             float64         `json:"weight"`
	StartRangeVariation int            `json:"startRangeVariation"`
	EndRangeVariation   int            `json:"endRangeVariation"`
	Salt               string          `json:"salt"`
	Segments           json.RawMessage `json:"segments"`
	Variables          []variableDTO   `json:"variables"`
}

type campaignDTO struct {
	ID                       int             `json:"id"`
	Key                      string          `json:"key"`
	Name                     string          `json:"name"`
	Type                     string          `json:"type"`
	Status                   string          `json:"status"`
	PercentTraffic           float64         `json:"percentTraffic"`
	Salt                     string          `json:"salt"`
	Segments                 json.RawMessage `json:"segments"`
	IsForcedVariationEnabled bool            `json:"isForcedVariationEnabled"`
	IsAlwaysCheckSegment     bool            `json:"isAlwaysCheckSegment"`
	IsUserListEnabled        bool            `json:"isUserListEnabled"`
	Variations               []variationDTO  `json:"variations"`
}

type metricDTO struct {
	Identifier string `json:"identifier"`
}

type impactCampaignDTO struct {
	CampaignID int `json:"campaignId"`
}

type featureRuleDTO struct {
	Type        string `json:"type"`
	RuleKey     string `json:"ruleKey"`
	CampaignID  int    `json:"campaignId"`
	VariationID *int   `json:"variationId"`
}

type featureDTO struct {
	ID             int                `json:"id"`
	Key            string             `json:"key"`
	Name           string             `json:"name"`
	Type           string             `json:"type"`
	Status         string             `json:"status"`
	Metrics        []metricDTO        `json:"metrics"`
	ImpactCampaign *impactCampaignDTO `json:"impactCampaign"`
	Rules          []featureRuleDTO   `json:"rules"`
}

type groupDTO struct {
	Name      string             `json:"name"`
	Campaigns []string           `json:"campaigns"`
	Et        int                `json:"et"`
	P         []string           `json:"p"`
	Wt        map[string]float64 `json:"wt"`
}

// flexibleList unmarshals a JSON array normally, and a JSON object (the empty
// placeholder "{}" the settings endpoint sends instead of "[]") as an empty list.
type flexibleList[T any] []T

func (l *flexibleList[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		*l = nil
		return nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// ParseSettings decodes a settings document already extracted from its signed
// envelope (see settingsapi.VerifyEnvelope) and inflates it per §4.4.
func ParseSettings(raw []byte) (*Settings, error) {
	var dto settingsDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, xerrors.Errorf("decoding settings document: %w", err)
	}

	settings := &Settings{
		AccountID:        dto.AccountID.String(),
		SDKKey:           dto.SDKKey,
		Version:          dto.Version,
		PollInterval:     dto.PollInterval,
		CollectionPrefix: dto.CollectionPrefix,
		CampaignGroups:   dto.CampaignGroups,
	}
	if settings.CampaignGroups == nil {
		settings.CampaignGroups = map[string]string{}
	}

	settings.Campaigns = make([]Campaign, len(dto.Campaigns))
	for i, c := range dto.Campaigns {
		settings.Campaigns[i] = campaignFromDTO(c)
	}

	settings.Features = make([]Feature, len(dto.Features))
	for i, f := range dto.Features {
		settings.Features[i] = featureFromDTO(f)
	}

	settings.Groups = make(map[string]Group, len(dto.Groups))
	for id, g := range dto.Groups {
		settings.Groups[id] = Group{
			Name:           g.Name,
			Campaigns:      g.Campaigns,
			EvaluationType: g.Et,
			Priority:       g.P,
			Weights:        g.Wt,
		}
	}

	settings.index()
	inflate(settings)
	return settings, nil
}

func campaignFromDTO(c campaignDTO) Campaign {
	variations := make([]Variation, len(c.Variations))
	for i, v := range c.Variations {
		variations[i] = variationFromDTO(v)
	}
	return Campaign{
		ID:                       c.ID,
		Key:                      c.Key,
		Name:                     c.Name,
		Type:                     CampaignType(c.Type),
		Status:                   c.Status,
		PercentTraffic:           c.PercentTraffic,
		Salt:                     c.Salt,
		Segments:                 c.Segments,
		IsForcedVariationEnabled: c.IsForcedVariationEnabled,
		IsAlwaysCheckSegment:     c.IsAlwaysCheckSegment,
		IsUserListEnabled:        c.IsUserListEnabled,
		Variations:               variations,
	}
}

func variationFromDTO(v variationDTO) Variation {
	vars := make([]Variable, len(v.Variables))
	for i, raw := range v.Variables {
		vars[i] = Variable{ID: raw.ID, Key: raw.Key, Type: VariableType(raw.Type), raw: raw.Value}
	}
	return Variation{
		ID:         v.ID,
		Name:       v.Name,
		Weight:     v.Weight,
		StartRange: v.StartRangeVariation,
		EndRange:   v.EndRangeVariation,
		Salt:       v.Salt,
		Segments:   v.Segments,
		Variables:  vars,
	}
}

func featureFromDTO(f featureDTO) Feature {
	metrics := make([]Metric, len(f.Metrics))
	for i, m := range f.Metrics {
		metrics[i] = Metric{Identifier: m.Identifier}
	}
	rules := make([]FeatureRule, len(f.Rules))
	for i, r := range f.Rules {
		rules[i] = FeatureRule{
			Type:        FeatureRuleType(r.Type),
			RuleKey:     r.RuleKey,
			CampaignID:  r.CampaignID,
			VariationID: r.VariationID,
		}
	}
	var impact *ImpactCampaign
	if f.ImpactCampaign != nil {
		impact = &ImpactCampaign{CampaignID: f.ImpactCampaign.CampaignID}
	}
	return Feature{
		ID:             f.ID,
		Key:            f.Key,
		Name:           f.Name,
		Type:           f.Type,
		Status:         f.Status,
		Metrics:        metrics,
		ImpactCampaign: impact,
		Rules:          rules,
	}
}
