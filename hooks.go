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

// DecisionInfo summarizes one GetFlag decision for an integration callback:
// analytics pipelines, debug logging, or a caller's own experiment registry.
type DecisionInfo struct {
	FeatureKey     string
	FeatureName    string
	UserID         string
	IsEnabled      bool
	VariationName  string
	VariationID    int
	RuleKey        string
	RolloutID      int
	RolloutKey     string
	ExperimentID   int
	ExperimentKey  string
}

// HookFunc receives a DecisionInfo after every GetFlag call.
type HookFunc func(DecisionInfo)

// invokeHook calls the configured hook, recovering from and logging any panic
// so a caller's integration bug never takes down a decision call (§7).
func (c *Client) invokeHook(info DecisionInfo) {
	if c.hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Str("feature_key", info.FeatureKey).
				Msg("integration hook panicked, recovered")
		}
	}()
	c.hook(info)
}
