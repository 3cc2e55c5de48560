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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStorage is an in-memory fme.StorageConnector used across getflag tests.
type memStorage struct {
	mu      sync.Mutex
	records map[string]StorageRecord
}

func newMemStorage() *memStorage {
	return &memStorage{records: make(map[string]StorageRecord)}
}

func (m *memStorage) Get(_ context.Context, featureKey, userID string) (StorageRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[featureKey+":"+userID]
	return r, ok, nil
}

func (m *memStorage) Set(_ context.Context, record StorageRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.FeatureKey+":"+record.UserID] = record
	return true, nil
}

func settingsWithFeature(feature Feature) *Settings {
	s := &Settings{AccountID: "acct1", Features: []Feature{feature}}
	s.index()
	return s
}

func rolloutFeature(traffic float64) Feature {
	return Feature{
		ID:  1,
		Key: "my-feature",
		Name: "My Feature",
		RulesLinkedCampaign: []Campaign{
			{
				ID:      100,
				RuleKey: "rollout-rule",
				Type:    CampaignRollout,
				Status:  statusRunning,
				Variations: []Variation{
					{ID: 1, Name: "rollout-on", Weight: traffic, StartRange: 1, EndRange: int(traffic * 100)},
				},
			},
		},
	}
}

// rolloutAndExperimentFeature builds a feature with one ROLLOUT rule and one
// AB rule, so GetFlag's rollout-then-experiment stacking can be exercised.
// rolloutTraffic/experimentTraffic are traffic percents (0-100): the rollout's
// becomes its variation's Weight, the experiment's its PercentTraffic, and each
// variation covers [1, traffic*100]; a traffic of 100 always wins the traffic
// check and 0 always loses it.
func rolloutAndExperimentFeature(rolloutTraffic, experimentTraffic float64) Feature {
	return Feature{
		ID:   1,
		Key:  "my-feature",
		Name: "My Feature",
		RulesLinkedCampaign: []Campaign{
			{
				ID:      100,
				RuleKey: "rollout-rule",
				Type:    CampaignRollout,
				Status:  statusRunning,
				Variations: []Variation{
					{ID: 1, Name: "rollout-on", Weight: rolloutTraffic, StartRange: 1, EndRange: int(rolloutTraffic * 100)},
				},
			},
			{
				ID:             200,
				RuleKey:        "experiment-rule",
				Type:           CampaignAB,
				Status:         statusRunning,
				PercentTraffic: experimentTraffic,
				Variations: []Variation{
					{ID: 2, Name: "experiment-variation", StartRange: 1, EndRange: int(experimentTraffic * 100)},
				},
			},
		},
	}
}

func newTestClient(t *testing.T, settings *Settings, storage StorageConnector) *Client {
	t.Helper()
	c, err := New(WithSDKKey("sdk-key"), WithAccountID("acct1"), WithStorage(storage), WithInitialSettings(settings))
	require.NoError(t, err)
	return c
}

func TestGetFlag_FeatureNotFound(t *testing.T) {
	c := newTestClient(t, settingsWithFeature(rolloutFeature(100)), nil)
	_, err := c.GetFlag(context.Background(), "missing-feature", UserContext{ID: "user1"})
	assert.ErrorIs(t, err, ErrFeatureNotFound)
}

func TestGetFlag_InvalidContext(t *testing.T) {
	c := newTestClient(t, settingsWithFeature(rolloutFeature(100)), nil)
	_, err := c.GetFlag(context.Background(), "my-feature", UserContext{})
	assert.ErrorIs(t, err, ErrInvalidContext)
}

func TestGetFlag_SettingsUnavailable(t *testing.T) {
	c, err := New(WithSDKKey("sdk-key"), WithAccountID("acct1"))
	require.NoError(t, err)
	_, err = c.GetFlag(context.Background(), "my-feature", UserContext{ID: "user1"})
	assert.ErrorIs(t, err, ErrSettingsUnavailable)
}

func TestGetFlag_FullTrafficRolloutEnables(t *testing.T) {
	c := newTestClient(t, settingsWithFeature(rolloutFeature(100)), newMemStorage())
	result, err := c.GetFlag(context.Background(), "my-feature", UserContext{ID: "user1"})
	require.NoError(t, err)
	assert.True(t, result.IsEnabled())
}

func TestGetFlag_ZeroTrafficRolloutDisables(t *testing.T) {
	c := newTestClient(t, settingsWithFeature(rolloutFeature(0)), newMemStorage())
	result, err := c.GetFlag(context.Background(), "my-feature", UserContext{ID: "user1"})
	require.NoError(t, err)
	assert.False(t, result.IsEnabled())
}

func TestGetFlag_StickyAcrossCalls(t *testing.T) {
	storage := newMemStorage()
	c := newTestClient(t, settingsWithFeature(rolloutFeature(100)), storage)

	first, err := c.GetFlag(context.Background(), "my-feature", UserContext{ID: "user1"})
	require.NoError(t, err)
	require.True(t, first.IsEnabled())

	_, found, err := storage.Get(context.Background(), "my-feature", "user1")
	require.NoError(t, err)
	require.True(t, found)

	second, err := c.GetFlag(context.Background(), "my-feature", UserContext{ID: "user1"})
	require.NoError(t, err)
	assert.Equal(t, first.IsEnabled(), second.IsEnabled())
}

func TestGetFlag_NonRunningRolloutIsSkipped(t *testing.T) {
	feature := rolloutFeature(100)
	feature.RulesLinkedCampaign[0].Status = "PAUSED"
	c := newTestClient(t, settingsWithFeature(feature), newMemStorage())
	result, err := c.GetFlag(context.Background(), "my-feature", UserContext{ID: "user1"})
	require.NoError(t, err)
	assert.False(t, result.IsEnabled())
}

func TestGetFlag_ExperimentOverridesPassingRollout(t *testing.T) {
	storage := newMemStorage()
	feature := rolloutAndExperimentFeature(100, 100)
	c := newTestClient(t, settingsWithFeature(feature), storage)

	result, err := c.GetFlag(context.Background(), "my-feature", UserContext{ID: "user1"})
	require.NoError(t, err)
	require.True(t, result.IsEnabled())

	record, found, err := storage.Get(context.Background(), "my-feature", "user1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 200, record.ExperimentID)
	assert.Equal(t, "experiment-rule", record.ExperimentKey)
	assert.Equal(t, 100, record.RolloutID)
	assert.Equal(t, "rollout-rule", record.RolloutKey)
}

func TestGetFlag_RolloutStandsWhenNoExperimentMatches(t *testing.T) {
	storage := newMemStorage()
	feature := rolloutAndExperimentFeature(100, 0)
	c := newTestClient(t, settingsWithFeature(feature), storage)

	result, err := c.GetFlag(context.Background(), "my-feature", UserContext{ID: "user1"})
	require.NoError(t, err)
	require.True(t, result.IsEnabled())

	record, found, err := storage.Get(context.Background(), "my-feature", "user1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 100, record.RolloutID)
	assert.Empty(t, record.ExperimentKey)
}

func TestGetFlag_FailingRolloutTrafficSkipsExperimentCascade(t *testing.T) {
	storage := newMemStorage()
	feature := rolloutAndExperimentFeature(0, 100)
	c := newTestClient(t, settingsWithFeature(feature), storage)

	result, err := c.GetFlag(context.Background(), "my-feature", UserContext{ID: "user1"})
	require.NoError(t, err)
	assert.False(t, result.IsEnabled())

	_, found, err := storage.Get(context.Background(), "my-feature", "user1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetFlag_StoredRolloutBaselineIsOverriddenByMatchingExperiment(t *testing.T) {
	storage := newMemStorage()
	feature := rolloutAndExperimentFeature(100, 100)
	_, err := storage.Set(context.Background(), StorageRecord{
		FeatureKey:         "my-feature",
		UserID:             "user1",
		RolloutID:          100,
		RolloutKey:         "rollout-rule",
		RolloutVariationID: 1,
	})
	require.NoError(t, err)

	c := newTestClient(t, settingsWithFeature(feature), storage)
	result, err := c.GetFlag(context.Background(), "my-feature", UserContext{ID: "user1"})
	require.NoError(t, err)
	require.True(t, result.IsEnabled())

	record, found, err := storage.Get(context.Background(), "my-feature", "user1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 200, record.ExperimentID)
	assert.Equal(t, "experiment-rule", record.ExperimentKey)
	assert.Equal(t, 100, record.RolloutID, "stored rollout triple must survive the experiment override")
}

func TestGetFlag_StoredRolloutBaselineStandsWithNoMatchingExperiment(t *testing.T) {
	storage := newMemStorage()
	feature := rolloutAndExperimentFeature(100, 0)
	seeded := StorageRecord{
		FeatureKey:         "my-feature",
		UserID:             "user1",
		RolloutID:          100,
		RolloutKey:         "rollout-rule",
		RolloutVariationID: 1,
	}
	_, err := storage.Set(context.Background(), seeded)
	require.NoError(t, err)

	c := newTestClient(t, settingsWithFeature(feature), storage)
	result, err := c.GetFlag(context.Background(), "my-feature", UserContext{ID: "user1"})
	require.NoError(t, err)
	assert.True(t, result.IsEnabled())

	record, found, err := storage.Get(context.Background(), "my-feature", "user1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, seeded, record, "no experiment match means the stored baseline is returned without a redundant write")
}
