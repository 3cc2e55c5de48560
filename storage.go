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

	"github.com/rs/zerolog"
)

// megStoragePrefix namespaces the synthetic feature key a MEG winner decision is
// cached under: "_vwo_meta_meg_<groupId>".
const megStoragePrefix = "_vwo_meta_meg_"

// StorageRecord is a sticky decision persisted via a user-provided connector.
// ExperimentVariationID of -1 on an AB win encodes "winner pinned, no single
// variation id to pin" (used only for MEG bookkeeping records).
type StorageRecord struct {
	FeatureKey             string
	UserID                 string
	RolloutID              int
	RolloutKey             string
	RolloutVariationID     int
	ExperimentID           int
	ExperimentKey          string
	ExperimentVariationID  int
}

func (r StorageRecord) hasExperimentTriple() bool {
	return r.ExperimentKey != "" && r.ExperimentVariationID != 0
}

func (r StorageRecord) hasRolloutTriple() bool {
	return r.RolloutKey != "" && r.RolloutVariationID != 0
}

// StorageConnector is the contract a caller implements to make GetFlag decisions
// sticky. Get and Set must be safe to call from multiple goroutines; the core
// never serializes calls to it.
type StorageConnector interface {
	Get(ctx context.Context, featureKey, userID string) (StorageRecord, bool, error)
	Set(ctx context.Context, record StorageRecord) (bool, error)
}

// storageDecorator wraps a user-supplied StorageConnector, normalizing its
// failures into "no data" and validating every write before it reaches the
// connector. A nil connector makes stickiness a no-op rather than an error.
type storageDecorator struct {
	connector StorageConnector
	logger    zerolog.Logger
}

func newStorageDecorator(connector StorageConnector, logger zerolog.Logger) *storageDecorator {
	return &storageDecorator{connector: connector, logger: logger}
}

func (d *storageDecorator) enabled() bool {
	return d != nil && d.connector != nil
}

// get returns the stored record for (featureKey, userID), or found=false if
// stickiness is disabled, nothing is stored, or the connector failed.
func (d *storageDecorator) get(ctx context.Context, featureKey, userID string) (StorageRecord, bool) {
	if !d.enabled() {
		return StorageRecord{}, false
	}
	record, found, err := d.connector.Get(ctx, featureKey, userID)
	if err != nil {
		d.logger.Warn().Err(err).Str("feature_key", featureKey).Str("user_id", userID).
			Msg("storage connector read failed, treating as no data")
		return StorageRecord{}, false
	}
	return record, found
}

// set validates record before handing it to the connector, matching
// storage_decorator.py's set_data_in_storage triple checks.
func (d *storageDecorator) set(ctx context.Context, record StorageRecord) bool {
	if !d.enabled() {
		return false
	}
	if record.FeatureKey == "" || record.UserID == "" {
		d.logger.Error().Msg("storage record missing featureKey or userId")
		return false
	}
	if record.RolloutKey == "" && record.ExperimentKey == "" {
		d.logger.Error().Msg("storage record carries neither a rollout nor an experiment triple")
		return false
	}
	hasRollout := record.RolloutID != 0 || record.RolloutKey != "" || record.RolloutVariationID != 0
	if hasRollout && record.ExperimentKey == "" && record.RolloutVariationID == 0 {
		d.logger.Error().Msg("storage record has a partial rollout triple")
		return false
	}
	if record.ExperimentKey != "" && record.ExperimentVariationID == 0 {
		d.logger.Error().Msg("storage record has an experiment key with no variation id")
		return false
	}
	ok, err := d.connector.Set(ctx, record)
	if err != nil {
		d.logger.Warn().Err(err).Str("feature_key", record.FeatureKey).Msg("storage connector write failed")
		return false
	}
	return ok
}

func megStorageKey(groupID string) string {
	return megStoragePrefix + groupID
}
