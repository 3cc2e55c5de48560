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

// Package rediscon is a reference implementation of fme.StorageConnector
// backed by Redis, for callers who want sticky decisions without writing
// their own connector.
package rediscon

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"golang.org/x/xerrors"

	"github.com/vwo/fme-go-sdk"
)

// Connector implements fme.StorageConnector on top of a redis.Client. Keys
// are namespaced "<prefix><featureKey>:<userID>" and stored as JSON with no
// expiry, matching a sticky-forever decision model; callers wanting TTL-based
// eviction should wrap Connector and set one on write.
type Connector struct {
	rdb    *redis.Client
	prefix string
}

// New builds a Connector over an existing redis.Client.
func New(rdb *redis.Client, prefix string) *Connector {
	return &Connector{rdb: rdb, prefix: prefix}
}

func (c *Connector) key(featureKey, userID string) string {
	return c.prefix + featureKey + ":" + userID
}

// Get implements fme.StorageConnector.
func (c *Connector) Get(ctx context.Context, featureKey, userID string) (fme.StorageRecord, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(featureKey, userID)).Bytes()
	if err == redis.Nil {
		return fme.StorageRecord{}, false, nil
	}
	if err != nil {
		return fme.StorageRecord{}, false, xerrors.Errorf("reading storage record from redis: %w", err)
	}
	var record fme.StorageRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return fme.StorageRecord{}, false, xerrors.Errorf("decoding storage record: %w", err)
	}
	return record, true, nil
}

// Set implements fme.StorageConnector.
func (c *Connector) Set(ctx context.Context, record fme.StorageRecord) (bool, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return false, xerrors.Errorf("encoding storage record: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(record.FeatureKey, record.UserID), raw, 0).Err(); err != nil {
		return false, xerrors.Errorf("writing storage record to redis: %w", err)
	}
	return true, nil
}
