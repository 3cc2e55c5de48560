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

package rediscon

import (
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/vwo/fme-go-sdk"
)

func TestConnector_Key(t *testing.T) {
	c := New(redis.NewClient(&redis.Options{}), "fme:")
	assert.Equal(t, "fme:my-feature:user-1", c.key("my-feature", "user-1"))
}

func TestStorageRecordRoundTrip(t *testing.T) {
	record := fme.StorageRecord{FeatureKey: "f1", UserID: "u1", ExperimentKey: "rule1", ExperimentVariationID: 2}
	raw, err := json.Marshal(record)
	assert.NoError(t, err)

	var decoded fme.StorageRecord
	assert.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, record, decoded)
}
