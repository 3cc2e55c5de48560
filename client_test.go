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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettingsClient struct {
	raw []byte
	err error
}

func (f *fakeSettingsClient) FetchSettings(ctx context.Context) ([]byte, error) {
	return f.raw, f.err
}

func TestNew_RequiresSDKKey(t *testing.T) {
	_, err := New(WithAccountID("acct1"))
	assert.ErrorIs(t, err, ErrMissingSDKKey)
}

func TestNew_RequiresAccountID(t *testing.T) {
	_, err := New(WithSDKKey("sdk-key"))
	assert.ErrorIs(t, err, ErrMissingAccountID)
}

func TestNew_RejectsSubSecondPollInterval(t *testing.T) {
	_, err := New(WithSDKKey("sdk-key"), WithAccountID("acct1"), WithPollInterval(500*time.Millisecond))
	assert.ErrorIs(t, err, ErrInvalidPollInterval)
}

func TestNew_DefaultsAreUsable(t *testing.T) {
	c, err := New(WithSDKKey("sdk-key"), WithAccountID("acct1"))
	require.NoError(t, err)
	assert.False(t, c.storage.enabled())
	assert.NotNil(t, c.eventsBatcher)
}

func TestClient_CloseThenGetFlagReportsClosed(t *testing.T) {
	c, err := New(WithSDKKey("sdk-key"), WithAccountID("acct1"), WithInitialSettings(settingsWithFeature(rolloutFeature(100))))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	_, err = c.GetFlag(context.Background(), "my-feature", UserContext{ID: "user1"})
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c, err := New(WithSDKKey("sdk-key"), WithAccountID("acct1"))
	require.NoError(t, err)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestNew_WithSettingsAPIFetchesInitialSnapshot(t *testing.T) {
	raw, err := json.Marshal(map[string]interface{}{
		"accountId": 12345,
		"sdkKey":    "sdk-key",
		"version":   1,
		"campaigns": []interface{}{},
		"features":  []interface{}{},
	})
	require.NoError(t, err)

	fake := &fakeSettingsClient{raw: raw}
	c, err := New(WithSDKKey("sdk-key"), WithAccountID("acct1"), WithSettingsAPI(fake), WithPollInterval(time.Minute))
	require.NoError(t, err)
	defer c.Close()

	settings := c.currentSettings()
	require.NotNil(t, settings)
	assert.Equal(t, "12345", settings.AccountID)

	require.NoError(t, c.Close())
}

func TestNew_WithSettingsAPIPropagatesFetchError(t *testing.T) {
	fake := &fakeSettingsClient{err: assert.AnError}
	_, err := New(WithSDKKey("sdk-key"), WithAccountID("acct1"), WithSettingsAPI(fake))
	assert.Error(t, err)
}
