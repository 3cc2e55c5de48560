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

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vwo/fme-go-sdk/events"
)

// SettingsClient mocks out settingsapi.Client for use in testing a Poller
// without a live settings endpoint.
type SettingsClient struct {
	mock.Mock
}

func (m *SettingsClient) FetchSettings(ctx context.Context) ([]byte, error) {
	call := m.Called(ctx)
	return call.Get(0).([]byte), call.Error(1)
}

// EventsTransport mocks out events.Transport for use in testing a Batcher
// without making real HTTP calls.
type EventsTransport struct {
	mock.Mock
}

func (m *EventsTransport) Send(ctx context.Context, accountID, sdkKey string, batch []events.Event) error {
	return m.Called(ctx, accountID, sdkKey, batch).Error(0)
}
