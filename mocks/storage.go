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

// Package mocks contains testify mocks for the interfaces fme, settingsapi,
// and gateway ask callers to implement: one mock struct per collaborator.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vwo/fme-go-sdk"
)

// StorageConnector mocks out fme.StorageConnector for use in testing.
type StorageConnector struct {
	mock.Mock
}

func (m *StorageConnector) Get(ctx context.Context, featureKey, userID string) (fme.StorageRecord, bool, error) {
	call := m.Called(ctx, featureKey, userID)
	return call.Get(0).(fme.StorageRecord), call.Bool(1), call.Error(2)
}

func (m *StorageConnector) Set(ctx context.Context, record fme.StorageRecord) (bool, error) {
	call := m.Called(ctx, record)
	return call.Bool(0), call.Error(1)
}
