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
)

// GatewayClient mocks out the gateway service contract fme.WithGatewayService
// expects (CheckInlist and ResolveUserData).
type GatewayClient struct {
	mock.Mock
}

func (m *GatewayClient) CheckInlist(ctx context.Context, accountID, attribute, listID, userID string) (bool, error) {
	call := m.Called(ctx, accountID, attribute, listID, userID)
	return call.Bool(0), call.Error(1)
}

func (m *GatewayClient) ResolveUserData(ctx context.Context, userAgent, ipAddress string) (map[string]string, map[string]string, error) {
	call := m.Called(ctx, userAgent, ipAddress)
	var location, ua map[string]string
	if call.Get(0) != nil {
		location = call.Get(0).(map[string]string)
	}
	if call.Get(1) != nil {
		ua = call.Get(1).(map[string]string)
	}
	return location, ua, call.Error(2)
}
