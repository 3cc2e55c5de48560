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

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInlist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/attribute-check", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"isPresent":true}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	present, err := c.CheckInlist(context.Background(), "acct1", "email", "list1", "user1")
	require.NoError(t, err)
	assert.True(t, present)
}

func TestResolveUserData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/get-user-data", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"location":{"country":"US"},"ua":{"os":"iOS"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	location, ua, err := c.ResolveUserData(context.Background(), "ua-string", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "US", location["country"])
	assert.Equal(t, "iOS", ua["os"])
}
