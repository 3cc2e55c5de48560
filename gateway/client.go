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

// Package gateway talks to a VWO gateway service deployment: the piece that
// resolves IP-to-geo, user-agent breakdowns, and inlist membership that a
// segment's DSL may require but the core decision engine has no business
// computing itself.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/xerrors"
)

// client is the structure used for interacting with a gateway service
// deployment. The apiClient/client split keeps request building testable
// without a live server.
type client struct {
	httpClient http.Client
	apiClient  apiClient
	baseURL    string
}

type apiClient interface {
	sendAPIRequest(ctx context.Context, method, uri string, query url.Values) (*http.Response, error)
}

// Client is the interface for resolving gateway-dependent segmentation data.
// NewClient returns a real implementation; the mocks package contains a fake
// for testing.
type Client interface {
	CheckInlist(ctx context.Context, accountID, attribute, listID, userID string) (bool, error)
	ResolveUserData(ctx context.Context, userAgent, ipAddress string) (location map[string]string, uaInfo map[string]string, err error)
}

// Option configures a client at construction.
type Option func(*client)

// NewClient constructs a gateway client pointed at baseURL (the caller's
// gateway service deployment, e.g. "http://localhost:4000").
func NewClient(baseURL string, opts ...Option) Client {
	c := &client{baseURL: baseURL}
	c.apiClient = c
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) sendAPIRequest(ctx context.Context, method, uri string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, xerrors.Errorf("error creating gateway request: %w", err)
	}
	req.URL.RawQuery = query.Encode()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("error making gateway request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, xerrors.Errorf("received %d status from gateway service", resp.StatusCode)
	}
	return resp, nil
}

type inlistResponse struct {
	IsPresent bool `json:"isPresent"`
}

// CheckInlist asks the gateway whether userID's attribute value is present in
// the named list, fulfilling fme's gatewayClient contract.
func (c *client) CheckInlist(ctx context.Context, accountID, attribute, listID, userID string) (bool, error) {
	query := url.Values{}
	query.Set("accountId", accountID)
	query.Set("attribute", attribute)
	query.Set("listId", listID)
	query.Set("userId", userID)
	resp, err := c.apiClient.sendAPIRequest(ctx, http.MethodGet, fmt.Sprintf("%s/v1/attribute-check", c.baseURL), query)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	var decoded inlistResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, xerrors.Errorf("decoding inlist response: %w", err)
	}
	return decoded.IsPresent, nil
}

type userDataResponse struct {
	Location map[string]string `json:"location"`
	UA       map[string]string `json:"ua"`
}

// ResolveUserData asks the gateway to break a user agent and IP address down
// into the geo and UA maps segmentation.EvalContext expects.
func (c *client) ResolveUserData(ctx context.Context, userAgent, ipAddress string) (map[string]string, map[string]string, error) {
	query := url.Values{}
	query.Set("userAgent", userAgent)
	query.Set("ipAddress", ipAddress)
	resp, err := c.apiClient.sendAPIRequest(ctx, http.MethodGet, fmt.Sprintf("%s/v1/get-user-data", c.baseURL), query)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	var decoded userDataResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, nil, xerrors.Errorf("decoding gateway user-data response: %w", err)
	}
	return decoded.Location, decoded.UA, nil
}
