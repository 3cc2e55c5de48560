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

// Package settingsapi fetches and verifies the signed settings document that
// the fme package parses into its in-memory Settings snapshot.
package settingsapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/xerrors"
)

const defaultBaseURL = "https://dev.visualwebsiteoptimizer.com"

// client is the structure used for interacting with the settings API. It
// fulfills both the apiClient and Client interfaces.
type client struct {
	httpClient http.Client
	apiClient  apiClient
	sdkKey     string
	accountID  string
	baseURL    string
}

type apiClient interface {
	sendAPIRequest(ctx context.Context, method, uri string, query url.Values, headers http.Header) (*http.Response, error)
}

// Client is the interface for retrieving a settings document. NewClient
// returns a real implementation; the mocks package contains a fake for
// testing.
type Client interface {
	// FetchSettings retrieves the raw, still-signed settings document for the
	// configured account and SDK key.
	FetchSettings(ctx context.Context) ([]byte, error)
}

// Option configures a client at construction.
type Option func(*client)

// BaseURL overrides the default VWO settings host, primarily for tests.
func BaseURL(u string) Option {
	return func(c *client) { c.baseURL = u }
}

// NewClient constructs a settings API client from optional provided options.
func NewClient(sdkKey, accountID string, opts ...Option) Client {
	c := &client{sdkKey: sdkKey, accountID: accountID, baseURL: defaultBaseURL}
	c.apiClient = c
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) sendAPIRequest(ctx context.Context, method, uri string, query url.Values, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, xerrors.Errorf("error creating settings API request: %w", err)
	}
	q := req.URL.Query()
	for k, v := range query {
		for _, s := range v {
			q.Add(k, s)
		}
	}
	req.URL.RawQuery = q.Encode()
	for k, v := range headers {
		for _, s := range v {
			req.Header.Add(k, s)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("error making settings API request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, xerrors.Errorf("received %d status from settings API", resp.StatusCode)
	}
	return resp, nil
}

func (c *client) FetchSettings(ctx context.Context) ([]byte, error) {
	query := url.Values{}
	query.Set("a", c.accountID)
	query.Set("env", c.sdkKey)
	resp, err := c.apiClient.sendAPIRequest(ctx, http.MethodGet, fmt.Sprintf("%s/server-side/v2-settings", c.baseURL), query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.Errorf("error reading settings response body: %w", err)
	}
	return body, nil
}
