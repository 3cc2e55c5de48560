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

// Package fme implements the server-side feature management and experimentation
// decision engine: deterministic bucketing, segmentation, Mutually-Exclusive
// Group arbitration, and the GetFlag pipeline that ties them together.
package fme

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"github.com/vwo/fme-go-sdk/events"
	"github.com/vwo/fme-go-sdk/settingsapi"
)

// gatewayClient is the contract the optional gateway service integration
// fulfills: resolving inlist membership and UA/geo breakdowns a segment's
// DSL needs but the SDK cannot compute locally.
type gatewayClient interface {
	CheckInlist(ctx context.Context, accountID, attribute, listID, userID string) (bool, error)
	ResolveUserData(ctx context.Context, userAgent, ipAddress string) (location map[string]string, uaInfo map[string]string, err error)
}

// Client is the entry point for flag decisions, event tracking, and settings
// management. It is safe for concurrent use: the active Settings snapshot is
// swapped atomically, and every other field is either immutable after New or
// independently synchronized.
type Client struct {
	accountID string
	sdkKey    string

	logger  zerolog.Logger
	storage *storageDecorator
	gateway gatewayClient
	hook    HookFunc

	settings      atomic.Pointer[Settings]
	eventsBatcher *events.Batcher

	settingsAPI        settingsapi.Client
	settingsSigningKey []byte
	poller             *settingsapi.Poller

	usageStatsDisabled bool
	pollInterval       time.Duration
	closed             atomic.Bool
}

// Option configures a Client at construction, following the functional-
// options convention.
type Option func(*Client) error

// WithSDKKey sets the environment key every outbound request authenticates
// with. Required.
func WithSDKKey(key string) Option {
	return func(c *Client) error {
		c.sdkKey = key
		return nil
	}
}

// WithAccountID sets the VWO account id. Required.
func WithAccountID(id string) Option {
	return func(c *Client) error {
		c.accountID = id
		return nil
	}
}

// WithStorage wires a caller-provided stickiness connector. Omitting this
// option makes every decision non-sticky.
func WithStorage(connector StorageConnector) Option {
	return func(c *Client) error {
		c.storage = newStorageDecorator(connector, c.logger)
		return nil
	}
}

// WithGatewayService wires the gateway integration used to resolve inlist
// membership and UA/geo breakdowns. The value returned by
// gateway.NewClient satisfies this contract structurally; pass it directly.
func WithGatewayService(g gatewayClient) Option {
	return func(c *Client) error {
		c.gateway = g
		return nil
	}
}

// WithPollInterval sets the settings-refresh cadence. Must be at least one
// second.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) error {
		if d < time.Second {
			return ErrInvalidPollInterval
		}
		c.pollInterval = d
		return nil
	}
}

// WithLogger overrides the default stderr zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithIntegrationCallback registers a hook invoked after every GetFlag
// decision.
func WithIntegrationCallback(hook HookFunc) Option {
	return func(c *Client) error {
		c.hook = hook
		return nil
	}
}

// WithEventsBatcher wires a pre-built batch event queue, letting a caller
// override its transport, batch size, or flush interval.
func WithEventsBatcher(b *events.Batcher) Option {
	return func(c *Client) error {
		c.eventsBatcher = b
		return nil
	}
}

// WithUsageStatsDisabled sets the Client's usage-stats flag. No other code
// reads that flag: outbound events carry the SDK-identity properties
// (vwo_sdkName, vwo_sdkVersion) either way.
func WithUsageStatsDisabled() Option {
	return func(c *Client) error {
		c.usageStatsDisabled = true
		return nil
	}
}

// WithSettingsAPI wires a settings document source. New fetches once
// synchronously via client (replacing any snapshot WithInitialSettings seeded)
// and starts a background poller at PollInterval that keeps the active
// snapshot fresh; if that first fetch fails, New returns an error.
func WithSettingsAPI(client settingsapi.Client) Option {
	return func(c *Client) error {
		c.settingsAPI = client
		return nil
	}
}

// WithSettingsSigningKey sets the HMAC key settings documents fetched via
// WithSettingsAPI are verified against. Omit it when the settings endpoint
// returns plain JSON rather than a signed envelope.
func WithSettingsSigningKey(key []byte) Option {
	return func(c *Client) error {
		c.settingsSigningKey = key
		return nil
	}
}

// WithInitialSettings seeds the client with an already-fetched Settings
// snapshot, letting a caller skip the initial settings fetch (e.g. in tests).
func WithInitialSettings(s *Settings) Option {
	return func(c *Client) error {
		c.settings.Store(s)
		return nil
	}
}

// New builds a Client. SDK key and account id are required; every other
// option has a workable default.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		logger:       zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger(),
		pollInterval: 10 * time.Minute,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, xerrors.Errorf("configuring client: %w", err)
		}
	}
	if c.sdkKey == "" {
		return nil, ErrMissingSDKKey
	}
	if c.accountID == "" {
		return nil, ErrMissingAccountID
	}
	if c.storage == nil {
		c.storage = newStorageDecorator(nil, c.logger)
	}
	if c.eventsBatcher == nil {
		c.eventsBatcher = events.NewBatcher(events.NewHTTPTransport("https://dev.visualwebsiteoptimizer.com"), c.accountID, c.sdkKey)
	}
	if c.settingsAPI != nil {
		decode := func(raw []byte) (interface{}, error) {
			verified, err := settingsapi.VerifyEnvelope(raw, c.settingsSigningKey)
			if err != nil {
				return nil, xerrors.Errorf("verifying settings envelope: %w", err)
			}
			settings, err := ParseSettings(verified)
			if err != nil {
				return nil, xerrors.Errorf("parsing settings: %w", err)
			}
			return settings, nil
		}
		update := func(decoded interface{}) {
			c.settings.Store(decoded.(*Settings))
		}
		c.poller = settingsapi.NewPoller(c.settingsAPI, decode, update, c.pollInterval, c.logger)
		if err := c.poller.Start(context.Background()); err != nil {
			return nil, xerrors.Errorf("fetching initial settings: %w", err)
		}
	}
	return c, nil
}

// UpdateSettings atomically swaps in a freshly fetched or decoded Settings
// snapshot. Safe to call concurrently with GetFlag.
func (c *Client) UpdateSettings(_ context.Context, settings *Settings) error {
	if settings == nil {
		return ErrSettingsUnavailable
	}
	c.settings.Store(settings)
	return nil
}

// currentSettings returns the active snapshot, or nil if none has been set yet.
func (c *Client) currentSettings() *Settings {
	return c.settings.Load()
}

// FlushEvents forces an immediate delivery of any queued events.
func (c *Client) FlushEvents(ctx context.Context) error {
	return c.eventsBatcher.Flush(ctx)
}

// Close stops background work (the batch event flush timer). GetFlag calls
// made after Close return ErrClientClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.poller != nil {
		c.poller.Stop()
	}
	c.eventsBatcher.Close()
	return nil
}
