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
	"time"

	"github.com/vwo/fme-go-sdk/events"
)

// TrackEvent records a custom conversion event for the user, enqueuing a
// single Track event that carries eventProperties.
func (c *Client) TrackEvent(_ context.Context, eventName string, userCtx UserContext, eventProperties map[string]interface{}) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	rc, ok := resolveContext(c.accountID, userCtx)
	if !ok {
		return ErrInvalidContext
	}
	c.eventsBatcher.Enqueue(events.Track(eventName, rc.ID, rc.uuid, rc.sessionID, eventProperties, time.Now().Unix()))
	return nil
}

// SetAttribute syncs a single visitor property to VWO's visitor profile.
func (c *Client) SetAttribute(_ context.Context, userCtx UserContext, key string, value interface{}) error {
	return c.SetAttributes(context.Background(), userCtx, map[string]interface{}{key: value})
}

// SetAttributes syncs multiple visitor properties in one call.
func (c *Client) SetAttributes(_ context.Context, userCtx UserContext, attributes map[string]interface{}) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	rc, ok := resolveContext(c.accountID, userCtx)
	if !ok {
		return ErrInvalidContext
	}
	now := time.Now().Unix()
	for key, value := range attributes {
		c.eventsBatcher.Enqueue(events.AttributeSet(rc.ID, rc.uuid, rc.sessionID, key, value, now))
	}
	return nil
}
