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

package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/xerrors"
)

// wireEventData mirrors the abbreviated payload shape in §6.
type wireEventData struct {
	MsgID     string      `json:"msgId"`
	VisID     string      `json:"visId"`
	SessionID int64       `json:"sessionId"`
	Event     wireEvent   `json:"event"`
	Visitor   wireVisitor `json:"visitor"`
}

type wireEvent struct {
	Name  string                 `json:"name"`
	Time  int64                  `json:"time"`
	Props map[string]interface{} `json:"props"`
}

type wireVisitor struct {
	Props map[string]interface{} `json:"props"`
}

type wireEnvelope struct {
	D wireEventData `json:"d"`
}

type batchPayload struct {
	Ev []wireEnvelope `json:"ev"`
}

// HTTPTransport posts batches to the events batch endpoint, retrying
// transient failures with jittered exponential backoff. It embeds
// http.Client so callers can configure timeouts and transports directly.
type HTTPTransport struct {
	http.Client
	Host       string
	SDKName    string
	SDKVersion string
	MaxRetries int
	BaseDelay  time.Duration
}

// NewHTTPTransport builds a transport with the retry policy from §7: initial
// 2s backoff, 3 retries, jitter.
func NewHTTPTransport(host string) *HTTPTransport {
	return &HTTPTransport{
		Host:       host,
		SDKName:    "fme-go-sdk",
		SDKVersion: "0.1.0",
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
	}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, accountID, sdkKey string, batch []Event) error {
	payload := batchPayload{Ev: make([]wireEnvelope, len(batch))}
	for i, e := range batch {
		payload.Ev[i] = t.toWire(e, sdkKey)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return xerrors.Errorf("marshaling event batch: %w", err)
	}

	url := fmt.Sprintf("%s/events/t/batch?a=%s&env=%s", t.Host, accountID, sdkKey)

	var lastErr error
	for attempt := 0; attempt <= t.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := t.BaseDelay * time.Duration(1<<uint(attempt-1))
			var jitter time.Duration
			if delay > 1 {
				jitter = time.Duration(rand.Int63n(int64(delay) / 2))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay + jitter):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return xerrors.Errorf("building event batch request: %w", err)
		}
		req.Header.Set("Authorization", sdkKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.Client.Do(req)
		if err != nil {
			lastErr = xerrors.Errorf("sending event batch: %w", err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = xerrors.Errorf("event batch endpoint returned status %d", resp.StatusCode)
	}
	return lastErr
}

func (t *HTTPTransport) toWire(e Event, sdkKey string) wireEnvelope {
	props := map[string]interface{}{
		"vwo_sdkName":    t.SDKName,
		"vwo_sdkVersion": t.SDKVersion,
		"vwo_envKey":     sdkKey,
	}
	if e.CampaignID != 0 {
		props["id"] = e.CampaignID
		props["variation"] = fmt.Sprintf("%d", e.VariationID)
	}
	if e.IsFirst {
		props["isFirst"] = 1
	}
	for k, v := range e.Properties {
		props[k] = v
	}

	return wireEnvelope{D: wireEventData{
		MsgID:     fmt.Sprintf("%s-%d", e.UUID, e.Timestamp),
		VisID:     e.UUID,
		SessionID: e.SessionID,
		Event: wireEvent{
			Name:  e.Name,
			Time:  e.Timestamp,
			Props: props,
		},
		Visitor: wireVisitor{Props: map[string]interface{}{"vwo_fs_environment": sdkKey}},
	}}
}
