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

package settingsapi

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Decoder turns a verified settings document into whatever type the caller's
// Update func expects (fme.ParseSettings, typically).
type Decoder func(raw []byte) (interface{}, error)

// Poller periodically fetches and decodes settings, invoking Update with
// every successfully decoded snapshot. A fetch or decode failure is logged
// and the previous snapshot is left in place.
type Poller struct {
	client   Client
	decode   Decoder
	update   func(interface{})
	interval time.Duration
	logger   zerolog.Logger

	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// NewPoller constructs a Poller. It does not start polling until Start is
// called.
func NewPoller(client Client, decode Decoder, update func(interface{}), interval time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{client: client, decode: decode, update: update, interval: interval, logger: logger, done: make(chan struct{})}
}

// Start fetches once synchronously so the caller has a snapshot before
// returning, then continues polling in the background until Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	if err := p.fetchOnce(ctx); err != nil {
		return err
	}
	p.ticker = time.NewTicker(p.interval)
	go p.loop(ctx)
	return nil
}

func (p *Poller) loop(ctx context.Context) {
	for {
		select {
		case <-p.ticker.C:
			if err := p.fetchOnce(ctx); err != nil {
				p.logger.Warn().Err(err).Msg("settings poll failed, keeping previous snapshot")
			}
		case <-p.done:
			return
		}
	}
}

func (p *Poller) fetchOnce(ctx context.Context) error {
	raw, err := p.client.FetchSettings(ctx)
	if err != nil {
		return err
	}
	decoded, err := p.decode(raw)
	if err != nil {
		return err
	}
	p.update(decoded)
	return nil
}

// Stop halts the polling loop. It does not cancel an in-flight fetch.
func (p *Poller) Stop() {
	p.once.Do(func() {
		close(p.done)
		if p.ticker != nil {
			p.ticker.Stop()
		}
	})
}
