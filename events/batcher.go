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
	"context"
	"sync"
	"time"
)

// Transport delivers one flushed batch of events. HTTPTransport is the
// production implementation; tests supply fakes.
type Transport interface {
	Send(ctx context.Context, accountID, sdkKey string, events []Event) error
}

// BatchOption configures a Batcher at construction.
type BatchOption func(*Batcher)

// WithEventsPerRequest caps how many events accumulate before a size-triggered
// flush. Valid range is 1-5000; out-of-range values are clamped.
func WithEventsPerRequest(n int) BatchOption {
	return func(b *Batcher) {
		switch {
		case n < 1:
			n = 1
		case n > 5000:
			n = 5000
		}
		b.eventsPerRequest = n
	}
}

// WithFlushInterval sets the timer-triggered flush cadence.
func WithFlushInterval(d time.Duration) BatchOption {
	return func(b *Batcher) { b.flushInterval = d }
}

// WithFlushCallback is invoked after every flush attempt, successful or not.
func WithFlushCallback(cb func([]Event, error)) BatchOption {
	return func(b *Batcher) { b.flushCallback = cb }
}

// WithWorkerPoolSize sets how many worker goroutines run queued flushes; a
// flush submitted while the pool's queue is full runs on its own goroutine.
func WithWorkerPoolSize(n int) BatchOption {
	return func(b *Batcher) { b.workerPoolSize = n }
}

// Batcher accumulates events and flushes them by size or timer to a Transport,
// per §5's batch-queue design: O(1) enqueue under a short lock, flush work
// offloaded onto a worker pool.
type Batcher struct {
	mu               sync.Mutex
	events           []Event
	eventsPerRequest int
	flushInterval    time.Duration
	flushCallback    func([]Event, error)
	workerPoolSize   int

	accountID, sdkKey string
	transport         Transport
	pool              *workerPool
	ticker            *time.Ticker
	done              chan struct{}
	once              sync.Once
}

// NewBatcher constructs a Batcher using the functional-options pattern.
// Defaults: 100 events per request, 600s flush interval, a single flush
// worker.
func NewBatcher(transport Transport, accountID, sdkKey string, opts ...BatchOption) *Batcher {
	b := &Batcher{
		eventsPerRequest: 100,
		flushInterval:    600 * time.Second,
		workerPoolSize:   1,
		accountID:        accountID,
		sdkKey:           sdkKey,
		transport:        transport,
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.pool = newWorkerPool(b.workerPoolSize)
	b.ticker = time.NewTicker(b.flushInterval)
	go b.loop()
	return b
}

// Enqueue adds an event to the pending batch, triggering an async flush if the
// batch has reached its size threshold.
func (b *Batcher) Enqueue(e Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	full := len(b.events) >= b.eventsPerRequest
	b.mu.Unlock()
	if full {
		b.flushAsync()
	}
}

func (b *Batcher) flushAsync() {
	b.pool.submit(func() { _ = b.Flush(context.Background()) })
}

// Flush sends the pending batch synchronously and reports the transport error,
// if any, to the configured flush callback.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.events
	b.events = nil
	b.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	err := b.transport.Send(ctx, b.accountID, b.sdkKey, batch)
	if b.flushCallback != nil {
		b.flushCallback(batch, err)
	}
	return err
}

func (b *Batcher) loop() {
	for {
		select {
		case <-b.ticker.C:
			b.flushAsync()
		case <-b.done:
			return
		}
	}
}

// Close stops the timer-triggered flush loop. It does not drain pending
// events; call Flush first if that matters.
func (b *Batcher) Close() {
	b.once.Do(func() {
		close(b.done)
		b.ticker.Stop()
	})
}
