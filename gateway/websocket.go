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

	"github.com/gorilla/websocket"
	"golang.org/x/xerrors"
)

// SettingsListener subscribes to a gateway service's push notification socket
// so a client can react to a settings change without waiting for its next
// poll tick, an alternative to settingsapi.Poller's pull loop.
type SettingsListener struct {
	url  string
	conn *websocket.Conn
}

// NewSettingsListener connects to wsURL (e.g. "ws://localhost:4000/v1/webhook").
func NewSettingsListener(ctx context.Context, wsURL string) (*SettingsListener, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, xerrors.Errorf("connecting to gateway settings socket: %w", err)
	}
	return &SettingsListener{url: wsURL, conn: conn}, nil
}

// Listen blocks, invoking onMessage for every push notification received,
// until the connection closes or ctx is canceled.
func (l *SettingsListener) Listen(ctx context.Context, onMessage func([]byte)) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := l.conn.ReadMessage()
			if err != nil {
				return
			}
			onMessage(message)
		}
	}()
	select {
	case <-ctx.Done():
		_ = l.conn.Close()
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Close terminates the socket connection.
func (l *SettingsListener) Close() error {
	return l.conn.Close()
}
