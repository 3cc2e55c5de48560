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
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/xerrors"
)

// settingsClaims is the JWS envelope's payload: the settings document lives
// under the "settings" claim, base64-free since jwt-go decodes it for us.
type settingsClaims struct {
	Settings json.RawMessage `json:"settings"`
	jwt.RegisteredClaims
}

// VerifyEnvelope validates a JWS-signed settings envelope with key and
// extracts the settings document it wraps. A document that is not a signed
// envelope (plain JSON) is returned unchanged, matching environments where
// signing is not configured.
func VerifyEnvelope(raw []byte, key []byte) ([]byte, error) {
	if len(raw) == 0 || raw[0] == '{' {
		return raw, nil
	}
	var claims settingsClaims
	_, err := jwt.ParseWithClaims(string(raw), &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, xerrors.Errorf("unexpected settings envelope signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, xerrors.Errorf("verifying settings envelope: %w", err)
	}
	return claims.Settings, nil
}
