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

import "errors"

// Configuration errors, returned from New.
var (
	ErrMissingSDKKey       = errors.New("fme: sdk key is required")
	ErrMissingAccountID    = errors.New("fme: account id is required")
	ErrInvalidPollInterval = errors.New("fme: poll interval must be at least one second")
)

// Evaluation-time errors, returned alongside a neutral result.
var (
	ErrFeatureNotFound    = errors.New("fme: feature not found")
	ErrInvalidContext     = errors.New("fme: context id is required")
	ErrSettingsUnavailable = errors.New("fme: settings unavailable")
	ErrClientClosed       = errors.New("fme: client is closed")
)
