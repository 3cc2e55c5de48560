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

// Package events builds and batches the impression, track, and attribute
// events a decision or API call produces into a size/timer-triggered batch
// queue backed by a bounded worker pool.
package events

// Event is one impression, track, or attribute-set occurrence, independent of
// wire format.
type Event struct {
	Name        string
	UserID      string
	UUID        string
	SessionID   int64
	CampaignID  int
	VariationID int
	IsFirst     bool
	Properties  map[string]interface{}
	Timestamp   int64
}

// Impression builds the event emitted when GetFlag decides a variation.
func Impression(userID, uuid string, sessionID int64, campaignID, variationID int, timestamp int64) Event {
	return Event{
		Name:        "vwo_variationShown",
		UserID:      userID,
		UUID:        uuid,
		SessionID:   sessionID,
		CampaignID:  campaignID,
		VariationID: variationID,
		IsFirst:     true,
		Timestamp:   timestamp,
	}
}

// Track builds a custom track() event.
func Track(eventName, userID, uuid string, sessionID int64, properties map[string]interface{}, timestamp int64) Event {
	return Event{
		Name:       eventName,
		UserID:     userID,
		UUID:       uuid,
		SessionID:  sessionID,
		Properties: properties,
		Timestamp:  timestamp,
	}
}

// AttributeSet builds the event emitted when a caller sets a visitor attribute.
func AttributeSet(userID, uuid string, sessionID int64, key string, value interface{}, timestamp int64) Event {
	return Event{
		Name:       "vwo_syncVisitorProp",
		UserID:     userID,
		UUID:       uuid,
		SessionID:  sessionID,
		Properties: map[string]interface{}{key: value},
		Timestamp:  timestamp,
	}
}
