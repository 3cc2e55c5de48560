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
	"strings"
	"time"

	"github.com/google/uuid"
)

// vwoNamespace is the fixed root of the UUID5 derivation chain: uuid5(NAMESPACE_URL,
// "https://vwo.com"). Computed once at package init since both inputs are constant.
var vwoNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://vwo.com"))

// VWOContext contains VWO-resolved context a caller can pre-populate to skip a
// gateway round trip: a location and a UA breakdown. Either field may be left
// nil, in which case the gateway service (if configured) is consulted.
type VWOContext struct {
	Location map[string]string
	UAInfo   map[string]string
}

// UserContext is the per-call input to GetFlag, TrackEvent, and SetAttribute. It
// is normalized once into an internal resolvedContext and discarded at the end
// of the call.
type UserContext struct {
	ID                           string
	UserAgent                    string
	IPAddress                    string
	CustomVariables              map[string]interface{}
	VariationTargetingVariables  map[string]interface{}
	PostSegmentationVariables    []string
	VWO                          *VWOContext
}

// resolvedContext is UserContext plus the derived fields every evaluation needs:
// the stable UUID and a session id generated fresh per call, per the pinned
// answer to the sessionId open question (§9).
type resolvedContext struct {
	UserContext
	uuid      string
	sessionID int64
}

func resolveContext(accountID string, uc UserContext) (resolvedContext, bool) {
	if uc.ID == "" {
		return resolvedContext{}, false
	}
	return resolvedContext{
		UserContext: uc,
		uuid:        deriveUUID(uc.ID, accountID),
		sessionID:   time.Now().Unix(),
	}, true
}

// deriveUUID implements §6's UUID formula:
// uuid5(uuid5(uuid5(NAMESPACE_URL, "https://vwo.com"), accountId), userId),
// dashes stripped, uppercased.
func deriveUUID(userID, accountID string) string {
	accountNamespace := uuid.NewSHA1(vwoNamespace, []byte(accountID))
	final := uuid.NewSHA1(accountNamespace, []byte(userID))
	return strings.ToUpper(strings.ReplaceAll(final.String(), "-", ""))
}
