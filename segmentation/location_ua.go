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

package segmentation

import (
	"regexp"
	"strings"
)

// evalGeo requires a resolved IP and location map; every key in want must equal
// its counterpart in ctx.Location after stripping quotes and whitespace.
func evalGeo(want map[string]string, ctx EvalContext) bool {
	if ctx.IPAddress == "" || ctx.Location == nil {
		return false
	}
	for key, expected := range want {
		actual, ok := ctx.Location[key]
		if !ok || normalizeLoose(actual) != normalizeLoose(expected) {
			return false
		}
	}
	return true
}

// evalUA requires a resolved user agent and UA-parser map; every key in want
// must match its counterpart in ctx.UAInfo, wildcard-aware.
func evalUA(want map[string]string, ctx EvalContext) bool {
	if ctx.UserAgent == "" || ctx.UAInfo == nil {
		return false
	}
	for key, expected := range want {
		actual, ok := ctx.UAInfo[key]
		if !ok || !uaValueMatches(expected, actual) {
			return false
		}
	}
	return true
}

func uaValueMatches(expected, actual string) bool {
	if m := wildcardPattern.FindStringSubmatch(expected); m != nil {
		pattern := "(?i)^" + strings.ReplaceAll(regexp.QuoteMeta(m[1]), `\*`, ".*") + "$"
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(actual)
	}
	return strings.EqualFold(expected, actual)
}

func normalizeLoose(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
