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
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	lowerPattern    = regexp.MustCompile(`^lower\((.*)\)$`)
	wildcardPattern = regexp.MustCompile(`^wildcard\((.*)\)$`)
	regexPattern    = regexp.MustCompile(`^regex\((.*)\)$`)
	gtPattern       = regexp.MustCompile(`^gt\((.*)\)$`)
	gtePattern      = regexp.MustCompile(`^gte\((.*)\)$`)
	ltPattern       = regexp.MustCompile(`^lt\((.*)\)$`)
	ltePattern      = regexp.MustCompile(`^lte\((.*)\)$`)
	inlistPattern   = regexp.MustCompile(`^inlist\((.*)\)$`)
)

// matchOperand implements the leaf operand grammar from §4.2: lower/wildcard/
// regex/gt/gte/lt/lte prefixes, falling back to exact string equality.
func matchOperand(operand, actual string) bool {
	switch {
	case lowerPattern.MatchString(operand):
		want := lowerPattern.FindStringSubmatch(operand)[1]
		return strings.EqualFold(want, actual)
	case wildcardPattern.MatchString(operand):
		pattern := wildcardPattern.FindStringSubmatch(operand)[1]
		return matchWildcard(pattern, actual)
	case regexPattern.MatchString(operand):
		pattern := regexPattern.FindStringSubmatch(operand)[1]
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(actual)
	case gtPattern.MatchString(operand):
		cmp, ok := compareOperands(actual, gtPattern.FindStringSubmatch(operand)[1])
		return ok && cmp > 0
	case gtePattern.MatchString(operand):
		cmp, ok := compareOperands(actual, gtePattern.FindStringSubmatch(operand)[1])
		return ok && cmp >= 0
	case ltPattern.MatchString(operand):
		cmp, ok := compareOperands(actual, ltPattern.FindStringSubmatch(operand)[1])
		return ok && cmp < 0
	case ltePattern.MatchString(operand):
		cmp, ok := compareOperands(actual, ltePattern.FindStringSubmatch(operand)[1])
		return ok && cmp <= 0
	default:
		return operand == actual
	}
}

func parseInlist(operand string) (listID string, ok bool) {
	if m := inlistPattern.FindStringSubmatch(operand); m != nil {
		return m[1], true
	}
	return "", false
}

func matchWildcard(pattern, actual string) bool {
	switch {
	case len(pattern) >= 2 && strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*"):
		return strings.Contains(actual, pattern[1:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(actual, pattern[1:])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(actual, pattern[:len(pattern)-1])
	default:
		return pattern == actual
	}
}

// compareOperands compares actual against bound. When both are all-numeric
// dotted strings ("1.10"), components compare as integers; when both are
// non-numeric, components compare lexically; a mix of the two is not
// comparable, per §4.2.
func compareOperands(actual, bound string) (int, bool) {
	actualParts := strings.Split(actual, ".")
	boundParts := strings.Split(bound, ".")
	actualNumeric := allNumericComponents(actualParts)
	boundNumeric := allNumericComponents(boundParts)
	if actualNumeric != boundNumeric {
		return 0, false
	}
	return compareComponents(actualParts, boundParts, actualNumeric), true
}

func allNumericComponents(parts []string) bool {
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			return false
		}
	}
	return true
}

func compareComponents(a, b []string, numeric bool) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var av, bv string
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if numeric {
			ai, _ := strconv.Atoi(av)
			bi, _ := strconv.Atoi(bv)
			if ai != bi {
				if ai < bi {
					return -1
				}
				return 1
			}
			continue
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// NormalizeTagValue implements the tag-value pre-processing rule from §4.2:
// booleans are preserved as "true"/"false", nil becomes "", and integer-valued
// floats lose their trailing ".0". Everything else is stringified as-is.
func NormalizeTagValue(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case bool:
		if value {
			return "true"
		}
		return "false"
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int, int32, int64:
		return strconv.FormatInt(toInt64(value), 10)
	default:
		return strings.TrimSpace(strconvFallback(value))
	}
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}

func strconvFallback(v interface{}) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}

func splitAndTrim(s string, sep rune) []string {
	raw := strings.Split(s, string(sep))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		out = append(out, strings.TrimSpace(r))
	}
	return out
}
