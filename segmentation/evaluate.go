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

// EvalContext carries everything a Node may need to resolve against: the
// caller's stringified custom variables plus VWO-specific context collected by
// the decision pipeline before evaluation starts.
type EvalContext struct {
	// Properties holds custom_variable values, already stringified per §4.2's
	// tag-value pre-processing, plus a synthetic "_vwoUserId" entry for `user`
	// nodes.
	Properties map[string]string

	UserAgent string
	IPAddress string

	// Location and UAInfo come from the caller's pre-resolved data or the
	// gateway service; nil means "not resolved", which makes geo/UA predicates
	// fail closed.
	Location map[string]string
	UAInfo   map[string]string

	// CheckInlist resolves a gateway "inlist(...)" custom_variable operand. A
	// nil func makes any inlist check fail closed.
	CheckInlist func(attribute, listID string) (bool, error)

	// HasFeatureRecord resolves a featureId operand against storage.
	HasFeatureRecord func(featureKey string) bool

	// OnError, if set, observes predicate errors (regex compile failures,
	// gateway errors) without ever causing Evaluate to panic or propagate.
	OnError func(err error)
}

// Evaluate recursively resolves a Node against ctx. An unparseable or unknown
// Node always resolves to false; Evaluate never panics.
func Evaluate(node Node, ctx EvalContext) bool {
	if node == nil {
		return true
	}
	switch n := node.(type) {
	case NotNode:
		return !Evaluate(n.Child, ctx)
	case AndNode:
		return evalAnd(n.Children, ctx)
	case OrNode:
		return evalOr(n.Children, ctx)
	case CustomVariableNode:
		return evalCustomVariable(n, ctx)
	case UserListNode:
		return evalUserList(n, ctx)
	case UserAgentNode:
		return matchOperand(n.Operand, ctx.UserAgent)
	case FeatureIDNode:
		return evalFeatureID(n, ctx)
	case CountryNode:
		return evalGeo(map[string]string{"country": n.Operand}, ctx)
	case RegionNode:
		return evalGeo(map[string]string{"region": n.Operand}, ctx)
	case CityNode:
		return evalGeo(map[string]string{"city": n.Operand}, ctx)
	case OSNode:
		return evalUA(map[string]string{"os": n.Operand}, ctx)
	case BrowserNode:
		return evalUA(map[string]string{"browser_string": n.Operand}, ctx)
	case DeviceNode:
		return evalUA(map[string]string{"device": n.Operand}, ctx)
	case DeviceTypeNode:
		return evalUA(map[string]string{"device_type": n.Operand}, ctx)
	default:
		return false
	}
}

func evalAnd(children []Node, ctx EvalContext) bool {
	if geo, ok := geoGroup(children); ok {
		return evalGeo(geo, ctx)
	}
	for _, child := range children {
		if !Evaluate(child, ctx) {
			return false
		}
	}
	return true
}

func evalOr(children []Node, ctx EvalContext) bool {
	if ua, ok := uaGroup(children); ok {
		return evalUA(ua, ctx)
	}
	for _, child := range children {
		if Evaluate(child, ctx) {
			return true
		}
	}
	return false
}

// geoGroup returns the merged location map when every child is a geo leaf.
func geoGroup(children []Node) (map[string]string, bool) {
	if len(children) == 0 {
		return nil, false
	}
	m := make(map[string]string, len(children))
	for _, child := range children {
		switch n := child.(type) {
		case CountryNode:
			m["country"] = n.Operand
		case RegionNode:
			m["region"] = n.Operand
		case CityNode:
			m["city"] = n.Operand
		default:
			return nil, false
		}
	}
	return m, true
}

// uaGroup returns the merged UA-signature map when every child is a UA leaf.
func uaGroup(children []Node) (map[string]string, bool) {
	if len(children) == 0 {
		return nil, false
	}
	m := make(map[string]string, len(children))
	for _, child := range children {
		switch n := child.(type) {
		case OSNode:
			m["os"] = n.Operand
		case BrowserNode:
			m["browser_string"] = n.Operand
		case DeviceNode:
			m["device"] = n.Operand
		case DeviceTypeNode:
			m["device_type"] = n.Operand
		default:
			return nil, false
		}
	}
	return m, true
}

func evalCustomVariable(n CustomVariableNode, ctx EvalContext) bool {
	actual, ok := ctx.Properties[n.Key]
	if !ok {
		return false
	}
	if listID, isInlist := parseInlist(n.Operand); isInlist {
		if ctx.CheckInlist == nil {
			return false
		}
		result, err := ctx.CheckInlist(n.Key, listID)
		if err != nil {
			if ctx.OnError != nil {
				ctx.OnError(err)
			}
			return false
		}
		return result
	}
	return matchOperand(n.Operand, actual)
}

func evalUserList(n UserListNode, ctx EvalContext) bool {
	target := ctx.Properties["_vwoUserId"]
	for _, candidate := range splitAndTrim(n.List, ',') {
		if candidate == target {
			return true
		}
	}
	return false
}

func evalFeatureID(n FeatureIDNode, ctx EvalContext) bool {
	if ctx.HasFeatureRecord == nil {
		return false
	}
	has := ctx.HasFeatureRecord(n.FeatureID)
	switch n.Expect {
	case "on":
		return has
	case "off":
		return !has
	default:
		return false
	}
}
