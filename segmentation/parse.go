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
	"encoding/json"

	"golang.org/x/xerrors"
)

// Parse decodes a segment DSL document (a JSON object carrying exactly one
// operator key, or empty for "no segments") into a Node tree.
func Parse(raw []byte) (Node, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, xerrors.Errorf("decoding segment node: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	for key, value := range fields {
		return parseOperator(key, value)
	}
	return nil, nil
}

func parseOperator(key string, value json.RawMessage) (Node, error) {
	switch key {
	case "not":
		child, err := Parse(value)
		if err != nil {
			return nil, err
		}
		return NotNode{Child: child}, nil
	case "and":
		children, err := parseChildren(value)
		if err != nil {
			return nil, err
		}
		return AndNode{Children: children}, nil
	case "or":
		children, err := parseChildren(value)
		if err != nil {
			return nil, err
		}
		return OrNode{Children: children}, nil
	case "custom_variable":
		k, v, err := parseSingleEntry(value)
		if err != nil {
			return nil, err
		}
		return CustomVariableNode{Key: k, Operand: v}, nil
	case "featureId":
		k, v, err := parseSingleEntry(value)
		if err != nil {
			return nil, err
		}
		return FeatureIDNode{FeatureID: k, Expect: v}, nil
	case "user":
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, xerrors.Errorf("decoding user operand: %w", err)
		}
		return UserListNode{List: s}, nil
	case "user_agent":
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, xerrors.Errorf("decoding user_agent operand: %w", err)
		}
		return UserAgentNode{Operand: s}, nil
	case "country":
		return CountryNode{Operand: mustString(value)}, nil
	case "region":
		return RegionNode{Operand: mustString(value)}, nil
	case "city":
		return CityNode{Operand: mustString(value)}, nil
	case "os":
		return OSNode{Operand: mustString(value)}, nil
	case "browser_string":
		return BrowserNode{Operand: mustString(value)}, nil
	case "device":
		return DeviceNode{Operand: mustString(value)}, nil
	case "device_type":
		return DeviceTypeNode{Operand: mustString(value)}, nil
	default:
		return UnknownNode{Key: key}, nil
	}
}

func parseChildren(value json.RawMessage) ([]Node, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(value, &raws); err != nil {
		return nil, xerrors.Errorf("decoding operator children: %w", err)
	}
	children := make([]Node, 0, len(raws))
	for _, raw := range raws {
		node, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		if node != nil {
			children = append(children, node)
		}
	}
	return children, nil
}

func parseSingleEntry(value json.RawMessage) (key, operand string, err error) {
	var m map[string]string
	if err := json.Unmarshal(value, &m); err != nil {
		return "", "", xerrors.Errorf("decoding single-entry operand: %w", err)
	}
	for k, v := range m {
		return k, v, nil
	}
	return "", "", nil
}

// mustString best-effort decodes a leaf operand that is expected to be a bare
// JSON string; a malformed leaf decodes to "" rather than failing the parse,
// matching §4.2's "malformed operand ... returns false" failure mode (an empty
// operand never matches anything at evaluation time).
func mustString(value json.RawMessage) string {
	var s string
	_ = json.Unmarshal(value, &s)
	return s
}
