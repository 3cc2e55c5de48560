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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketForUser_Deterministic(t *testing.T) {
	a := BucketForUser("123_user1", maxTrafficValue)
	b := BucketForUser("123_user1", maxTrafficValue)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 1)
	assert.LessOrEqual(t, a, maxTrafficValue)
}

func TestAllocateRanges_OneIndexedContiguous(t *testing.T) {
	ranges := allocateRanges([]float64{50, 50})
	assert.Equal(t, bucketingRange{1, 5000}, ranges[0])
	assert.Equal(t, bucketingRange{5001, 10000}, ranges[1])
}

func TestAllocateRangesZeroIndexed_ForMEG(t *testing.T) {
	ranges := allocateRangesZeroIndexed([]float64{50, 50})
	assert.Equal(t, bucketingRange{0, 5000}, ranges[0])
	assert.Equal(t, bucketingRange{5000, 10000}, ranges[1])
}

func TestScaleWeights_ZeroSumSplitsEqually(t *testing.T) {
	scaled := scaleWeights([]float64{0, 0})
	assert.Equal(t, []float64{50, 50}, scaled)
}

func TestStepFor_CapsAtMaxTraffic(t *testing.T) {
	assert.Equal(t, maxTrafficValue, stepFor(150))
	assert.Equal(t, 901, stepFor(9.01))
}

func TestBucketingSeed_PrefersSaltOverID(t *testing.T) {
	assert.Equal(t, "mysalt_user1", bucketingSeed("mysalt", "123", "user1"))
	assert.Equal(t, "123_user1", bucketingSeed("", "123", "user1"))
}
