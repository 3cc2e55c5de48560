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
	"math"

	"github.com/spaolacci/murmur3"
)

// hashSeed is fixed so that bucketing is stable across SDK versions and languages.
const hashSeed uint32 = 1

// maxTrafficValue is the resolution bucketing decisions are made at.
const maxTrafficValue = 10000

// Hash returns the MurmurHash3-x86-32 of key using the fixed seed the rest of the
// ecosystem bucketing-compatible SDKs use.
func Hash(key string) uint32 {
	return murmur3.Sum32WithSeed([]byte(key), hashSeed)
}

// Bucket maps a hash into [1, max] (for mult 1) scaled by mult, matching the reference
// generate_bucket_value formula: floor((max*hash/2^32 + 1) * mult).
func Bucket(hash uint32, max int, mult float64) int {
	ratio := float64(hash) / math.Pow(2, 32)
	return int(math.Floor((float64(max)*ratio + 1) * mult))
}

// BucketForUser hashes key and buckets it into [1, max] with a multiplier of 1.
func BucketForUser(key string, max int) int {
	return Bucket(Hash(key), max, 1)
}

// bucketingRange is a [Start, End] range, inclusive on both ends, assigned
// to one weighted item during allocation.
type bucketingRange struct {
	Start int
	End   int
}

// contains reports whether value falls within the range, inclusive on both ends.
// A range of [-1,-1] (a zero-weight item) never contains anything.
func (r bucketingRange) contains(value int) bool {
	return r.Start >= 0 && value >= r.Start && value <= r.End
}

// allocateRanges assigns contiguous 1-indexed ranges to a set of weights, scaling
// them to sum to 100 first. Matches campaign_util.py's set_variation_allocation /
// scale_variation_weights / assign_range_values.
func allocateRanges(weights []float64) []bucketingRange {
	scaled := scaleWeights(weights)
	ranges := make([]bucketingRange, len(scaled))
	cursor := 0
	for i, w := range scaled {
		step := stepFor(w)
		if step == 0 {
			ranges[i] = bucketingRange{-1, -1}
			continue
		}
		ranges[i] = bucketingRange{cursor + 1, cursor + step}
		cursor += step
	}
	return ranges
}

// allocateRangesZeroIndexed assigns MEG inter-campaign ranges on a 0-indexed
// [cursor, cursor+step] walk, per meg_util.py's assign_range_values_meg.
func allocateRangesZeroIndexed(weights []float64) []bucketingRange {
	scaled := scaleWeights(weights)
	ranges := make([]bucketingRange, len(scaled))
	cursor := 0
	for i, w := range scaled {
		step := stepFor(w)
		if step == 0 {
			ranges[i] = bucketingRange{-1, -1}
			continue
		}
		ranges[i] = bucketingRange{cursor, cursor + step}
		cursor += step
	}
	return ranges
}

func scaleWeights(weights []float64) []float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	scaled := make([]float64, len(weights))
	if sum == 0 {
		equal := 100 / float64(len(weights))
		for i := range scaled {
			scaled[i] = equal
		}
		return scaled
	}
	for i, w := range weights {
		scaled[i] = w * 100 / sum
	}
	return scaled
}

func stepFor(weight float64) int {
	step := int(math.Ceil(weight * 100))
	if step > maxTrafficValue {
		step = maxTrafficValue
	}
	return step
}

// bucketingSeed builds the string hashed to bucket a user into a campaign, rollout
// rule, or MEG group: "<salt|id>_<userId>", matching get_bucketing_seed.
func bucketingSeed(salt, id, userID string) string {
	prefix := id
	if salt != "" {
		prefix = salt
	}
	return prefix + "_" + userID
}
