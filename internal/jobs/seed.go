package jobs

import (
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// SeedRule derives a job seed from a subject's base seed:
// base + Offset + index*IndexStep + loop*LoopStride.
type SeedRule struct {
	Offset     int64
	IndexStep  int64
	LoopStride int64
}

func (r SeedRule) Seed(base int64, index, loop int) int64 {
	return base + r.Offset + int64(index)*r.IndexStep + int64(loop)*r.LoopStride
}

// Seed layout per job kind. Angles keep the subject's noise base and only
// shift by the angle's own offset, so every angle of one subject renders the
// same underlying person.
var (
	AngleRule    = SeedRule{LoopStride: 100}
	ScenarioRule = SeedRule{Offset: 1000, IndexStep: 50, LoopStride: 100}
	SceneRule    = SeedRule{Offset: 2000, IndexStep: 10, LoopStride: 100}
	GroupRule    = SeedRule{IndexStep: 37, LoopStride: 500}
)

const (
	groupSeedBase = 550000
	groupSeedSpan = 10000
	// MaxRandomSeed bounds reseeded jobs.
	MaxRandomSeed = 9_999_999_999
)

// GroupBase is the base seed for a subject-less group. It depends only on
// the group name, so it is stable across runs and machines.
func GroupBase(name string) int64 {
	return groupSeedBase + int64(xxhash.Sum64String(name)%groupSeedSpan)
}

// RandomSeed draws a seed in [0, MaxRandomSeed].
func RandomSeed(rng *rand.Rand) int64 {
	return rng.Int64N(MaxRandomSeed + 1)
}
