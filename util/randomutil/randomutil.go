package randomutil

import (
	"math/rand"
)

type RandomGenerator interface {
	GenerateInt63() int64
}

// BooleanGenerator returns true or false with equal chance. It breaks ties that are
// deliberately left non-deterministic, such as two deduplicated bids at the same price.
type BooleanGenerator interface {
	Generate() bool
}

type RandomNumberGenerator struct{}

func (RandomNumberGenerator) GenerateInt63() int64 {
	return rand.Int63()
}

func (RandomNumberGenerator) Generate() bool {
	return rand.Intn(100) < 50
}

// FixedBooleanGenerator always returns its own value.
type FixedBooleanGenerator bool

func (g FixedBooleanGenerator) Generate() bool {
	return bool(g)
}
