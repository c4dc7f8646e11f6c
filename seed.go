package contracts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Seeds are unsigned 64-bit integers covering the full inclusive range
// [0, 18446744073709551615]. Inside the process the uint64 type enforces
// the domain; ParseSeed guards the wire boundary, where negative literals
// and overflowing literals must fail with a range error rather than decode
// to something else.

// ParseSeed parses a decimal seed literal.
// "-1" and "18446744073709551616" fail with a range error; non-numeric
// text fails with a structural-validation error.
func ParseSeed(s string) (uint64, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "-") && isDecimalDigits(trimmed[1:]) {
		return 0, NewRangeError("seed", fmt.Sprintf("seed %s below minimum 0", trimmed))
	}
	v, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) && errors.Is(ne.Err, strconv.ErrRange) {
			return 0, NewRangeError("seed", fmt.Sprintf("seed %s above maximum 18446744073709551615", trimmed))
		}
		return 0, NewStructuralError("seed", fmt.Sprintf("seed must be a decimal integer, got %q", s))
	}
	return v, nil
}

func isDecimalDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// SeedInfo carries the seed material for one trial: the base seed the
// study was launched with, the seed derived for this trial, and one seed
// per stochastic replicate.
type SeedInfo struct {
	BaseSeed       uint64   `json:"base_seed"`
	TrialSeed      uint64   `json:"trial_seed"`
	ReplicateSeeds []uint64 `json:"replicate_seeds,omitempty"`
}

// NewSeedInfo builds a SeedInfo with a defensive copy of the replicate
// seeds.
func NewSeedInfo(base, trial uint64, replicates []uint64) SeedInfo {
	var reps []uint64
	if len(replicates) > 0 {
		reps = make([]uint64, len(replicates))
		copy(reps, replicates)
	}
	return SeedInfo{BaseSeed: base, TrialSeed: trial, ReplicateSeeds: reps}
}

// DeriveTrialSeed derives a replicate seed deterministically from a trial
// identifier and replicate index. Same inputs always yield the same seed,
// so replicates are reproducible without storing every seed.
func DeriveTrialSeed(trialID string, replicate int) uint64 {
	payload := fmt.Sprintf("%s\x00%d", trialID, replicate)
	sum := sumWithDomain(DomainSeed, []byte(payload))
	return binary.BigEndian.Uint64(sum[:8])
}
