package datalog

import "time"

// Clock supplies the current time to the deadline guard. realClock is used
// unless Limits.Clock (or WithClock) supplies another implementation,
// playing the role of the context.Context deadline the teacher's World.Run
// accepts.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RevocationStatus is the result of checking a block's revocation id.
type RevocationStatus byte

const (
	RevocationValid RevocationStatus = iota
	RevocationRevoked
)

// RevocationChecker is supplied by the caller and consulted once per block,
// authority first then attenuation blocks in order, before fixpoint
// evaluation begins. Revocation-id derivation itself is out of scope (see
// SPEC_FULL.md §1) — the engine only asks "is this id revoked".
type RevocationChecker func(blockIndex int, revocationID []byte) RevocationStatus

// Limits bounds the resources a single Verify call may consume and toggles
// optional restrictions, matching spec.md §4.6.
type Limits struct {
	MaxFacts        int
	MaxIterations   int
	MaxTime         time.Duration
	AllowRegexes    bool
	AllowBlockFacts bool
	CheckRevocation RevocationChecker
	Clock           Clock
}

// DefaultLimits matches spec.md's stated defaults: 1000 facts, 100
// iterations, 1ms wall-clock budget, regexes and block facts both allowed,
// no revocation checking.
func DefaultLimits() Limits {
	return Limits{
		MaxFacts:        1000,
		MaxIterations:   100,
		MaxTime:         time.Millisecond,
		AllowRegexes:    true,
		AllowBlockFacts: true,
		Clock:           realClock{},
	}
}

func (l Limits) clock() Clock {
	if l.Clock != nil {
		return l.Clock
	}
	return realClock{}
}
