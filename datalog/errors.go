package datalog

import (
	"errors"
	"fmt"
)

// Execution errors abort Verify outright: the verdict question could not
// be answered at all, as opposed to being answered "no".
var (
	ErrTimeout           = errors.New("datalog: evaluation exceeded its time budget")
	ErrTooManyFacts      = errors.New("datalog: fact set exceeded the configured limit")
	ErrTooManyIterations = errors.New("datalog: fixpoint did not converge within the configured iteration limit")
	ErrFactsInBlocks     = errors.New("datalog: attenuation block carries facts or rules but AllowBlockFacts is false")
)

// RevokedError reports that an attenuation (or authority) block's
// revocation id was found revoked during the pre-pass, before any fixpoint
// evaluation ran.
type RevokedError struct {
	BlockIndex int
}

func (e *RevokedError) Error() string {
	return fmt.Sprintf("datalog: block %d has been revoked", e.BlockIndex)
}

// FailedCheck records a single check that did not hold at verdict time,
// identified by the block that contributed it (-1 for the verifier itself)
// and its position within that block/verifier's check list.
type FailedCheck struct {
	BlockIndex int
	CheckIndex int
}

// Result errors report a negative verdict: evaluation completed, but
// authorization did not succeed. These are distinct from execution errors
// because the engine successfully computed an answer.
type NoPoliciesMatchedError struct {
	FailedChecks []FailedCheck
}

func (e *NoPoliciesMatchedError) Error() string {
	return "datalog: no policy matched the final fact set"
}

type FailedChecksError struct {
	FailedChecks []FailedCheck
}

func (e *FailedChecksError) Error() string {
	return fmt.Sprintf("datalog: %d check(s) failed", len(e.FailedChecks))
}

type DenyRuleMatchedError struct {
	FailedChecks []FailedCheck
	PolicyIndex  int
	Query        *QueryItem
}

func (e *DenyRuleMatchedError) Error() string {
	return fmt.Sprintf("datalog: deny policy %d matched", e.PolicyIndex)
}
