// Package token provides the in-memory assembly convenience layer around
// the datalog engine: accumulating facts/rules/checks into blocks, chaining
// attenuation blocks onto an authority block, and driving datalog.Verify
// from a Verifier accumulator. It plays the role the teacher's builder.go
// and authorizer.go play around biscuit-go's engine, minus the
// cryptographic signing and wire-format serialization those files also
// handle — this package only ever holds parsed, in-memory values.
package token

import (
	"errors"

	"github.com/biscuit-auth/biscuit-datalog/datalog"
)

var ErrRuleNotRangeRestricted = datalog.ErrRuleNotRangeRestricted

// BlockBuilder accumulates the facts, rules and checks that will make up
// one block (the authority block, or an attenuation block appended later).
// It mirrors the teacher's blockBuilder, generalized away from its
// symbol-table/protobuf concerns.
type BlockBuilder struct {
	facts  datalog.FactSet
	rules  []datalog.Rule
	checks []datalog.Check
}

func NewBlockBuilder() *BlockBuilder {
	return &BlockBuilder{}
}

func (b *BlockBuilder) AddFact(f datalog.Fact) *BlockBuilder {
	b.facts.Insert(f)
	return b
}

func (b *BlockBuilder) AddRule(r datalog.Rule) *BlockBuilder {
	b.rules = append(b.rules, r)
	return b
}

func (b *BlockBuilder) AddCheck(c datalog.Check) *BlockBuilder {
	b.checks = append(b.checks, c)
	return b
}

// Build finalizes the block, attaching the two revocation ids the caller
// has already derived for it (see SPEC_FULL.md §1 — derivation is an
// external concern).
func (b *BlockBuilder) Build(genericRevocationID, uniqueRevocationID []byte) datalog.Block {
	return datalog.Block{
		Facts:               b.facts.Clone(),
		Rules:               append([]datalog.Rule(nil), b.rules...),
		Checks:              append([]datalog.Check(nil), b.checks...),
		GenericRevocationID: genericRevocationID,
		UniqueRevocationID:  uniqueRevocationID,
	}
}

// Biscuit is an ordered, append-only chain of blocks: an authority block
// plus zero or more attenuation blocks. It is the in-memory analogue of
// the teacher's signed Biscuit value; this package never signs anything.
type Biscuit struct {
	Authority    datalog.Block
	Attenuations []datalog.Block
}

var ErrEmptyAuthority = errors.New("token: a biscuit must have an authority block")

// New starts a biscuit from a finished authority block.
func New(authority datalog.Block) Biscuit {
	return Biscuit{Authority: authority}
}

// Append returns a new Biscuit with blk appended as the next attenuation
// block. The receiver is left untouched, matching append-only semantics:
// a holder can always derive further-restricted tokens from one they hold,
// never mutate the one they started with.
func (b Biscuit) Append(blk datalog.Block) Biscuit {
	attenuations := make([]datalog.Block, len(b.Attenuations)+1)
	copy(attenuations, b.Attenuations)
	attenuations[len(attenuations)-1] = blk
	return Biscuit{Authority: b.Authority, Attenuations: attenuations}
}
