package audit

import (
	"fmt"

	"mwc.dev/supplyverifier/commit"
)

// Verification is the outcome of the supply equation
//
//	Σ outputs == Σ kernel excesses + offset*G + reward*H
//
// LHS and RHS are the serialized sides; the identity serializes as zero bytes.
type Verification struct {
	LHS      commit.Commitment
	RHS      commit.Commitment
	Balanced bool
}

// Verify evaluates the supply equation. An unbalanced result is reported in
// the Verification, not as an error.
func Verify[P any](g commit.Group[P], outputs, excess P, offset commit.Scalar, reward uint64) (Verification, error) {
	offsetG, err := g.MulBase(offset)
	if err != nil {
		return Verification{}, fmt.Errorf("verify: offset: %w", err)
	}
	rewardH, err := g.MulAux(commit.ScalarFromUint64(reward))
	if err != nil {
		return Verification{}, fmt.Errorf("verify: reward: %w", err)
	}
	lhs := g.Encode(outputs)
	rhs := g.Encode(commit.Sum(g, excess, offsetG, rewardH))
	return Verification{LHS: lhs, RHS: rhs, Balanced: lhs == rhs}, nil
}
