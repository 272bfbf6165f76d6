// Package commit implements the Pedersen commitment algebra the supply audit
// is computed over.
//
// A commitment to value v with blinding factor r is r·G + v·H, where G and H
// are independent generators. Commitments only cross package boundaries in
// their serialized form; each Group decodes them into its own point type.
package commit

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// Size is the length of a serialized commitment.
	Size = 33
	// ScalarSize is the length of a serialized scalar.
	ScalarSize = 32
)

var (
	ErrInvalidCommitment = errors.New("invalid commitment")
	ErrInvalidScalar     = errors.New("invalid scalar")
)

// Commitment is a compressed, serialized group element.
type Commitment [Size]byte

func (c Commitment) String() string {
	return hex.EncodeToString(c[:])
}

// IsZero reports whether c is the all-zero encoding used to display the
// identity element. It is never a valid input commitment.
func (c Commitment) IsZero() bool {
	return c == Commitment{}
}

// CommitmentFromBytes copies b into a Commitment. It only checks the length;
// curve validity is the job of Group.Decode.
func CommitmentFromBytes(b []byte) (Commitment, error) {
	var c Commitment
	if len(b) != Size {
		return c, fmt.Errorf("commitment: expected %d bytes, got %d", Size, len(b))
	}
	copy(c[:], b)
	return c, nil
}

func ParseCommitment(s string) (Commitment, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Commitment{}, fmt.Errorf("commitment hex: %w", err)
	}
	return CommitmentFromBytes(b)
}

// Scalar is a big-endian element of a group's scalar field (a blinding factor
// or an amount).
type Scalar [ScalarSize]byte

func (s Scalar) String() string {
	return hex.EncodeToString(s[:])
}

func (s Scalar) IsZero() bool {
	return s == Scalar{}
}

func ScalarFromUint64(v uint64) Scalar {
	var s Scalar
	binary.BigEndian.PutUint64(s[ScalarSize-8:], v)
	return s
}

func ScalarFromBytes(b []byte) (Scalar, error) {
	var s Scalar
	if len(b) != ScalarSize {
		return s, fmt.Errorf("scalar: expected %d bytes, got %d", ScalarSize, len(b))
	}
	copy(s[:], b)
	return s, nil
}

func ParseScalar(s string) (Scalar, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Scalar{}, fmt.Errorf("scalar hex: %w", err)
	}
	return ScalarFromBytes(b)
}

// Group is the minimal algebra the audit needs. P is the implementation's
// point representation. Add must be associative and commutative and Identity
// must be its neutral element.
type Group[P any] interface {
	Name() string
	Identity() P
	Add(a, b P) P
	Negate(a P) P
	// MulBase returns k·G, the generator used for blinding factors and offsets.
	MulBase(k Scalar) (P, error)
	// MulAux returns k·H, the generator used for values and rewards.
	MulAux(k Scalar) (P, error)
	// AddScalars adds two scalars modulo the group order.
	AddScalars(a, b Scalar) (Scalar, error)
	// Decode validates c and returns its point. The identity has no valid
	// input encoding.
	Decode(c Commitment) (P, error)
	Encode(p P) Commitment
	IsValid(c Commitment) bool
}

// Sum folds Add over ps starting from the identity.
func Sum[P any](g Group[P], ps ...P) P {
	acc := g.Identity()
	for _, p := range ps {
		acc = g.Add(acc, p)
	}
	return acc
}

// Equal compares two points by their serialized form.
func Equal[P any](g Group[P], a, b P) bool {
	return g.Encode(a) == g.Encode(b)
}

// Commit returns blind·G + value·H.
func Commit[P any](g Group[P], value uint64, blind Scalar) (P, error) {
	bp, err := g.MulBase(blind)
	if err != nil {
		return g.Identity(), err
	}
	vp, err := g.MulAux(ScalarFromUint64(value))
	if err != nil {
		return g.Identity(), err
	}
	return g.Add(bp, vp), nil
}
