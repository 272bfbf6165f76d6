// Package toygroup provides a commitment group over the additive group of the
// BN254 scalar field. Discrete logs are trivial in it, so it hides nothing, but
// it satisfies the commit.Group contract at a fraction of the cost of curve
// arithmetic and is used for fast deterministic tests.
package toygroup

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"mwc.dev/supplyverifier/commit"
)

const prefix = 0x01

var (
	generatorG = fr.NewElement(2)
	generatorH = fr.NewElement(0x9e3779b97f4a7c15)
)

type Group struct{}

var _ commit.Group[fr.Element] = Group{}

func (Group) Name() string { return "toy-bn254-fr" }

func (Group) Identity() fr.Element { return fr.Element{} }

func (Group) Add(a, b fr.Element) fr.Element {
	var r fr.Element
	r.Add(&a, &b)
	return r
}

func (Group) Negate(a fr.Element) fr.Element {
	var r fr.Element
	r.Neg(&a)
	return r
}

func (Group) MulBase(k commit.Scalar) (fr.Element, error) {
	return mul(k, &generatorG)
}

func (Group) MulAux(k commit.Scalar) (fr.Element, error) {
	return mul(k, &generatorH)
}

func (Group) AddScalars(a, b commit.Scalar) (commit.Scalar, error) {
	ea, err := scalar(a)
	if err != nil {
		return commit.Scalar{}, err
	}
	eb, err := scalar(b)
	if err != nil {
		return commit.Scalar{}, err
	}
	ea.Add(&ea, &eb)
	return commit.Scalar(ea.Bytes()), nil
}

func (Group) Decode(c commit.Commitment) (fr.Element, error) {
	var e fr.Element
	if c[0] != prefix {
		return e, fmt.Errorf("%w: bad prefix 0x%02x", commit.ErrInvalidCommitment, c[0])
	}
	if err := e.SetBytesCanonical(c[1:]); err != nil {
		return e, fmt.Errorf("%w: %v", commit.ErrInvalidCommitment, err)
	}
	if e.IsZero() {
		return e, fmt.Errorf("%w: identity", commit.ErrInvalidCommitment)
	}
	return e, nil
}

func (Group) Encode(e fr.Element) commit.Commitment {
	var c commit.Commitment
	if e.IsZero() {
		return c
	}
	c[0] = prefix
	b := e.Bytes()
	copy(c[1:], b[:])
	return c
}

func (g Group) IsValid(c commit.Commitment) bool {
	_, err := g.Decode(c)
	return err == nil
}

func mul(k commit.Scalar, gen *fr.Element) (fr.Element, error) {
	e, err := scalar(k)
	if err != nil {
		return e, err
	}
	e.Mul(&e, gen)
	return e, nil
}

func scalar(k commit.Scalar) (fr.Element, error) {
	var e fr.Element
	if err := e.SetBytesCanonical(k[:]); err != nil {
		return e, fmt.Errorf("%w: %v", commit.ErrInvalidScalar, err)
	}
	return e, nil
}
