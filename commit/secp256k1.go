package commit

import (
	"encoding/hex"
	"fmt"

	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Serialization prefixes of secp256k1-zkp Pedersen commitments. The prefix
// encodes whether the affine y coordinate is a quadratic residue mod p, not
// its parity as in public key compression.
const (
	prefixQuadY    = 0x08
	prefixNonQuadY = 0x09
)

// generatorH is the NUMS value generator used by Grin and MWC commitments.
var generatorH = func() secp.JacobianPoint {
	x := mustFieldHex("50929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0")
	y := mustFieldHex("31d3c6863973926e049e637cb1b5f40a36dac28af1766968c30c2313f3a38904")
	var one secp.FieldVal
	one.SetInt(1)
	return secp.MakeJacobianPoint(x, y, &one)
}()

func mustFieldHex(s string) *secp.FieldVal {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	var f secp.FieldVal
	if overflow := f.SetByteSlice(b); overflow {
		panic("field value overflows: " + s)
	}
	return &f
}

// Secp256k1 is the commitment group of MWC: secp256k1 with the standard base
// point as G and the NUMS generator H.
type Secp256k1 struct{}

var _ Group[secp.JacobianPoint] = Secp256k1{}

func (Secp256k1) Name() string { return "secp256k1" }

func (Secp256k1) Identity() secp.JacobianPoint {
	return secp.JacobianPoint{}
}

func (Secp256k1) Add(a, b secp.JacobianPoint) secp.JacobianPoint {
	var r secp.JacobianPoint
	secp.AddNonConst(&a, &b, &r)
	return r
}

func (Secp256k1) Negate(a secp.JacobianPoint) secp.JacobianPoint {
	a.Y.Normalize().Negate(1).Normalize()
	return a
}

func (Secp256k1) MulBase(k Scalar) (secp.JacobianPoint, error) {
	var r secp.JacobianPoint
	s, err := modN(k)
	if err != nil {
		return r, err
	}
	secp.ScalarBaseMultNonConst(&s, &r)
	return r, nil
}

func (Secp256k1) MulAux(k Scalar) (secp.JacobianPoint, error) {
	var r secp.JacobianPoint
	s, err := modN(k)
	if err != nil {
		return r, err
	}
	h := generatorH
	secp.ScalarMultNonConst(&s, &h, &r)
	return r, nil
}

func (Secp256k1) AddScalars(a, b Scalar) (Scalar, error) {
	sa, err := modN(a)
	if err != nil {
		return Scalar{}, err
	}
	sb, err := modN(b)
	if err != nil {
		return Scalar{}, err
	}
	return Scalar(sa.Add(&sb).Bytes()), nil
}

func (Secp256k1) Decode(c Commitment) (secp.JacobianPoint, error) {
	var p secp.JacobianPoint
	if c[0] != prefixQuadY && c[0] != prefixNonQuadY {
		return p, fmt.Errorf("%w: bad prefix 0x%02x", ErrInvalidCommitment, c[0])
	}
	if overflow := p.X.SetByteSlice(c[1:]); overflow {
		return p, fmt.Errorf("%w: x coordinate exceeds field prime", ErrInvalidCommitment)
	}
	if !secp.DecompressY(&p.X, false, &p.Y) {
		return p, fmt.Errorf("%w: x coordinate not on curve", ErrInvalidCommitment)
	}
	// Exactly one of y and -y is a residue since -1 is not one mod p.
	if isQuadResidue(&p.Y) != (c[0] == prefixQuadY) {
		p.Y.Negate(1).Normalize()
	}
	p.Z.SetInt(1)
	return p, nil
}

func (Secp256k1) Encode(p secp.JacobianPoint) Commitment {
	var c Commitment
	if isInfinity(&p) {
		return c
	}
	p.ToAffine()
	c[0] = prefixNonQuadY
	if isQuadResidue(&p.Y) {
		c[0] = prefixQuadY
	}
	p.X.PutBytesUnchecked(c[1:])
	return c
}

func (g Secp256k1) IsValid(c Commitment) bool {
	_, err := g.Decode(c)
	return err == nil
}

func modN(k Scalar) (secp.ModNScalar, error) {
	var s secp.ModNScalar
	b := [ScalarSize]byte(k)
	if overflow := s.SetBytes(&b); overflow != 0 {
		return s, fmt.Errorf("%w: %s not below group order", ErrInvalidScalar, k)
	}
	return s, nil
}

// isInfinity expects a normalized point, which every Secp256k1 operation
// returns.
func isInfinity(p *secp.JacobianPoint) bool {
	return (p.X.IsZero() && p.Y.IsZero()) || p.Z.IsZero()
}

func isQuadResidue(y *secp.FieldVal) bool {
	var root secp.FieldVal
	return root.SquareRootVal(y)
}
