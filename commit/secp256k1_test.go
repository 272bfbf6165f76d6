package commit

import (
	"errors"
	"testing"

	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const (
	encodedG = "0879be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	encodedH = "0950929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0"
	// orderMinusOne is n-1 for the secp256k1 group order n.
	orderMinusOne = "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364140"
	order         = "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"
)

func TestSecp256k1_GeneratorEncodings(t *testing.T) {
	g := Secp256k1{}

	pg, err := g.MulBase(ScalarFromUint64(1))
	require.NoError(t, err)
	assert.Equal(t, encodedG, g.Encode(pg).String())

	ph, err := g.MulAux(ScalarFromUint64(1))
	require.NoError(t, err)
	assert.Equal(t, encodedH, g.Encode(ph).String())
}

func TestSecp256k1_DecodeRoundTrip(t *testing.T) {
	g := Secp256k1{}
	for _, s := range []string{encodedG, encodedH} {
		c, err := ParseCommitment(s)
		require.NoError(t, err)
		p, err := g.Decode(c)
		require.NoError(t, err)
		assert.Equal(t, c, g.Encode(p))
		assert.True(t, g.IsValid(c))
	}

	// Negation flips the residue class of y and therefore the prefix.
	c, err := ParseCommitment(encodedG)
	require.NoError(t, err)
	p, err := g.Decode(c)
	require.NoError(t, err)
	neg := g.Encode(g.Negate(p))
	assert.Equal(t, byte(prefixNonQuadY), neg[0])
	assert.Equal(t, c[1:], neg[1:])
}

func TestSecp256k1_DecodeRejects(t *testing.T) {
	g := Secp256k1{}

	var notOnCurve Commitment
	notOnCurve[0] = prefixQuadY
	notOnCurve[Size-1] = 5 // x^3+7 has no square root for x=5

	var overflow Commitment
	overflow[0] = prefixQuadY
	for i := 1; i < Size; i++ {
		overflow[i] = 0xff
	}

	wrongPrefix, err := ParseCommitment(encodedG)
	require.NoError(t, err)
	wrongPrefix[0] = 0x02

	cases := map[string]Commitment{
		"identity":     {},
		"not on curve": notOnCurve,
		"x overflow":   overflow,
		"pubkey style": wrongPrefix,
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := g.Decode(c)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCommitment))
			assert.False(t, g.IsValid(c))
		})
	}
}

func TestSecp256k1_IdentityAndNegate(t *testing.T) {
	g := Secp256k1{}
	p, err := Commit[secp.JacobianPoint](g, 42, ScalarFromUint64(7))
	require.NoError(t, err)

	assert.True(t, g.Encode(g.Identity()).IsZero())
	assert.Equal(t, g.Encode(p), g.Encode(g.Add(p, g.Identity())))
	assert.Equal(t, g.Encode(p), g.Encode(g.Add(g.Identity(), p)))
	assert.True(t, g.Encode(g.Add(p, g.Negate(p))).IsZero())

	zero, err := g.MulBase(Scalar{})
	require.NoError(t, err)
	assert.True(t, g.Encode(zero).IsZero())
}

func TestSecp256k1_Scalars(t *testing.T) {
	g := Secp256k1{}

	nMinus1, err := ParseScalar(orderMinusOne)
	require.NoError(t, err)
	sum, err := g.AddScalars(nMinus1, ScalarFromUint64(2))
	require.NoError(t, err)
	assert.Equal(t, ScalarFromUint64(1), sum)

	n, err := ParseScalar(order)
	require.NoError(t, err)
	_, err = g.MulBase(n)
	assert.True(t, errors.Is(err, ErrInvalidScalar))
	_, err = g.AddScalars(n, ScalarFromUint64(1))
	assert.True(t, errors.Is(err, ErrInvalidScalar))
}

func TestSecp256k1_Homomorphic(t *testing.T) {
	g := Secp256k1{}
	r1, r2 := ScalarFromUint64(1111), ScalarFromUint64(2222)

	a, err := Commit[secp.JacobianPoint](g, 3, r1)
	require.NoError(t, err)
	b, err := Commit[secp.JacobianPoint](g, 4, r2)
	require.NoError(t, err)

	r, err := g.AddScalars(r1, r2)
	require.NoError(t, err)
	want, err := Commit[secp.JacobianPoint](g, 7, r)
	require.NoError(t, err)

	assert.True(t, Equal[secp.JacobianPoint](g, want, g.Add(a, b)))
}

// TestSecp256k1_SumOrderInvariant checks that any permutation of the inputs,
// including repeated points that force the doubling path, sums to the same
// serialized point.
func TestSecp256k1_SumOrderInvariant(t *testing.T) {
	g := Secp256k1{}
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOfN(rapid.Uint64Range(0, 1<<40), 1, 12).Draw(t, "values")
		blinds := rapid.SliceOfN(rapid.Uint64Range(0, 1<<20), len(values), len(values)).Draw(t, "blinds")

		points := make([]secp.JacobianPoint, len(values))
		for i := range values {
			p, err := Commit[secp.JacobianPoint](g, values[i], ScalarFromUint64(blinds[i]))
			require.NoError(t, err)
			points[i] = p
		}
		shuffled := rapid.Permutation(points).Draw(t, "shuffled")

		assert.Equal(t, g.Encode(Sum[secp.JacobianPoint](g, points...)), g.Encode(Sum[secp.JacobianPoint](g, shuffled...)))
	})
}
