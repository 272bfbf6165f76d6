// Package devchain writes synthetic chains whose supply balances by
// construction. Every coinbase pays exactly the scheduled reward plus the fees
// of its block, and every transaction carries a kernel and an offset that
// account for its blinding factors.
package devchain

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"mwc.dev/supplyverifier/commit"
	"mwc.dev/supplyverifier/consensus"
	"mwc.dev/supplyverifier/node/store"
)

const (
	genesisTimestamp = 1_700_000_000
	blockInterval    = 60
	maxFee           = 1000
)

type ownedOutput struct {
	commitment commit.Commitment
	value      uint64
	blind      commit.Scalar
}

// Builder appends balanced blocks to an empty store. It remembers the value
// and blinding factor of every output it created so that later blocks can
// spend them.
type Builder[P any] struct {
	group    commit.Group[P]
	schedule consensus.Schedule
	db       *store.DB
	rng      *rand.Rand

	tip    consensus.BlockHeader
	hasTip bool
	owned  []ownedOutput
}

func NewBuilder[P any](group commit.Group[P], schedule consensus.Schedule, db *store.DB, seed uint64) *Builder[P] {
	var key [32]byte
	for i := 0; i < 8; i++ {
		key[i] = byte(seed >> (8 * i))
	}
	return &Builder[P]{
		group:    group,
		schedule: schedule,
		db:       db,
		rng:      rand.New(rand.NewChaCha8(key)),
	}
}

// Tip returns the header of the last block appended by the builder.
func (b *Builder[P]) Tip() (consensus.BlockHeader, bool) { return b.tip, b.hasTip }

// Build appends blocks blocks, each with up to txsPerBlock transactions.
func (b *Builder[P]) Build(blocks, txsPerBlock int) error {
	for i := 0; i < blocks; i++ {
		if _, err := b.Next(txsPerBlock); err != nil {
			return err
		}
	}
	return nil
}

// Next appends one block. The first call writes the genesis block, which has
// a coinbase and no transactions. Each transaction spends one output created
// by an earlier block into two fresh outputs.
func (b *Builder[P]) Next(txs int) (consensus.Block, error) {
	var h consensus.BlockHeader
	h.Version = 1
	if b.hasTip {
		h.Height = b.tip.Height + 1
		h.PrevHash = b.tip.Hash()
	}
	h.Timestamp = genesisTimestamp + h.Height*blockInterval

	blk := consensus.Block{Header: h}
	var (
		created []consensus.Output
		spent   []commit.Commitment
		fresh   []ownedOutput
		fees    uint64
	)
	available := append([]ownedOutput(nil), b.owned...)
	for i := 0; i < txs && len(available) > 0; i++ {
		idx := b.rng.IntN(len(available))
		in := available[idx]
		available[idx] = available[len(available)-1]
		available = available[:len(available)-1]

		tx, err := b.spend(in)
		if err != nil {
			return consensus.Block{}, fmt.Errorf("devchain: block %d tx %d: %w", h.Height, i, err)
		}
		if blk.Offset, err = b.group.AddScalars(blk.Offset, tx.offset); err != nil {
			return consensus.Block{}, err
		}
		blk.Kernels = append(blk.Kernels, tx.kernel)
		fees += tx.kernel.Fee
		spent = append(spent, in.commitment)
		for _, o := range tx.outputs {
			created = append(created, consensus.Output{Commitment: o.commitment, Features: consensus.OutputPlain, Height: h.Height})
		}
		fresh = append(fresh, tx.outputs...)
	}

	cb, kernel, err := b.coinbase(b.schedule.BlockReward(h.Height) + fees)
	if err != nil {
		return consensus.Block{}, fmt.Errorf("devchain: block %d coinbase: %w", h.Height, err)
	}
	blk.Kernels = append(blk.Kernels, kernel)
	created = append(created, consensus.Output{Commitment: cb.commitment, Features: consensus.OutputCoinbase, Height: h.Height})
	fresh = append(fresh, cb)

	blk.Header.TotalKernelOffset = blk.Offset
	if b.hasTip {
		if blk.Header.TotalKernelOffset, err = b.group.AddScalars(b.tip.TotalKernelOffset, blk.Offset); err != nil {
			return consensus.Block{}, err
		}
	}

	if _, err := b.db.AppendBlock(blk, created, spent); err != nil {
		return consensus.Block{}, err
	}
	b.owned = append(available, fresh...)
	b.tip, b.hasTip = blk.Header, true
	return blk, nil
}

type transaction struct {
	outputs []ownedOutput
	kernel  consensus.Kernel
	offset  commit.Scalar
}

// spend builds a transaction from in to two outputs. With k the transaction
// offset, the kernel excess is
//
//	out1 + out2 - in + fee*H - k*G
//
// which is a multiple of G alone because the values balance.
func (b *Builder[P]) spend(in ownedOutput) (transaction, error) {
	g := b.group
	fee := b.rng.Uint64N(min(in.value, maxFee) + 1)
	rest := in.value - fee
	split := b.rng.Uint64N(rest + 1)

	o1, p1, err := b.newOutput(split)
	if err != nil {
		return transaction{}, err
	}
	o2, p2, err := b.newOutput(rest - split)
	if err != nil {
		return transaction{}, err
	}
	pin, err := g.Decode(in.commitment)
	if err != nil {
		return transaction{}, err
	}
	feeH, err := g.MulAux(commit.ScalarFromUint64(fee))
	if err != nil {
		return transaction{}, err
	}
	k := b.randomScalar()
	kG, err := g.MulBase(k)
	if err != nil {
		return transaction{}, err
	}

	excess := g.Encode(commit.Sum(g, p1, p2, g.Negate(pin), feeH, g.Negate(kG)))
	if excess.IsZero() {
		return transaction{}, fmt.Errorf("degenerate kernel excess")
	}
	return transaction{
		outputs: []ownedOutput{o1, o2},
		kernel:  consensus.Kernel{Features: consensus.KernelPlain, Fee: fee, Excess: excess},
		offset:  k,
	}, nil
}

// coinbase mints value to a fresh output. Its kernel excess is the blinding
// factor of the output times G.
func (b *Builder[P]) coinbase(value uint64) (ownedOutput, consensus.Kernel, error) {
	o, _, err := b.newOutput(value)
	if err != nil {
		return ownedOutput{}, consensus.Kernel{}, err
	}
	rG, err := b.group.MulBase(o.blind)
	if err != nil {
		return ownedOutput{}, consensus.Kernel{}, err
	}
	return o, consensus.Kernel{Features: consensus.KernelCoinbase, Excess: b.group.Encode(rG)}, nil
}

func (b *Builder[P]) newOutput(value uint64) (ownedOutput, P, error) {
	blind := b.randomScalar()
	p, err := commit.Commit(b.group, value, blind)
	if err != nil {
		var zero P
		return ownedOutput{}, zero, err
	}
	c := b.group.Encode(p)
	if c.IsZero() {
		var zero P
		return ownedOutput{}, zero, fmt.Errorf("degenerate output commitment")
	}
	return ownedOutput{commitment: c, value: value, blind: blind}, p, nil
}

// randomScalar draws 252 random bits, which is below the order of every
// supported group.
func (b *Builder[P]) randomScalar() commit.Scalar {
	var s commit.Scalar
	for i := 0; i < commit.ScalarSize; i += 8 {
		binary.BigEndian.PutUint64(s[i:i+8], b.rng.Uint64())
	}
	s[0] &= 0x0f
	return s
}

// Tamper flips one bit of the first unspent output in key order. It picks the
// lowest bit of the first byte, or failing that of the last byte, whose flip
// still decodes in g, so the damage shows up as an unbalanced equation rather
// than as an invalid commitment.
func Tamper[P any](g commit.Group[P], db *store.DB) (before, after commit.Commitment, err error) {
	snap, err := db.Snapshot()
	if err != nil {
		return before, after, err
	}
	found := false
	for o, err := range snap.Outputs() {
		if err != nil {
			_ = snap.Close()
			return before, after, err
		}
		before, found = o.Commitment, true
		break
	}
	if err := snap.Close(); err != nil {
		return before, after, err
	}
	if !found {
		return before, after, fmt.Errorf("devchain: no outputs to tamper with")
	}

	for _, pos := range []int{0, commit.Size - 1} {
		after = before
		after[pos] ^= 0x01
		if g.IsValid(after) {
			return before, after, db.ReplaceOutput(before, after)
		}
	}
	return before, after, fmt.Errorf("devchain: no single-bit flip of %s stays valid", before)
}
