package store

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	bolt "go.etcd.io/bbolt"

	"mwc.dev/supplyverifier/consensus"
)

// ErrSequenceConsumed is yielded when a one-shot sequence of a Snapshot is
// iterated a second time.
var ErrSequenceConsumed = errors.New("snapshot: sequence already consumed")

// readBatch is the number of outputs copied out of the transaction per lock
// acquisition.
const readBatch = 1024

// Snapshot is a read-only view of the chain pinned at the tip that was current
// when it was taken. It holds a bbolt read transaction, so blocks appended or
// pruned afterwards are invisible to it.
//
// A bbolt transaction is not safe for concurrent use; Snapshot serializes its
// own reads, so Outputs and BlocksDescending may be consumed from different
// goroutines at the same time.
type Snapshot struct {
	mu      sync.Mutex
	tx      *bolt.Tx
	tip     consensus.BlockHeader
	tipHash [32]byte

	outputsTaken atomic.Bool
	blocksTaken  atomic.Bool
}

func (d *DB) Snapshot() (*Snapshot, error) {
	tx, err := d.db.Begin(false)
	if err != nil {
		return nil, consensus.StoreUnavailable(d.chainDir, fmt.Errorf("begin read tx: %w", err))
	}
	tipHash := tx.Bucket(bucketMeta).Get(metaTip)
	if tipHash == nil {
		_ = tx.Rollback()
		return nil, consensus.StoreUnavailable(d.chainDir, errors.New("chain has no blocks"))
	}
	tip, err := headerAt(tx, tipHash)
	if err != nil {
		_ = tx.Rollback()
		return nil, consensus.StoreUnavailable(d.chainDir, fmt.Errorf("tip: %w", err))
	}
	s := &Snapshot{tx: tx, tip: tip}
	copy(s.tipHash[:], tipHash)
	return s, nil
}

// Close releases the read transaction. It is safe to call more than once.
func (s *Snapshot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	return err
}

func (s *Snapshot) PinnedHeight() uint64 { return s.tip.Height }

func (s *Snapshot) Tip() consensus.BlockHeader { return s.tip }

func (s *Snapshot) TipHash() [32]byte { return s.tipHash }

func (s *Snapshot) view(fn func(tx *bolt.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return errors.New("snapshot: closed")
	}
	return fn(s.tx)
}

// OutputCount returns the number of unspent outputs at the pinned height.
func (s *Snapshot) OutputCount() (uint64, error) {
	var n int
	err := s.view(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketUtxo).Stats().KeyN
		return nil
	})
	return uint64(n), err // #nosec G115 -- KeyN is a count.
}

// Outputs yields every unspent output at the pinned height in key order.
// The sequence can be iterated once.
func (s *Snapshot) Outputs() iter.Seq2[consensus.Output, error] {
	return func(yield func(consensus.Output, error) bool) {
		if !s.outputsTaken.CompareAndSwap(false, true) {
			yield(consensus.Output{}, ErrSequenceConsumed)
			return
		}
		var after []byte
		buf := make([]consensus.Output, 0, readBatch)
		for {
			buf = buf[:0]
			err := s.view(func(tx *bolt.Tx) error {
				c := tx.Bucket(bucketUtxo).Cursor()
				var k, v []byte
				if after == nil {
					k, v = c.First()
				} else {
					k, v = c.Seek(after)
					if k != nil && bytes.Equal(k, after) {
						k, v = c.Next()
					}
				}
				for ; k != nil && len(buf) < readBatch; k, v = c.Next() {
					o, err := decodeOutput(k, v)
					if err != nil {
						return err
					}
					buf = append(buf, o)
				}
				return nil
			})
			if err != nil {
				yield(consensus.Output{}, err)
				return
			}
			for _, o := range buf {
				if !yield(o, nil) {
					return
				}
			}
			if len(buf) < readBatch {
				return
			}
			last := buf[len(buf)-1].Commitment
			after = last[:]
		}
	}
}

// BlocksDescending yields the blocks of the pinned chain from the tip down to
// genesis by following PrevHash. A missing header or body ends the sequence
// with an INCOMPLETE_HISTORY error naming the height that could not be read.
// The sequence can be iterated once.
func (s *Snapshot) BlocksDescending() iter.Seq2[consensus.Block, error] {
	return func(yield func(consensus.Block, error) bool) {
		if !s.blocksTaken.CompareAndSwap(false, true) {
			yield(consensus.Block{}, ErrSequenceConsumed)
			return
		}
		hash := s.tipHash
		expect := s.tip.Height
		for {
			var blk consensus.Block
			err := s.view(func(tx *bolt.Tx) error {
				hv := tx.Bucket(bucketHeaders).Get(hash[:])
				if hv == nil {
					return consensus.IncompleteHistory(expect, fmt.Sprintf("header %x missing", hash))
				}
				h, err := consensus.ParseBlockHeaderBytes(hv)
				if err != nil {
					return fmt.Errorf("header %x: %w", hash, err)
				}
				if h.Height != expect {
					return consensus.IncompleteHistory(expect, fmt.Sprintf("header %x has height %d", hash, h.Height))
				}
				bv := tx.Bucket(bucketBlocks).Get(hash[:])
				if bv == nil {
					return consensus.IncompleteHistory(expect, "block body pruned")
				}
				blk, err = decodeBlockBody(h, bv)
				return err
			})
			if err != nil {
				yield(consensus.Block{}, err)
				return
			}
			if !yield(blk, nil) {
				return
			}
			if blk.Header.Height == 0 {
				return
			}
			hash = blk.Header.PrevHash
			expect = blk.Header.Height - 1
		}
	}
}
