package store

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/multierr"

	"mwc.dev/supplyverifier/commit"
	"mwc.dev/supplyverifier/consensus"
)

var (
	bucketHeaders = []byte("headers_by_hash")
	bucketBlocks  = []byte("blocks_by_hash")
	bucketHeights = []byte("hash_by_height")
	bucketUtxo    = []byte("utxo_by_commitment")
	bucketMeta    = []byte("meta")

	allBuckets = [][]byte{bucketHeaders, bucketBlocks, bucketHeights, bucketUtxo, bucketMeta}

	metaTip = []byte("tip")
)

const defaultTimeout = 1 * time.Second

// initialMmapSize keeps writers from remapping while a long read transaction
// (a verifier snapshot) is open.
const initialMmapSize = 1 << 28

type Options struct {
	ReadOnly bool
	// Timeout bounds the wait for the file lock; zero selects one second.
	Timeout time.Duration
}

type DB struct {
	chainDir string
	db       *bolt.DB
	manifest *Manifest
	readOnly bool
}

// Create initializes a new chain directory. It fails if the directory already
// holds a manifest.
func Create(chainDir string, m Manifest) (*DB, error) {
	if chainDir == "" {
		return nil, fmt.Errorf("chain path required")
	}
	if err := ensureDir(chainDir); err != nil {
		return nil, err
	}
	if _, err := os.Stat(manifestPath(chainDir)); err == nil {
		return nil, fmt.Errorf("chain at %s already initialized", chainDir)
	}
	if m.SchemaVersion == 0 {
		m.SchemaVersion = SchemaVersionV1
	}

	bdb, err := bolt.Open(DBPath(chainDir), 0o600, &bolt.Options{
		Timeout:         defaultTimeout,
		InitialMmapSize: initialMmapSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}
	d := &DB{chainDir: chainDir, db: bdb}
	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		return nil, multierr.Append(err, bdb.Close())
	}
	if err := d.SetManifest(&m); err != nil {
		return nil, multierr.Append(err, bdb.Close())
	}
	return d, nil
}

// Open opens an existing chain directory. Every failure to reach usable chain
// data is reported as a STORE_UNAVAILABLE SupplyError. Read-only opens never
// create or modify files.
func Open(chainDir string, opts Options) (*DB, error) {
	if chainDir == "" {
		return nil, consensus.StoreUnavailable(chainDir, errors.New("chain path required"))
	}
	if _, err := os.Stat(DBPath(chainDir)); err != nil {
		return nil, consensus.StoreUnavailable(chainDir, err)
	}
	m, err := readManifest(chainDir)
	if err != nil {
		return nil, consensus.StoreUnavailable(chainDir, fmt.Errorf("read manifest: %w", err))
	}
	if m.SchemaVersion > SchemaVersionV1 {
		return nil, consensus.StoreUnavailable(chainDir, fmt.Errorf("manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	bo := &bolt.Options{Timeout: timeout, ReadOnly: opts.ReadOnly}
	if !opts.ReadOnly {
		bo.InitialMmapSize = initialMmapSize
	}
	bdb, err := bolt.Open(DBPath(chainDir), 0o600, bo)
	if err != nil {
		return nil, consensus.StoreUnavailable(chainDir, fmt.Errorf("open bbolt: %w", err))
	}

	if err := bdb.View(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if tx.Bucket(b) == nil {
				return fmt.Errorf("missing bucket %s", string(b))
			}
		}
		return nil
	}); err != nil {
		return nil, consensus.StoreUnavailable(chainDir, multierr.Append(err, bdb.Close()))
	}
	return &DB{chainDir: chainDir, db: bdb, manifest: m, readOnly: opts.ReadOnly}, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) ChainDir() string { return d.chainDir }

func (d *DB) Manifest() *Manifest {
	if d == nil {
		return nil
	}
	return d.manifest
}

func (d *DB) SetManifest(m *Manifest) error {
	if d == nil {
		return fmt.Errorf("db: nil")
	}
	if d.readOnly {
		return fmt.Errorf("db: read-only")
	}
	if err := writeManifestAtomic(d.chainDir, m); err != nil {
		return err
	}
	d.manifest = m
	return nil
}

// AppendBlock stores b as the new tip and applies its effect on the unspent
// output set in the same transaction: spent commitments are removed and
// created outputs inserted. The block must extend the current tip by exactly
// one height, or be a genesis block on an empty store.
func (d *DB) AppendBlock(b consensus.Block, created []consensus.Output, spent []commit.Commitment) ([32]byte, error) {
	hash := b.Header.Hash()
	body, err := encodeBlockBody(b)
	if err != nil {
		return hash, err
	}
	for _, o := range created {
		if o.Height != b.Header.Height {
			return hash, fmt.Errorf("append: output %s created at height %d in block %d", o.Commitment, o.Height, b.Header.Height)
		}
	}

	err = d.db.Update(func(tx *bolt.Tx) error {
		if err := checkLinkage(tx, b.Header); err != nil {
			return err
		}
		if err := tx.Bucket(bucketHeaders).Put(hash[:], consensus.BlockHeaderBytes(b.Header)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBlocks).Put(hash[:], body); err != nil {
			return err
		}
		if err := tx.Bucket(bucketHeights).Put(heightKey(b.Header.Height), hash[:]); err != nil {
			return err
		}

		bu := tx.Bucket(bucketUtxo)
		for _, c := range spent {
			if bu.Get(c[:]) == nil {
				return fmt.Errorf("append: spent output %s not in utxo set", c)
			}
			if err := bu.Delete(c[:]); err != nil {
				return err
			}
		}
		for _, o := range created {
			if bu.Get(o.Commitment[:]) != nil {
				return fmt.Errorf("append: duplicate output %s", o.Commitment)
			}
			if err := bu.Put(o.Commitment[:], encodeOutputValue(o)); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketMeta).Put(metaTip, hash[:])
	})
	if err != nil {
		return hash, err
	}

	if b.Header.Height == 0 && d.manifest != nil {
		m := *d.manifest
		m.GenesisHashHex = hex.EncodeToString(hash[:])
		if err := d.SetManifest(&m); err != nil {
			return hash, err
		}
	}
	return hash, nil
}

func checkLinkage(tx *bolt.Tx, h consensus.BlockHeader) error {
	tipHash := tx.Bucket(bucketMeta).Get(metaTip)
	if tipHash == nil {
		if h.Height != 0 || h.PrevHash != ([32]byte{}) {
			return fmt.Errorf("append: empty store requires a genesis block, got height %d", h.Height)
		}
		return nil
	}
	tip, err := headerAt(tx, tipHash)
	if err != nil {
		return err
	}
	if h.Height != tip.Height+1 {
		return fmt.Errorf("append: height %d does not extend tip %d", h.Height, tip.Height)
	}
	if !bytes.Equal(h.PrevHash[:], tipHash) {
		return fmt.Errorf("append: prev_hash %x is not tip %x", h.PrevHash, tipHash)
	}
	return nil
}

func headerAt(tx *bolt.Tx, hash []byte) (consensus.BlockHeader, error) {
	v := tx.Bucket(bucketHeaders).Get(hash)
	if v == nil {
		return consensus.BlockHeader{}, fmt.Errorf("header %x not found", hash)
	}
	return consensus.ParseBlockHeaderBytes(v)
}

// Tip returns the header of the current tip; ok is false on an empty store.
func (d *DB) Tip() (consensus.BlockHeader, bool, error) {
	var out consensus.BlockHeader
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		tipHash := tx.Bucket(bucketMeta).Get(metaTip)
		if tipHash == nil {
			return nil
		}
		h, err := headerAt(tx, tipHash)
		if err != nil {
			return err
		}
		out, ok = h, true
		return nil
	})
	return out, ok, err
}

func (d *DB) GetHeader(hash [32]byte) (consensus.BlockHeader, bool, error) {
	var out consensus.BlockHeader
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHeaders).Get(hash[:])
		if v == nil {
			return nil
		}
		h, err := consensus.ParseBlockHeaderBytes(v)
		if err != nil {
			return err
		}
		out, ok = h, true
		return nil
	})
	return out, ok, err
}

// GetBlock returns the full block; ok is false when either the header or the
// body is absent (unknown or pruned).
func (d *DB) GetBlock(hash [32]byte) (consensus.Block, bool, error) {
	var out consensus.Block
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		hv := tx.Bucket(bucketHeaders).Get(hash[:])
		bv := tx.Bucket(bucketBlocks).Get(hash[:])
		if hv == nil || bv == nil {
			return nil
		}
		h, err := consensus.ParseBlockHeaderBytes(hv)
		if err != nil {
			return err
		}
		b, err := decodeBlockBody(h, bv)
		if err != nil {
			return err
		}
		out, ok = b, true
		return nil
	})
	return out, ok, err
}

func (d *DB) HashAtHeight(height uint64) ([32]byte, bool, error) {
	var out [32]byte
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHeights).Get(heightKey(height))
		if v == nil {
			return nil
		}
		if len(v) != 32 {
			return fmt.Errorf("hash_by_height %d: expected 32 bytes, got %d", height, len(v))
		}
		copy(out[:], v)
		ok = true
		return nil
	})
	return out, ok, err
}

// PruneBelow drops the bodies of blocks below height, keeping their headers,
// the way a non-archival node compacts old history. It returns the number of
// bodies removed.
func (d *DB) PruneBelow(height uint64) (int, error) {
	pruned := 0
	err := d.db.Update(func(tx *bolt.Tx) error {
		bh := tx.Bucket(bucketHeights)
		bb := tx.Bucket(bucketBlocks)
		c := bh.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if bytes.Compare(k, heightKey(height)) >= 0 {
				break
			}
			hash := append([]byte(nil), v...)
			if bb.Get(hash) == nil {
				continue
			}
			if err := bb.Delete(hash); err != nil {
				return err
			}
			pruned++
		}
		return nil
	})
	return pruned, err
}

// ReplaceOutput rewrites the commitment of an unspent output in place,
// keeping its features and height. It exists for fault injection.
func (d *DB) ReplaceOutput(old, updated commit.Commitment) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		bu := tx.Bucket(bucketUtxo)
		v := bu.Get(old[:])
		if v == nil {
			return fmt.Errorf("replace: output %s not in utxo set", old)
		}
		if bu.Get(updated[:]) != nil {
			return fmt.Errorf("replace: output %s already exists", updated)
		}
		val := append([]byte(nil), v...)
		if err := bu.Delete(old[:]); err != nil {
			return err
		}
		return bu.Put(updated[:], val)
	})
}
