package store

import (
	"encoding/binary"
	"fmt"

	"mwc.dev/supplyverifier/commit"
	"mwc.dev/supplyverifier/consensus"
)

// Persistence layouts. These are storage formats, not consensus wire formats.
//
//	utxo_by_commitment: commitment 33 -> features u8 | height u64le
//	blocks_by_hash:     hash 32 -> offset 32 | kernel_count u32le | kernel*
//	                    kernel = features u8 | fee u64le | excess 33
//	hash_by_height:     height u64be -> hash 32
const (
	outputValueBytes = 1 + 8
	kernelBytes      = 1 + 8 + commit.Size
)

func encodeOutputValue(o consensus.Output) []byte {
	out := make([]byte, outputValueBytes)
	out[0] = byte(o.Features)
	binary.LittleEndian.PutUint64(out[1:9], o.Height)
	return out
}

func decodeOutput(k, v []byte) (consensus.Output, error) {
	c, err := commit.CommitmentFromBytes(k)
	if err != nil {
		return consensus.Output{}, fmt.Errorf("utxo: key: %w", err)
	}
	if len(v) != outputValueBytes {
		return consensus.Output{}, fmt.Errorf("utxo %s: expected %d value bytes, got %d", c, outputValueBytes, len(v))
	}
	return consensus.Output{
		Commitment: c,
		Features:   consensus.OutputFeatures(v[0]),
		Height:     binary.LittleEndian.Uint64(v[1:9]),
	}, nil
}

func encodeBlockBody(b consensus.Block) ([]byte, error) {
	if uint64(len(b.Kernels)) > 0xffffffff {
		return nil, fmt.Errorf("block: too many kernels")
	}
	out := make([]byte, 0, commit.ScalarSize+4+len(b.Kernels)*kernelBytes)
	var tmp4 [4]byte
	var tmp8 [8]byte

	out = append(out, b.Offset[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(b.Kernels))) // #nosec G115 -- checked above.
	out = append(out, tmp4[:]...)
	for _, k := range b.Kernels {
		out = append(out, byte(k.Features))
		binary.LittleEndian.PutUint64(tmp8[:], k.Fee)
		out = append(out, tmp8[:]...)
		out = append(out, k.Excess[:]...)
	}
	return out, nil
}

func decodeBlockBody(h consensus.BlockHeader, b []byte) (consensus.Block, error) {
	if len(b) < commit.ScalarSize+4 {
		return consensus.Block{}, fmt.Errorf("block %d: truncated body", h.Height)
	}
	blk := consensus.Block{Header: h}
	copy(blk.Offset[:], b[:commit.ScalarSize])
	off := commit.ScalarSize
	n := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	if uint64(len(b)-off) != uint64(n)*kernelBytes {
		return consensus.Block{}, fmt.Errorf("block %d: bad kernel count %d for %d bytes", h.Height, n, len(b)-off)
	}
	blk.Kernels = make([]consensus.Kernel, n)
	for i := range blk.Kernels {
		k := &blk.Kernels[i]
		k.Features = consensus.KernelFeatures(b[off])
		k.Fee = binary.LittleEndian.Uint64(b[off+1 : off+9])
		copy(k.Excess[:], b[off+9:off+kernelBytes])
		off += kernelBytes
	}
	return blk, nil
}

func heightKey(h uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], h)
	return k[:]
}
