package consensus

import (
	"encoding/binary"
	"fmt"

	"mwc.dev/supplyverifier/commit"
)

// BLOCK_HEADER_BYTES is the length of the canonical header encoding:
// version u16le | height u64le | timestamp u64le | prev_hash 32 | total_kernel_offset 32
const BLOCK_HEADER_BYTES = 2 + 8 + 8 + 32 + 32

type OutputFeatures uint8

const (
	OutputPlain    OutputFeatures = 0
	OutputCoinbase OutputFeatures = 1
)

func (f OutputFeatures) String() string {
	switch f {
	case OutputPlain:
		return "plain"
	case OutputCoinbase:
		return "coinbase"
	default:
		return fmt.Sprintf("features(%d)", uint8(f))
	}
}

type KernelFeatures uint8

const (
	KernelPlain    KernelFeatures = 0
	KernelCoinbase KernelFeatures = 1
)

// Output is an entry of the unspent output set.
type Output struct {
	Commitment commit.Commitment
	Features   OutputFeatures
	Height     uint64
}

type Kernel struct {
	Features KernelFeatures
	Fee      uint64
	Excess   commit.Commitment
}

// BlockHeader carries the cumulative kernel offset of the chain up to and
// including its block.
type BlockHeader struct {
	Version           uint16
	Height            uint64
	Timestamp         uint64
	PrevHash          [32]byte
	TotalKernelOffset commit.Scalar
}

func (h BlockHeader) Hash() [32]byte {
	return headerHash(BlockHeaderBytes(h))
}

type Block struct {
	Header  BlockHeader
	Offset  commit.Scalar
	Kernels []Kernel
}

func BlockHeaderBytes(h BlockHeader) []byte {
	out := make([]byte, 0, BLOCK_HEADER_BYTES)
	var tmp2 [2]byte
	var tmp8 [8]byte

	binary.LittleEndian.PutUint16(tmp2[:], h.Version)
	out = append(out, tmp2[:]...)
	binary.LittleEndian.PutUint64(tmp8[:], h.Height)
	out = append(out, tmp8[:]...)
	binary.LittleEndian.PutUint64(tmp8[:], h.Timestamp)
	out = append(out, tmp8[:]...)
	out = append(out, h.PrevHash[:]...)
	out = append(out, h.TotalKernelOffset[:]...)
	return out
}

func ParseBlockHeaderBytes(b []byte) (BlockHeader, error) {
	if len(b) != BLOCK_HEADER_BYTES {
		return BlockHeader{}, fmt.Errorf("block-header-bytes: expected %d bytes, got %d", BLOCK_HEADER_BYTES, len(b))
	}
	var h BlockHeader
	h.Version = binary.LittleEndian.Uint16(b[0:2])
	h.Height = binary.LittleEndian.Uint64(b[2:10])
	h.Timestamp = binary.LittleEndian.Uint64(b[10:18])
	copy(h.PrevHash[:], b[18:50])
	copy(h.TotalKernelOffset[:], b[50:82])
	return h, nil
}
