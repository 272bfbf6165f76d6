package consensus

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Schedule is a halving emission curve. The genesis block is granted
// GenesisReward. Blocks 1..HalvingInterval are granted InitialReward and the
// reward halves (integer shift) after every further HalvingInterval blocks,
// reaching zero once the shift empties it.
//
// All amounts are in base units; nothing here is ever a float.
type Schedule struct {
	GenesisReward   uint64
	InitialReward   uint64
	HalvingInterval uint64
}

func (s Schedule) Validate() error {
	if s.HalvingInterval == 0 {
		return errors.New("subsidy: halving interval must be > 0")
	}
	return nil
}

func (s Schedule) epochReward(epoch uint64) uint64 {
	if epoch >= 64 {
		return 0
	}
	return s.InitialReward >> epoch
}

// BlockReward returns the reward granted to the block at height.
func (s Schedule) BlockReward(height uint64) uint64 {
	if height == 0 {
		return s.GenesisReward
	}
	return s.epochReward((height - 1) / s.HalvingInterval)
}

// TotalReward returns the cumulative issuance of heights 0..height inclusive,
// summed in closed form one epoch at a time.
func (s Schedule) TotalReward(height uint64) (uint64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	total := uint256.NewInt(s.GenesisReward)
	remaining := height // blocks after genesis still to account for
	for epoch := uint64(0); remaining > 0; epoch++ {
		reward := s.epochReward(epoch)
		if reward == 0 {
			break
		}
		n := min(remaining, s.HalvingInterval)
		var part uint256.Int
		part.Mul(uint256.NewInt(n), uint256.NewInt(reward))
		total.Add(total, &part)
		remaining -= n
	}
	if !total.IsUint64() {
		return 0, fmt.Errorf("subsidy: total reward at height %d overflows u64", height)
	}
	return total.Uint64(), nil
}

// TotalRewardBlockwise sums BlockReward over heights 0..height one block at a
// time. It must always agree with TotalReward.
func (s Schedule) TotalRewardBlockwise(height uint64) (uint64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	var total uint256.Int
	for h := uint64(0); ; h++ {
		total.Add(&total, uint256.NewInt(s.BlockReward(h)))
		if h == height {
			break
		}
	}
	if !total.IsUint64() {
		return 0, fmt.Errorf("subsidy: total reward at height %d overflows u64", height)
	}
	return total.Uint64(), nil
}
