package consensus

import (
	"fmt"
	"sort"
	"strings"
)

// MWC_BASE is the number of base units (nano-MWC) in one MWC.
const MWC_BASE uint64 = 1_000_000_000

// Params bundles the per-network constants the verifier depends on.
type Params struct {
	Name             string
	Schedule         Schedule
	UnitName         string
	DefaultChainPath string
}

var Mainnet = Params{
	Name: "mainnet",
	Schedule: Schedule{
		GenesisReward:   10_000_000_041_800_000,
		InitialReward:   2_380_952_380,
		HalvingInterval: 2_100_000,
	},
	UnitName:         "MWC",
	DefaultChainPath: "~/.mwc/main/chain_data",
}

// Devnet is a synthetic network with a fast halving cadence, used by
// gen-devchain and the tests.
var Devnet = Params{
	Name: "devnet",
	Schedule: Schedule{
		GenesisReward:   100 * MWC_BASE,
		InitialReward:   60 * MWC_BASE,
		HalvingInterval: 4,
	},
	UnitName:         "MWC",
	DefaultChainPath: "~/.mwc/dev/chain_data",
}

var networks = map[string]Params{
	Mainnet.Name: Mainnet,
	Devnet.Name:  Devnet,
}

func ParamsByName(name string) (Params, error) {
	p, ok := networks[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Params{}, fmt.Errorf("unknown network %q (known: %s)", name, strings.Join(NetworkNames(), ", "))
	}
	return p, nil
}

func NetworkNames() []string {
	out := make([]string, 0, len(networks))
	for name := range networks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FormatAmount renders base units as a decimal MWC amount with all nine
// fractional digits.
func FormatAmount(units uint64) string {
	return fmt.Sprintf("%d.%09d", units/MWC_BASE, units%MWC_BASE)
}
