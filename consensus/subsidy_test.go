package consensus

import (
	"testing"

	"pgregory.net/rapid"
)

func TestSchedule_MainnetTotals(t *testing.T) {
	s := Mainnet.Schedule
	cases := []struct {
		height uint64
		want   uint64
	}{
		{0, 10_000_000_041_800_000},
		{1, 10_000_000_041_800_000 + 2_380_952_380},
		{2_100_000, 15_000_000_039_800_000},
		{2_100_001, 15_000_001_230_276_190},
	}
	for _, tc := range cases {
		got, err := s.TotalReward(tc.height)
		if err != nil {
			t.Fatalf("TotalReward(%d): %v", tc.height, err)
		}
		if got != tc.want {
			t.Fatalf("TotalReward(%d)=%d, want %d", tc.height, got, tc.want)
		}
	}
}

func TestSchedule_MainnetSupplyCap(t *testing.T) {
	s := Mainnet.Schedule
	got, err := s.TotalReward(s.HalvingInterval * 100)
	if err != nil {
		t.Fatalf("TotalReward: %v", err)
	}
	if want := 20_000_000 * MWC_BASE; got != want {
		t.Fatalf("supply cap=%d, want %d", got, want)
	}
	if r := s.BlockReward(s.HalvingInterval*40 + 1); r != 0 {
		t.Fatalf("reward after emission ended=%d, want 0", r)
	}
}

func TestSchedule_DevnetBlockwise(t *testing.T) {
	s := Devnet.Schedule
	want := map[uint64]uint64{
		0: 100_000_000_000,
		1: 160_000_000_000,
		2: 220_000_000_000,
		3: 280_000_000_000,
		5: 370_000_000_000,
		9: 475_000_000_000,
	}
	for h, w := range want {
		got, err := s.TotalRewardBlockwise(h)
		if err != nil {
			t.Fatalf("TotalRewardBlockwise(%d): %v", h, err)
		}
		if got != w {
			t.Fatalf("TotalRewardBlockwise(%d)=%d, want %d", h, got, w)
		}
	}
}

func TestSchedule_Overflow(t *testing.T) {
	s := Schedule{GenesisReward: ^uint64(0), InitialReward: 1, HalvingInterval: 10}
	if _, err := s.TotalReward(1); err == nil {
		t.Fatalf("expected overflow error")
	}
	if _, err := s.TotalRewardBlockwise(1); err == nil {
		t.Fatalf("expected overflow error")
	}
	if _, err := (Schedule{}).TotalReward(1); err == nil {
		t.Fatalf("expected zero interval error")
	}
}

func TestSchedule_ClosedFormMatchesBlockwise(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := Schedule{
			GenesisReward:   rapid.Uint64Range(0, 1<<40).Draw(t, "genesis"),
			InitialReward:   rapid.Uint64Range(0, 1<<40).Draw(t, "initial"),
			HalvingInterval: rapid.Uint64Range(1, 50).Draw(t, "interval"),
		}
		h := rapid.Uint64Range(0, 3000).Draw(t, "height")

		closed, err := s.TotalReward(h)
		if err != nil {
			t.Fatalf("TotalReward: %v", err)
		}
		blockwise, err := s.TotalRewardBlockwise(h)
		if err != nil {
			t.Fatalf("TotalRewardBlockwise: %v", err)
		}
		if closed != blockwise {
			t.Fatalf("closed form %d != blockwise %d at height %d", closed, blockwise, h)
		}

		next, err := s.TotalReward(h + 1)
		if err != nil {
			t.Fatalf("TotalReward(h+1): %v", err)
		}
		if next < closed {
			t.Fatalf("total decreased from %d to %d at height %d", closed, next, h+1)
		}
	})
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(10_000_000_041_800_000); got != "10000000.041800000" {
		t.Fatalf("got %q", got)
	}
	if got := FormatAmount(5); got != "0.000000005" {
		t.Fatalf("got %q", got)
	}
}

func TestParamsByName(t *testing.T) {
	p, err := ParamsByName(" MainNet ")
	if err != nil {
		t.Fatalf("ParamsByName: %v", err)
	}
	if p.Name != "mainnet" {
		t.Fatalf("got %q", p.Name)
	}
	if _, err := ParamsByName("floonet"); err == nil {
		t.Fatalf("expected unknown network error")
	}
}
