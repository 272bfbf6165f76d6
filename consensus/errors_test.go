package consensus

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestSupplyError_ErrorFormatting(t *testing.T) {
	var e *SupplyError
	if got := e.Error(); got != "<nil>" {
		t.Fatalf("nil receiver: %q", got)
	}

	cases := []struct {
		err  error
		want string
	}{
		{IncompleteHistory(41, "block body pruned"), "INCOMPLETE_HISTORY: height 41: block body pruned"},
		{InvalidCommitment("output 08ab", 3, errors.New("not on curve")), "INVALID_COMMITMENT: output 08ab: not on curve"},
		{InvalidOffset(7, errors.New("overflow")), "INVALID_OFFSET: offset of block 7: overflow"},
		{OffsetMismatch(9, "differs"), "OFFSET_MISMATCH: differs"},
		{StoreUnavailable("/x", fs.ErrNotExist), "STORE_UNAVAILABLE: chain data at /x: file does not exist"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("got %q, want %q", got, tc.want)
		}
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", InvalidOffset(2, errors.New("bad")))
	if got := CodeOf(wrapped); got != SUPPLY_ERR_INVALID_OFFSET {
		t.Fatalf("CodeOf(wrapped)=%q", got)
	}
	if got := CodeOf(ErrEquationMismatch); got != "" {
		t.Fatalf("CodeOf(mismatch)=%q, want empty", got)
	}
	if !errors.Is(StoreUnavailable("/x", fs.ErrNotExist), fs.ErrNotExist) {
		t.Fatalf("StoreUnavailable does not unwrap its cause")
	}
}
