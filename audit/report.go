package audit

import (
	"fmt"
	"io"

	"mwc.dev/supplyverifier/consensus"
)

// WriteReport renders r as the verifier's human-readable report.
func WriteReport(w io.Writer, r *Report, p consensus.Params) error {
	result := "supply is valid"
	if !r.Verification.Balanced {
		result = "supply is INVALID"
	}
	_, err := fmt.Fprintf(w, `MWC Supply Verifier
===================
Pinned tip height: %d
Collected %d UTXOs at height %d
Collected %d kernel excesses
Total reward at height %d: %s %s
LHS (ΣUTXO):          %s
RHS (Σkern+off+rew):  %s
RESULT: %s
`,
		r.PinnedHeight,
		r.Outputs, r.PinnedHeight,
		r.Kernels,
		r.PinnedHeight, consensus.FormatAmount(r.Reward), p.UnitName,
		r.Verification.LHS,
		r.Verification.RHS,
		result,
	)
	return err
}
