package consensus

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	SUPPLY_ERR_STORE_UNAVAILABLE  ErrorCode = "STORE_UNAVAILABLE"
	SUPPLY_ERR_INCOMPLETE_HISTORY ErrorCode = "INCOMPLETE_HISTORY"
	SUPPLY_ERR_INVALID_COMMITMENT ErrorCode = "INVALID_COMMITMENT"
	SUPPLY_ERR_INVALID_OFFSET     ErrorCode = "INVALID_OFFSET"
	SUPPLY_ERR_OFFSET_MISMATCH    ErrorCode = "OFFSET_MISMATCH"
)

// ErrEquationMismatch reports a completed audit whose equation does not hold.
// It is a finding, not an operational failure, and carries no ErrorCode.
var ErrEquationMismatch = errors.New("supply equation mismatch")

// SupplyError is an operational failure of an audit run. Height and Entity
// locate the offending data when known.
type SupplyError struct {
	Code   ErrorCode
	Height uint64
	Entity string
	Msg    string
	Err    error
}

func (e *SupplyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	out := string(e.Code)
	switch e.Code {
	case SUPPLY_ERR_INCOMPLETE_HISTORY:
		out = fmt.Sprintf("%s: height %d", out, e.Height)
	case SUPPLY_ERR_INVALID_COMMITMENT, SUPPLY_ERR_INVALID_OFFSET:
		if e.Entity != "" {
			out = fmt.Sprintf("%s: %s", out, e.Entity)
		}
	}
	if e.Msg != "" {
		out = fmt.Sprintf("%s: %s", out, e.Msg)
	}
	if e.Err != nil {
		out = fmt.Sprintf("%s: %v", out, e.Err)
	}
	return out
}

func (e *SupplyError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func StoreUnavailable(path string, err error) error {
	return &SupplyError{Code: SUPPLY_ERR_STORE_UNAVAILABLE, Entity: path, Msg: "chain data at " + path, Err: err}
}

// IncompleteHistory names the first height whose block data is missing.
func IncompleteHistory(height uint64, msg string) error {
	return &SupplyError{Code: SUPPLY_ERR_INCOMPLETE_HISTORY, Height: height, Msg: msg}
}

func InvalidCommitment(entity string, height uint64, err error) error {
	return &SupplyError{Code: SUPPLY_ERR_INVALID_COMMITMENT, Height: height, Entity: entity, Err: err}
}

func InvalidOffset(height uint64, err error) error {
	return &SupplyError{Code: SUPPLY_ERR_INVALID_OFFSET, Height: height, Entity: fmt.Sprintf("offset of block %d", height), Err: err}
}

func OffsetMismatch(height uint64, msg string) error {
	return &SupplyError{Code: SUPPLY_ERR_OFFSET_MISMATCH, Height: height, Msg: msg}
}

// CodeOf returns the ErrorCode carried anywhere in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var se *SupplyError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
