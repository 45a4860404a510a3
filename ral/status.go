// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package ral

import (
	"errors"
	"fmt"

	"github.com/ezrec/apbral/translate"
)

// Status is the outcome of a single read or write.
type Status struct {
	Success  bool   // Set if the transaction completed.
	Err      error  // Reason for failure, nil on success.
	Value    uint64 // Value read or written. Zero on a failed read.
	Register string // Resolved register name, if resolution succeeded.
	Address  uint64 // Bus address of the transaction, if one was issued.
}

// Kind returns the error kind of a failed status, or nil on success.
func (st Status) Kind() error {
	for _, kind := range []error{
		ErrDuplicateName,
		ErrDuplicateAddress,
		ErrNameNotFound,
		ErrAddressNotFound,
		ErrInvalidIdentifier,
		ErrFieldNotFound,
		ErrValueOutOfRange,
		ErrNotConnected,
		ErrDriver,
	} {
		if errors.Is(st.Err, kind) {
			return kind
		}
	}

	return st.Err
}

// String returns a one line description of the status.
func (st Status) String() string {
	if st.Success {
		return fmt.Sprintf("%v@%v=%v ok", st.Register, translate.Hex(st.Address), translate.Hex(st.Value))
	}
	return fmt.Sprintf("%v failed: %v", st.Register, st.Err)
}

func failed(err error) Status {
	return Status{Err: err}
}
