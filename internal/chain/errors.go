package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ReadError wraps a failed contract read with the contract and method
// that produced it. The underlying transport or revert message is kept
// as the cause; reads are never retried here, the caller decides.
type ReadError struct {
	Contract common.Address
	Method   string
	Cause    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("chain read %s.%s: %v", e.Contract.Hex(), e.Method, e.Cause)
}

func (e *ReadError) Unwrap() error {
	return e.Cause
}
