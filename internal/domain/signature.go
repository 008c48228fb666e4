package domain

import "github.com/ethereum/go-ethereum/common"

// Signature is a pre-issued whitelist-activation authorization tied to a
// (vault, user) pair. Immutable once found; consumed exactly once by the
// activation transaction.
type Signature struct {
	Vault common.Address
	User  common.Address

	V uint8
	R [32]byte
	S [32]byte
}
