package msignode

import (
	"context"
	"sort"
)

// MultisigConfig is the multisignature configuration of an account.
type MultisigConfig struct {
	// Members are hex encoded public keys, in the order they were added.
	Members       []string `json:"members"`
	MinSignatures uint32   `json:"min"`
	// Lifetime is the number of blocks a pending transaction can wait for
	// its signatures.
	Lifetime uint32 `json:"lifetime"`
}

// IsMultisig returns true if the account requires multiple signatures.
func (c MultisigConfig) IsMultisig() bool {
	return c.Lifetime > 0
}

// Equal compares two configurations. Members order is not significant.
func (c MultisigConfig) Equal(o MultisigConfig) bool {
	if c.MinSignatures != o.MinSignatures || c.Lifetime != o.Lifetime {
		return false
	}
	if len(c.Members) != len(o.Members) {
		return false
	}
	a := append([]string(nil), c.Members...)
	b := append([]string(nil), o.Members...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Account is the state of a ledger account relevant for signature
// admission. Two versions of the multisignature configuration exist at any
// time: the confirmed one and the unconfirmed one, which includes changes
// applied by transactions that are in the pool but not yet in a block.
type Account struct {
	Address             string         `json:"address"`
	PublicKey           HexBytes       `json:"publicKey"`
	Multisig            MultisigConfig `json:"multisig"`
	UnconfirmedMultisig MultisigConfig `json:"u_multisig"`
}

// AccountStore provides read access to the account state.
type AccountStore interface {
	// UnconfirmedAccount returns the account with the given address. The
	// UnconfirmedMultisig configuration must reflect every change applied
	// by the pool. An error wrapping errors.ErrNotFound is returned if the
	// account does not exist.
	UnconfirmedAccount(ctx context.Context, address string) (*Account, error)
}

// Verifier checks a signature of a transaction against a public key.
// Implementations must be safe for concurrent use.
type Verifier interface {
	Verify(tx *Transaction, publicKey []byte, signature []byte) bool
}

// SignatureTask is a single co-signature traveling between peers.
type SignatureTask struct {
	TransactionID string
	Signature     HexBytes
	// Relays counts how many times this signature was already relayed.
	Relays int
}
