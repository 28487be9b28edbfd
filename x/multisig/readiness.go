package multisig

import (
	"context"

	"github.com/iov-one/msignode"
)

// CandidateKeys returns the hex encoded member keys proposed by a
// registration transaction, stripped from their sigil. Any other transaction
// proposes no keys.
func CandidateKeys(tx *msignode.Transaction) []string {
	if !tx.IsMultisigRegistration() {
		return nil
	}
	group := tx.Asset.Multisignature.KeysGroup
	keys := make([]string, 0, len(group))
	for _, k := range group {
		keys = append(keys, stripSigil(k))
	}
	return keys
}

func stripSigil(key string) string {
	if len(key) > 0 && (key[0] == '+' || key[0] == '-') {
		return key[1:]
	}
	return key
}

// IsReady returns true if the transaction carries enough signatures to be
// considered for inclusion. conf is the unconfirmed configuration of the
// sender.
func IsReady(tx *msignode.Transaction, conf msignode.MultisigConfig) bool {
	txKeys := CandidateKeys(tx)
	var accountKeys []string
	if conf.IsMultisig() {
		accountKeys = conf.Members
	}
	given := len(tx.Signatures)

	if conf.IsMultisig() {
		common := intersection(txKeys, accountKeys)
		required := len(txKeys) + int(conf.MinSignatures) - common
		return given >= required
	}
	return given == len(txKeys)
}

// intersection returns the number of distinct keys present in both lists.
func intersection(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inB := make(map[string]struct{}, len(b))
	for _, k := range b {
		inB[k] = struct{}{}
	}
	seen := make(map[string]struct{}, len(a))
	for _, k := range a {
		if _, ok := inB[k]; !ok {
			continue
		}
		seen[k] = struct{}{}
	}
	return len(seen)
}

// ReadinessFilter can observe and override the readiness verdict of a
// transaction. It is called synchronously, from within the admission of a
// signature.
type ReadinessFilter interface {
	FilterReady(ctx context.Context, ready bool, tx *msignode.Transaction, sender *msignode.Account) bool
}

// ReadinessFilterFunc adapts a function to the ReadinessFilter interface.
type ReadinessFilterFunc func(ctx context.Context, ready bool, tx *msignode.Transaction, sender *msignode.Account) bool

// FilterReady implements ReadinessFilter.
func (fn ReadinessFilterFunc) FilterReady(ctx context.Context, ready bool, tx *msignode.Transaction, sender *msignode.Account) bool {
	return fn(ctx, ready, tx, sender)
}

// ReadinessFilters is an ordered list of filters. Each filter receives the
// verdict of the previous one.
type ReadinessFilters []ReadinessFilter

// Apply runs all filters in registration order and returns the final verdict.
func (fs ReadinessFilters) Apply(ctx context.Context, ready bool, tx *msignode.Transaction, sender *msignode.Account) bool {
	for _, f := range fs {
		ready = f.FilterReady(ctx, ready, tx, sender)
	}
	return ready
}
