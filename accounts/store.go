/*
Package accounts provides an in-memory account store.

The store is a reference implementation of msignode.AccountStore. In a full
node the account state is owned by the ledger and the pool manager applies the
unconfirmed changes; here accounts are loaded from a genesis file and updated
with Set.
*/
package accounts

import (
	"context"
	"sort"
	"sync"

	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/errors"
)

// MemStore keeps accounts in memory. It is safe for concurrent use.
type MemStore struct {
	mu       sync.RWMutex
	accounts map[string]*msignode.Account
}

var _ msignode.AccountStore = (*MemStore)(nil)

// NewMemStore returns a store holding the given accounts.
func NewMemStore(accounts ...*msignode.Account) *MemStore {
	s := &MemStore{accounts: make(map[string]*msignode.Account, len(accounts))}
	for _, a := range accounts {
		s.accounts[a.Address] = a
	}
	return s
}

// Set inserts or replaces the account.
func (s *MemStore) Set(a *msignode.Account) error {
	if err := Validate(a); err != nil {
		return err
	}
	s.mu.Lock()
	s.accounts[a.Address] = a
	s.mu.Unlock()
	return nil
}

// UnconfirmedAccount implements msignode.AccountStore.
func (s *MemStore) UnconfirmedAccount(ctx context.Context, address string) (*msignode.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[address]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "account %s", address)
	}
	return a, nil
}

// Addresses returns the addresses of all accounts, sorted.
func (s *MemStore) Addresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]string, 0, len(s.accounts))
	for addr := range s.accounts {
		res = append(res, addr)
	}
	sort.Strings(res)
	return res
}

// Validate checks that the account is well formed.
func Validate(a *msignode.Account) error {
	var errs error
	if a.Address == "" {
		errs = errors.AppendField(errs, "Address", errors.ErrEmpty)
	}
	if n := len(a.PublicKey); n != 0 && n != 32 {
		errs = errors.AppendField(errs, "PublicKey", errors.Wrapf(errors.ErrInput, "%d bytes", n))
	}
	errs = errors.AppendField(errs, "Multisig", validateConfig(a.Multisig))
	errs = errors.AppendField(errs, "UnconfirmedMultisig", validateConfig(a.UnconfirmedMultisig))
	return errs
}

func validateConfig(c msignode.MultisigConfig) error {
	if !c.IsMultisig() {
		if len(c.Members) != 0 {
			return errors.Wrap(errors.ErrState, "members without lifetime")
		}
		return nil
	}
	if c.MinSignatures == 0 {
		return errors.Wrap(errors.ErrInput, "min signatures must be positive")
	}
	if int(c.MinSignatures) > len(c.Members) {
		return errors.Wrapf(errors.ErrInput, "min signatures %d exceeds %d members", c.MinSignatures, len(c.Members))
	}
	seen := make(map[string]struct{}, len(c.Members))
	for _, m := range c.Members {
		if _, ok := seen[m]; ok {
			return errors.Wrapf(errors.ErrDuplicate, "member %s", m)
		}
		seen[m] = struct{}{}
	}
	return nil
}
