package accounts

import (
	"encoding/json"
	"io/ioutil"

	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/errors"
)

// Genesis is the content of a genesis accounts file.
type Genesis struct {
	Accounts []*msignode.Account `json:"accounts"`
}

// LoadGenesis reads a genesis file and returns a store holding its accounts.
func LoadGenesis(path string) (*MemStore, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read genesis")
	}
	return ParseGenesis(raw)
}

// ParseGenesis decodes a JSON serialized genesis.
func ParseGenesis(raw []byte) (*MemStore, error) {
	var g Genesis
	if err := json.Unmarshal(raw, &g); err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return nil, errors.Wrap(errors.ErrType, err.Error())
		}
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}

	store := NewMemStore()
	for i, a := range g.Accounts {
		if a == nil {
			return nil, errors.Wrapf(errors.ErrEmpty, "account %d", i)
		}
		if store.has(a.Address) {
			return nil, errors.Wrapf(errors.ErrDuplicate, "account %s", a.Address)
		}
		if err := store.Set(a); err != nil {
			return nil, errors.Wrapf(err, "account %d", i)
		}
	}
	return store, nil
}

func (s *MemStore) has(address string) bool {
	s.mu.RLock()
	_, ok := s.accounts[address]
	s.mu.RUnlock()
	return ok
}
