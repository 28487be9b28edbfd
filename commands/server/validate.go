package server

import (
	"github.com/iov-one/msignode/accounts"
	"github.com/iov-one/msignode/errors"
)

// ValidateGenesis checks that every given accounts genesis file can be
// loaded.
func ValidateGenesis(genesisPaths []string) error {
	if len(genesisPaths) == 0 {
		return errors.Wrap(errors.ErrInput, "usage: validate <genesis file>...")
	}
	for _, path := range genesisPaths {
		if _, err := accounts.LoadGenesis(path); err != nil {
			return errors.Wrap(err, path)
		}
	}
	return nil
}
