package nodetest

import (
	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/crypto"
)

// PlainAccount returns an account without a multisignature configuration.
func PlainAccount(k *crypto.PrivateKey) *msignode.Account {
	return &msignode.Account{
		Address:   Address(k),
		PublicKey: k.PublicKey(),
	}
}

// MultisigAccount returns an account whose confirmed and unconfirmed
// configurations require min signatures of the given members.
func MultisigAccount(k *crypto.PrivateKey, min uint32, members ...*crypto.PrivateKey) *msignode.Account {
	conf := msignode.MultisigConfig{
		Members:       HexKeys(members...),
		MinSignatures: min,
		Lifetime:      24,
	}
	acc := PlainAccount(k)
	acc.Multisig = conf
	acc.UnconfirmedMultisig = conf
	return acc
}
