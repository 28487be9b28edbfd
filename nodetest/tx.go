package nodetest

import (
	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/crypto"
)

// Address returns the account address derived from the key in the tests.
func Address(k *crypto.PrivateKey) string {
	return HexKey(k)[:16] + "R"
}

// SendTx returns a signed transfer transaction from the sender.
func SendTx(sender *crypto.PrivateKey, amount uint64) *msignode.Transaction {
	tx := &msignode.Transaction{
		Type:            msignode.TxSend,
		Timestamp:       int64(amount),
		SenderID:        Address(sender),
		SenderPublicKey: sender.PublicKey(),
		RecipientID:     "1R",
		Amount:          amount,
		Fee:             10000000,
	}
	return sign(sender, tx)
}

// RequestedSendTx returns a transfer transaction from the multisignature
// sender account, submitted and signed by one of its members.
func RequestedSendTx(sender, requester *crypto.PrivateKey, amount uint64) *msignode.Transaction {
	tx := &msignode.Transaction{
		Type:               msignode.TxSend,
		Timestamp:          int64(amount),
		SenderID:           Address(sender),
		SenderPublicKey:    sender.PublicKey(),
		RequesterPublicKey: requester.PublicKey(),
		RecipientID:        "1R",
		Amount:             amount,
		Fee:                10000000,
	}
	return sign(requester, tx)
}

// RegistrationTx returns a signed multisignature registration of the sender.
// Every key is proposed for addition.
func RegistrationTx(sender *crypto.PrivateKey, min, lifetime uint32, members ...*crypto.PrivateKey) *msignode.Transaction {
	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = "+" + HexKey(m)
	}
	return RegistrationTxWithKeys(sender, min, lifetime, keys...)
}

// RegistrationTxWithKeys returns a signed multisignature registration with
// the given, already sigil prefixed, keys group.
func RegistrationTxWithKeys(sender *crypto.PrivateKey, min, lifetime uint32, keysgroup ...string) *msignode.Transaction {
	tx := &msignode.Transaction{
		Type:            msignode.TxMultisig,
		Timestamp:       int64(min)*1000 + int64(len(keysgroup)),
		SenderID:        Address(sender),
		SenderPublicKey: sender.PublicKey(),
		Fee:             500000000,
		Asset: msignode.Asset{
			Multisignature: &msignode.MultisigAsset{
				Min:       min,
				Lifetime:  lifetime,
				KeysGroup: keysgroup,
			},
		},
	}
	return sign(sender, tx)
}

func sign(k *crypto.PrivateKey, tx *msignode.Transaction) *msignode.Transaction {
	tx.Signature = k.Sign(tx)
	tx.ID = tx.ComputeID()
	return tx
}
