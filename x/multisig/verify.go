package multisig

import (
	"encoding/hex"

	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/errors"
)

// VerifyRegistrationSignature checks a co-signature of a registration
// transaction. Any proposed key and, if the sender already is a
// multisignature account, any current member key may produce it.
func VerifyRegistrationSignature(v msignode.Verifier, tx *msignode.Transaction, sig []byte, sender *msignode.Account) error {
	if tx.Asset.Multisignature.Signatures != nil {
		return errors.Wrap(errors.ErrPermissionDenied, "registration already finalized")
	}
	if tx.HasSignature(sig) {
		return errors.Wrap(errors.ErrPermissionDenied, "signature already present")
	}

	keys := CandidateKeys(tx)
	if conf := sender.UnconfirmedMultisig; conf.IsMultisig() {
		keys = append(keys, conf.Members...)
	}
	if !verifyAny(v, tx, keys, sig) {
		return errors.Wrapf(errors.ErrSignatureVerification, "none of %d keys", len(keys))
	}
	return nil
}

// VerifyMemberSignature checks a co-signature of a transaction sent from a
// multisignature account. A member key must produce it. A transaction
// submitted by a requester may also be co-signed by the account key itself.
func VerifyMemberSignature(v msignode.Verifier, tx *msignode.Transaction, sig []byte, sender *msignode.Account) error {
	members := sender.UnconfirmedMultisig.Members
	if len(tx.RequesterPublicKey) != 0 {
		// Copy, the member list of the account must stay untouched.
		members = append(append([]string(nil), members...), hex.EncodeToString(tx.SenderPublicKey))
	}

	if tx.HasSignature(sig) {
		return errors.Wrap(errors.ErrDuplicateSignature, "signature already present")
	}
	if !verifyAny(v, tx, members, sig) {
		return errors.Wrapf(errors.ErrSignatureVerification, "none of %d members", len(members))
	}
	return nil
}

// verifyAny returns true as soon as one of the hex encoded keys verifies the
// signature. Keys are tried in order.
func verifyAny(v msignode.Verifier, tx *msignode.Transaction, keys []string, sig []byte) bool {
	for _, k := range keys {
		raw, err := hex.DecodeString(k)
		if err != nil {
			continue
		}
		if v.Verify(tx, raw, sig) {
			return true
		}
	}
	return false
}
