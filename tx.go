package msignode

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"strconv"
)

// TxType identifies the kind of a transaction.
type TxType uint8

const (
	TxSend            TxType = 0
	TxSecondSignature TxType = 1
	TxDelegate        TxType = 2
	TxVote            TxType = 3
	// TxMultisig registers or changes the multisignature configuration of
	// the sender account.
	TxMultisig TxType = 4
)

// Transaction is a ledger transaction as it travels through the pool. All
// fields but Signatures are immutable once the transaction was signed.
// Signatures collects the co-signatures of a multisignature account and is
// only ever appended to.
type Transaction struct {
	ID                 string     `json:"id"`
	Type               TxType     `json:"type"`
	Timestamp          int64      `json:"timestamp"`
	SenderID           string     `json:"senderId"`
	SenderPublicKey    HexBytes   `json:"senderPublicKey"`
	RequesterPublicKey HexBytes   `json:"requesterPublicKey,omitempty"`
	RecipientID        string     `json:"recipientId,omitempty"`
	Amount             uint64     `json:"amount,string"`
	Fee                uint64     `json:"fee,string"`
	Asset              Asset      `json:"asset"`
	Signature          HexBytes   `json:"signature,omitempty"`
	Signatures         []HexBytes `json:"signatures,omitempty"`
}

// Asset holds the type specific content of a transaction.
type Asset struct {
	Multisignature *MultisigAsset `json:"multisignature,omitempty"`
}

// MultisigAsset is the content of a multisignature registration.
type MultisigAsset struct {
	Min      uint32 `json:"min"`
	Lifetime uint32 `json:"lifetime"`
	// KeysGroup lists the proposed member keys as hex strings prefixed
	// with a "+" (add) or "-" (remove) sigil.
	KeysGroup []string `json:"keysgroup"`
	// Signatures is set once the registration was finalized. Its
	// presence, not its length, is what matters.
	Signatures []HexBytes `json:"signatures"`
}

// IsMultisigRegistration returns true if the transaction changes the
// multisignature configuration of its own sender.
func (tx *Transaction) IsMultisigRegistration() bool {
	return tx.Type == TxMultisig && tx.Asset.Multisignature != nil
}

// HasSignature returns true if exactly this signature is already attached
// to the transaction.
func (tx *Transaction) HasSignature(sig []byte) bool {
	for _, s := range tx.Signatures {
		if bytes.Equal(s, sig) {
			return true
		}
	}
	return false
}

// SignBytes returns the canonical byte representation of the transaction
// that all signatures are created for. Signatures are not part of it.
func (tx *Transaction) SignBytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(tx.Type))
	writeUint64(&buf, uint64(tx.Timestamp))
	buf.Write(tx.SenderPublicKey)
	buf.Write(tx.RequesterPublicKey)
	buf.WriteString(tx.RecipientID)
	writeUint64(&buf, tx.Amount)
	writeUint64(&buf, tx.Fee)
	if ms := tx.Asset.Multisignature; ms != nil {
		writeUint64(&buf, uint64(ms.Min))
		writeUint64(&buf, uint64(ms.Lifetime))
		for _, k := range ms.KeysGroup {
			buf.WriteString(k)
		}
	}
	return buf.Bytes()
}

// Snapshot returns a copy of the transaction that does not share the
// signature list. Readers outside of the admission step use it.
func (tx *Transaction) Snapshot() *Transaction {
	cp := *tx
	if tx.Signatures != nil {
		cp.Signatures = append([]HexBytes(nil), tx.Signatures...)
	}
	return &cp
}

// ComputeID returns the identifier derived from the signed transaction. The
// first eight bytes of the sha256 digest, read as a little endian number,
// form the decimal id.
func (tx *Transaction) ComputeID() string {
	h := sha256.New()
	h.Write(tx.SignBytes())
	h.Write(tx.Signature)
	sum := h.Sum(nil)
	return strconv.FormatUint(binary.LittleEndian.Uint64(sum[:8]), 10)
}

func writeUint64(buf *bytes.Buffer, n uint64) {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], n)
	buf.Write(raw[:])
}
