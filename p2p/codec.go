package p2p

import (
	"encoding/json"

	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/errors"
)

// Content types of request bodies.
const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/octet-stream"
)

// SignatureEntry is the protobuf encoding of a single signature.
type SignatureEntry struct {
	Transaction string `protobuf:"bytes,1,opt,name=transaction,proto3" json:"transaction,omitempty"`
	Signature   []byte `protobuf:"bytes,2,opt,name=signature,proto3" json:"signature,omitempty"`
	Relays      uint32 `protobuf:"varint,3,opt,name=relays,proto3" json:"relays,omitempty"`
}

func (m *SignatureEntry) Reset()         { *m = SignatureEntry{} }
func (m *SignatureEntry) String() string { return proto.CompactTextString(m) }
func (*SignatureEntry) ProtoMessage()    {}

// SignaturesRequest is the protobuf body of a post signatures request.
type SignaturesRequest struct {
	Signatures []*SignatureEntry `protobuf:"bytes,1,rep,name=signatures,proto3" json:"signatures,omitempty"`
}

func (m *SignaturesRequest) Reset()         { *m = SignaturesRequest{} }
func (m *SignaturesRequest) String() string { return proto.CompactTextString(m) }
func (*SignaturesRequest) ProtoMessage()    {}

// TransactionsRequest is the protobuf body of a post transactions request.
// Each element is a JSON serialized TransactionEntry.
type TransactionsRequest struct {
	Transactions [][]byte `protobuf:"bytes,1,rep,name=transactions,proto3" json:"transactions,omitempty"`
}

func (m *TransactionsRequest) Reset()         { *m = TransactionsRequest{} }
func (m *TransactionsRequest) String() string { return proto.CompactTextString(m) }
func (*TransactionsRequest) ProtoMessage()    {}

type signatureJSON struct {
	Transaction string            `json:"transaction"`
	Signature   msignode.HexBytes `json:"signature"`
	Relays      int               `json:"relays"`
}

type signaturesJSON struct {
	Signatures []signatureJSON `json:"signatures"`
}

// TransactionEntry is a transaction together with the number of times it
// was relayed.
type TransactionEntry struct {
	*msignode.Transaction
	Relays int `json:"relays"`
}

type transactionsJSON struct {
	Transactions []TransactionEntry `json:"transactions"`
}

// EncodeSignatures returns the body of a post signatures request.
func EncodeSignatures(tasks []msignode.SignatureTask, protobuf bool) ([]byte, error) {
	if protobuf {
		msg := &SignaturesRequest{Signatures: make([]*SignatureEntry, len(tasks))}
		for i, t := range tasks {
			msg.Signatures[i] = &SignatureEntry{
				Transaction: t.TransactionID,
				Signature:   t.Signature,
				Relays:      uint32(t.Relays),
			}
		}
		return proto.Marshal(msg)
	}

	msg := signaturesJSON{Signatures: make([]signatureJSON, len(tasks))}
	for i, t := range tasks {
		msg.Signatures[i] = signatureJSON{
			Transaction: t.TransactionID,
			Signature:   t.Signature,
			Relays:      t.Relays,
		}
	}
	return json.Marshal(msg)
}

// DecodeSignatures parses the body of a post signatures request.
func DecodeSignatures(raw []byte, protobuf bool) ([]msignode.SignatureTask, error) {
	if protobuf {
		var msg SignaturesRequest
		if err := proto.Unmarshal(raw, &msg); err != nil {
			return nil, errors.Wrap(errors.ErrInput, err.Error())
		}
		tasks := make([]msignode.SignatureTask, 0, len(msg.Signatures))
		for _, s := range msg.Signatures {
			if s == nil {
				continue
			}
			tasks = append(tasks, msignode.SignatureTask{
				TransactionID: s.Transaction,
				Signature:     s.Signature,
				Relays:        int(s.Relays),
			})
		}
		return tasks, nil
	}

	var msg signaturesJSON
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	tasks := make([]msignode.SignatureTask, len(msg.Signatures))
	for i, s := range msg.Signatures {
		tasks[i] = msignode.SignatureTask{
			TransactionID: s.Transaction,
			Signature:     s.Signature,
			Relays:        s.Relays,
		}
	}
	return tasks, nil
}

// EncodeTransactions returns the body of a post transactions request.
func EncodeTransactions(entries []TransactionEntry, protobuf bool) ([]byte, error) {
	if protobuf {
		msg := &TransactionsRequest{Transactions: make([][]byte, len(entries))}
		for i, e := range entries {
			raw, err := json.Marshal(e)
			if err != nil {
				return nil, errors.Wrapf(err, "transaction %s", e.ID)
			}
			msg.Transactions[i] = raw
		}
		return proto.Marshal(msg)
	}
	return json.Marshal(transactionsJSON{Transactions: entries})
}

// DecodeTransactions parses the body of a post transactions request.
func DecodeTransactions(raw []byte, protobuf bool) ([]TransactionEntry, error) {
	if protobuf {
		var msg TransactionsRequest
		if err := proto.Unmarshal(raw, &msg); err != nil {
			return nil, errors.Wrap(errors.ErrInput, err.Error())
		}
		entries := make([]TransactionEntry, len(msg.Transactions))
		for i, b := range msg.Transactions {
			if err := json.Unmarshal(b, &entries[i]); err != nil {
				return nil, errors.Wrapf(errors.ErrInput, "transaction %d: %s", i, err)
			}
		}
		return validEntries(entries)
	}

	var msg transactionsJSON
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	return validEntries(msg.Transactions)
}

func validEntries(entries []TransactionEntry) ([]TransactionEntry, error) {
	for i, e := range entries {
		if e.Transaction == nil || e.ID == "" {
			return nil, errors.Wrapf(errors.ErrEmpty, "transaction %d", i)
		}
	}
	return entries, nil
}
