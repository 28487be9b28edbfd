package p2p

import (
	"net/http"
	"sort"

	"github.com/iov-one/msignode"
)

// Request kinds. Queued requests of the same kind can be squashed into one.
const (
	KindPostSignatures   = "postSignatures"
	KindPostTransactions = "postTransactions"
)

// RequestHandler describes an outbound peer request.
type RequestHandler interface {
	// Kind groups requests that can be merged together.
	Kind() string
	Method() string
	// Path returns the URL path for the given encoding.
	Path(protobuf bool) string
	// Body returns the encoded request body.
	Body(protobuf bool) ([]byte, error)
	// Subjects returns the ids of the transactions the request refers to.
	Subjects() []string
	// Filter returns a request carrying only the items whose transaction is
	// accepted by keep, or nil if nothing is left.
	Filter(keep func(txID string) bool) RequestHandler
	// Merge returns a request carrying the items of this and all other
	// requests of the same kind, deduplicated. Requests of another kind are
	// ignored.
	Merge(others ...RequestHandler) RequestHandler
}

// PostSignatures sends co-signatures of pending transactions.
type PostSignatures struct {
	Signatures []msignode.SignatureTask
}

var _ RequestHandler = (*PostSignatures)(nil)

func (*PostSignatures) Kind() string   { return KindPostSignatures }
func (*PostSignatures) Method() string { return http.MethodPost }

func (*PostSignatures) Path(protobuf bool) string {
	if protobuf {
		return "/v2/peer/signatures"
	}
	return "/peer/signatures"
}

func (r *PostSignatures) Body(protobuf bool) ([]byte, error) {
	return EncodeSignatures(r.Signatures, protobuf)
}

func (r *PostSignatures) Subjects() []string {
	ids := make([]string, len(r.Signatures))
	for i, s := range r.Signatures {
		ids[i] = s.TransactionID
	}
	return ids
}

func (r *PostSignatures) Filter(keep func(string) bool) RequestHandler {
	var res []msignode.SignatureTask
	for _, s := range r.Signatures {
		if keep(s.TransactionID) {
			res = append(res, s)
		}
	}
	if len(res) == 0 {
		return nil
	}
	return &PostSignatures{Signatures: res}
}

func (r *PostSignatures) Merge(others ...RequestHandler) RequestHandler {
	unique := make(map[string]msignode.SignatureTask)
	add := func(sigs []msignode.SignatureTask) {
		for _, s := range sigs {
			key := SignatureKey(s)
			if prev, ok := unique[key]; !ok || s.Relays > prev.Relays {
				unique[key] = s
			}
		}
	}
	add(r.Signatures)
	for _, o := range others {
		if ps, ok := o.(*PostSignatures); ok {
			add(ps.Signatures)
		}
	}

	keys := sortedKeys(len(unique), func(fn func(string)) {
		for k := range unique {
			fn(k)
		}
	})
	res := make([]msignode.SignatureTask, len(keys))
	for i, k := range keys {
		res[i] = unique[k]
	}
	return &PostSignatures{Signatures: res}
}

// SignatureKey identifies a signature of a transaction.
func SignatureKey(s msignode.SignatureTask) string {
	return s.TransactionID + "_" + s.Signature.String()
}

// PostTransactions sends transactions.
type PostTransactions struct {
	Transactions []TransactionEntry
}

var _ RequestHandler = (*PostTransactions)(nil)

func (*PostTransactions) Kind() string   { return KindPostTransactions }
func (*PostTransactions) Method() string { return http.MethodPost }

func (*PostTransactions) Path(protobuf bool) string {
	if protobuf {
		return "/v2/peer/transactions"
	}
	return "/peer/transactions"
}

func (r *PostTransactions) Body(protobuf bool) ([]byte, error) {
	return EncodeTransactions(r.Transactions, protobuf)
}

func (r *PostTransactions) Subjects() []string {
	ids := make([]string, len(r.Transactions))
	for i, t := range r.Transactions {
		ids[i] = t.ID
	}
	return ids
}

func (r *PostTransactions) Filter(keep func(string) bool) RequestHandler {
	var res []TransactionEntry
	for _, t := range r.Transactions {
		if keep(t.ID) {
			res = append(res, t)
		}
	}
	if len(res) == 0 {
		return nil
	}
	return &PostTransactions{Transactions: res}
}

func (r *PostTransactions) Merge(others ...RequestHandler) RequestHandler {
	unique := make(map[string]TransactionEntry)
	add := func(entries []TransactionEntry) {
		for _, e := range entries {
			if prev, ok := unique[e.ID]; !ok || e.Relays > prev.Relays {
				unique[e.ID] = e
			}
		}
	}
	add(r.Transactions)
	for _, o := range others {
		if pt, ok := o.(*PostTransactions); ok {
			add(pt.Transactions)
		}
	}

	keys := sortedKeys(len(unique), func(fn func(string)) {
		for k := range unique {
			fn(k)
		}
	})
	res := make([]TransactionEntry, len(keys))
	for i, k := range keys {
		res[i] = unique[k]
	}
	return &PostTransactions{Transactions: res}
}

func sortedKeys(n int, each func(func(string))) []string {
	keys := make([]string, 0, n)
	each(func(k string) { keys = append(keys, k) })
	sort.Strings(keys)
	return keys
}
