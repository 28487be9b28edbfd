package sigs

import (
	"context"

	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/errors"
	"github.com/iov-one/msignode/pool"
	"github.com/iov-one/msignode/sequence"
	"github.com/iov-one/msignode/x/multisig"
	"github.com/tendermint/tendermint/libs/log"
)

// Relayer propagates an accepted signature to other peers. It returns false
// if the signature was not scheduled, for example because its relay budget
// is exhausted.
type Relayer interface {
	BroadcastSignature(task msignode.SignatureTask) bool
}

// Admission implements the signature admission state machine.
type Admission struct {
	pending  *pool.Registry
	accounts msignode.AccountStore
	verifier msignode.Verifier
	seq      *sequence.Sequence
	relayer  Relayer
	filters  multisig.ReadinessFilters
	metrics  *Metrics
	logger   log.Logger
}

// NewAdmission returns an admission working on the pending registry. relayer
// and metrics are optional.
func NewAdmission(
	pending *pool.Registry,
	accounts msignode.AccountStore,
	verifier msignode.Verifier,
	seq *sequence.Sequence,
	relayer Relayer,
	metrics *Metrics,
	logger log.Logger,
) *Admission {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Admission{
		pending:  pending,
		accounts: accounts,
		verifier: verifier,
		seq:      seq,
		relayer:  relayer,
		metrics:  metrics,
		logger:   logger.With("module", "sigs"),
	}
}

// WithReadinessFilters registers filters called, in order, every time the
// readiness of a transaction is recomputed.
func (a *Admission) WithReadinessFilters(filters ...multisig.ReadinessFilter) *Admission {
	a.filters = append(a.filters, filters...)
	return a
}

// OnNewSignature admits a single co-signature. The signature is relayed to
// other peers only if it was accepted. Relaying is best effort and never
// fails the admission.
func (a *Admission) OnNewSignature(ctx context.Context, task msignode.SignatureTask) error {
	err := a.seq.Run(ctx, func(ctx context.Context) error {
		return a.admit(ctx, task)
	})
	a.metrics.observe(err)
	if err != nil {
		if errors.ErrPayloadNotFound.Is(err) {
			a.logger.Error("pool entry without payload", "tx", task.TransactionID, "err", err)
		} else {
			a.logger.Debug("signature rejected", "tx", task.TransactionID, "err", err)
		}
		return err
	}

	a.logger.Debug("signature accepted", "tx", task.TransactionID, "relays", task.Relays)
	a.relay(task)
	return nil
}

func (a *Admission) admit(ctx context.Context, task msignode.SignatureTask) error {
	entry := a.pending.Get(task.TransactionID)
	if entry == nil {
		return errors.Wrapf(errors.ErrTransactionNotFound, "transaction %s", task.TransactionID)
	}
	tx := entry.Tx

	sender, err := a.accounts.UnconfirmedAccount(ctx, tx.SenderID)
	switch {
	case errors.ErrNotFound.Is(err):
		return errors.Wrapf(errors.ErrSenderNotFound, "account %s", tx.SenderID)
	case err != nil:
		return errors.Wrap(err, "sender account")
	}

	if tx.IsMultisigRegistration() {
		err = multisig.VerifyRegistrationSignature(a.verifier, tx, task.Signature, sender)
	} else if !sender.UnconfirmedMultisig.IsMultisig() {
		err = errors.Wrapf(errors.ErrSenderNotMultisig, "account %s", sender.Address)
	} else {
		err = multisig.VerifyMemberSignature(a.verifier, tx, task.Signature, sender)
	}
	if err != nil {
		return err
	}

	tx.Signatures = append(tx.Signatures, task.Signature)

	payload := a.pending.GetPayload(tx)
	if payload == nil {
		return errors.Wrapf(errors.ErrPayloadNotFound, "transaction %s", tx.ID)
	}
	ready := multisig.IsReady(tx, sender.UnconfirmedMultisig)
	ready = a.filters.Apply(ctx, ready, tx, sender)
	payload.SetReady(ready)
	return nil
}

func (a *Admission) relay(task msignode.SignatureTask) {
	if a.relayer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("cannot relay signature", "tx", task.TransactionID, "panic", r)
		}
	}()
	if !a.relayer.BroadcastSignature(task) {
		a.logger.Debug("signature not relayed", "tx", task.TransactionID, "relays", task.Relays)
	}
}
