package transaction

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/logging"
	"github.com/puzpuzpuz/xsync/v3"
)

// Completer finishes a transaction in the page cache: on commit its dirty pages are written out, on abort they
// are discarded. Either way its page locks are released. storage.BufferPool implements it.
type Completer interface {
	TransactionComplete(tid common.TransactionID, commit bool) error
}

// TransactionManager is the central component managing the lifecycle of transactions. It hands out
// monotonically increasing ids, so the order of Begin calls is the age order wait-die relies on.
type TransactionManager struct {
	// activeTxns maps TransactionIDs to their runtime context
	activeTxns *xsync.MapOf[common.TransactionID, *TransactionContext]
	completer  Completer
	nextTxnID  atomic.Uint64
}

// NewTransactionManager initializes the transaction manager.
func NewTransactionManager(completer Completer) *TransactionManager {
	tm := &TransactionManager{
		activeTxns: xsync.NewMapOf[common.TransactionID, *TransactionContext](),
		completer:  completer,
	}
	tm.nextTxnID.Store(uint64(common.InvalidTransactionID))
	return tm
}

// Begin starts a new transaction and returns the initialized context.
func (tm *TransactionManager) Begin() (*TransactionContext, error) {
	tid := common.TransactionID(tm.nextTxnID.Add(1))
	txn := &TransactionContext{id: tid, status: StatusActive, started: time.Now()}
	tm.activeTxns.Store(tid, txn)
	logging.WithTx(tid).Debug("transaction started")
	return txn, nil
}

func (tm *TransactionManager) finish(txn *TransactionContext) error {
	if _, ok := tm.activeTxns.LoadAndDelete(txn.id); !ok || txn.status != StatusActive {
		return common.NewError(common.ProtocolError, "%s is not active", txn)
	}
	return nil
}

// Commit completes a transaction and makes its effects durable and visible. If its pages cannot be written,
// the transaction is aborted instead and the write error returned.
func (tm *TransactionManager) Commit(txn *TransactionContext) error {
	if err := tm.finish(txn); err != nil {
		return err
	}
	if err := tm.completer.TransactionComplete(txn.id, true); err != nil {
		txn.status = StatusAborted
		logging.WithTx(txn.id).Warn("commit failed, aborting", "error", err)
		if abortErr := tm.completer.TransactionComplete(txn.id, false); abortErr != nil {
			logging.WithTx(txn.id).Error("abort after failed commit", "error", abortErr)
		}
		return err
	}
	txn.status = StatusCommitted
	logging.WithTx(txn.id).Debug("transaction committed", "duration", time.Since(txn.started))
	return nil
}

// Abort stops a transaction and ensures its effects are rolled back.
func (tm *TransactionManager) Abort(txn *TransactionContext) error {
	if err := tm.finish(txn); err != nil {
		return err
	}
	txn.status = StatusAborted
	logging.WithTx(txn.id).Debug("transaction aborted")
	return tm.completer.TransactionComplete(txn.id, false)
}

// ActiveTransactions returns the ids of running transactions, oldest first.
func (tm *TransactionManager) ActiveTransactions() []common.TransactionID {
	var ids []common.TransactionID
	tm.activeTxns.Range(func(tid common.TransactionID, _ *TransactionContext) bool {
		ids = append(ids, tid)
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
