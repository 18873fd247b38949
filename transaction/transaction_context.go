package transaction

import (
	"fmt"
	"time"

	"github.com/mspronesti/simpledb/common"
)

// Status is the lifecycle state of a transaction.
type Status int

const (
	StatusActive Status = iota
	StatusCommitted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCommitted:
		return "committed"
	case StatusAborted:
		return "aborted"
	}
	return "unknown"
}

// TransactionContext is the handle a client holds for a running transaction. Its id is what the storage layer
// sees: page locks and dirty pages are tracked per id.
type TransactionContext struct {
	id      common.TransactionID
	status  Status
	started time.Time
}

// ID returns the transaction's id. Lower ids are older and win wait-die conflicts.
func (txn *TransactionContext) ID() common.TransactionID {
	return txn.id
}

func (txn *TransactionContext) Status() Status {
	return txn.status
}

// Started returns when Begin created the transaction.
func (txn *TransactionContext) Started() time.Time {
	return txn.started
}

func (txn *TransactionContext) String() string {
	return fmt.Sprintf("txn(%d, %s)", txn.id, txn.status)
}
