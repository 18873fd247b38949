package execution

import (
	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/storage"
	"github.com/mspronesti/simpledb/transaction"
)

// ExecutorContext holds all the state and resources required for query execution.
// It is passed to every Operator when it is opened.
type ExecutorContext struct {
	txn        *transaction.TransactionContext
	bufferPool *storage.BufferPool
}

func NewExecutorContext(txn *transaction.TransactionContext, bufferPool *storage.BufferPool) *ExecutorContext {
	return &ExecutorContext{
		txn:        txn,
		bufferPool: bufferPool,
	}
}

func (ctx *ExecutorContext) GetTransaction() *transaction.TransactionContext {
	return ctx.txn
}

// TID returns the id of the transaction the query runs in.
func (ctx *ExecutorContext) TID() common.TransactionID {
	return ctx.txn.ID()
}

// BufferPool returns the buffer pool tuples are inserted and deleted through.
func (ctx *ExecutorContext) BufferPool() *storage.BufferPool {
	return ctx.bufferPool
}
