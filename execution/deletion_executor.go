package execution

import (
	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/logging"
	"github.com/mspronesti/simpledb/storage"
)

// Delete removes the tuples of its child from the tables they are stored in. The first call to Next drains the
// child, deleting each tuple through the buffer pool by its RecordID, and produces a single (count) tuple. Later
// calls produce nothing until the operator is rewound, after which the child is drained and deleted again.
//
// A failed delete stops the drain and is reported by Error. Deletes already applied are not undone here;
// aborting the transaction does that.
type Delete struct {
	child Operator

	// Runtime state
	executed bool
	cnt      int
	ctx      *ExecutorContext
	err      error
}

func NewDelete(child Operator) *Delete {
	return &Delete{
		child: child,
	}
}

func (e *Delete) Descriptor() *storage.TupleDesc {
	return countDesc
}

func (e *Delete) Open(ctx *ExecutorContext) error {
	e.ctx = ctx
	e.executed = false
	e.cnt = 0
	e.err = nil
	return e.child.Open(ctx)
}

func (e *Delete) Next() bool {
	if e.ctx == nil {
		e.err = notOpen("delete")
		return false
	}
	if e.executed {
		return false
	}
	e.executed = true
	for e.child.Next() {
		tuple := e.child.Current()
		if err := e.ctx.BufferPool().DeleteTuple(e.ctx.TID(), &tuple); err != nil {
			e.err = err
			logging.WithTx(e.ctx.TID()).Debug("delete failed", "deleted", e.cnt, "error", err)
			return false
		}
		e.cnt++
	}
	if err := e.child.Error(); err != nil {
		e.err = err
		return false
	}
	logging.WithTx(e.ctx.TID()).Debug("delete finished", "count", e.cnt)
	return true
}

func (e *Delete) Current() storage.Tuple {
	return storage.NewTuple(countDesc, common.NewIntValue(int64(e.cnt)))
}

func (e *Delete) Error() error {
	return e.err
}

// Rewind makes the next call to Next drain the child and delete its tuples again.
func (e *Delete) Rewind() error {
	if e.ctx == nil {
		return notOpen("delete")
	}
	e.executed = false
	e.cnt = 0
	e.err = nil
	return e.child.Rewind()
}

func (e *Delete) Close() error {
	e.ctx = nil
	return e.child.Close()
}
