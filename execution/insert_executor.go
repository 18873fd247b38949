package execution

import (
	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/logging"
	"github.com/mspronesti/simpledb/storage"
)

// countDesc is the schema of the single (count) tuple Insert and Delete produce.
var countDesc = storage.NewTupleDesc([]common.Type{common.IntType}, []string{"count"})

// Insert drains its child into a table through the buffer pool and produces a single tuple holding the number
// of inserted tuples.
type Insert struct {
	file  storage.DBFile
	child Operator

	// Runtime state
	executed bool
	cnt      int
	ctx      *ExecutorContext
	err      error
}

// NewInsert creates an Insert into file. The child's schema must match the table's field types.
func NewInsert(file storage.DBFile, child Operator) (*Insert, error) {
	if !child.Descriptor().Equals(file.TupleDesc()) {
		return nil, common.NewError(common.ConfigurationError, "cannot insert (%s) into table with schema (%s)",
			child.Descriptor(), file.TupleDesc())
	}
	return &Insert{
		file:  file,
		child: child,
	}, nil
}

func (e *Insert) Descriptor() *storage.TupleDesc {
	return countDesc
}

func (e *Insert) Open(ctx *ExecutorContext) error {
	e.executed = false
	e.cnt = 0
	e.ctx = ctx
	e.err = nil
	return e.child.Open(ctx)
}

func (e *Insert) Next() bool {
	if e.ctx == nil {
		e.err = notOpen("insert")
		return false
	}
	if e.executed {
		return false
	}
	e.executed = true
	for e.child.Next() {
		tuple := e.child.Current()
		// The stored copy gets its own RecordID
		tuple.SetRID(common.RecordID{})
		if err := e.ctx.BufferPool().InsertTuple(e.ctx.TID(), e.file.ID(), &tuple); err != nil {
			e.err = err
			return false
		}
		e.cnt++
	}
	if err := e.child.Error(); err != nil {
		e.err = err
		return false
	}
	logging.WithTx(e.ctx.TID()).Debug("insert finished", "table_id", uint32(e.file.ID()), "count", e.cnt)
	return true
}

func (e *Insert) Current() storage.Tuple {
	return storage.NewTuple(countDesc, common.NewIntValue(int64(e.cnt)))
}

func (e *Insert) Error() error {
	return e.err
}

// Rewind makes the next call to Next insert the child's tuples again.
func (e *Insert) Rewind() error {
	if e.ctx == nil {
		return notOpen("insert")
	}
	e.executed = false
	e.cnt = 0
	e.err = nil
	return e.child.Rewind()
}

func (e *Insert) Close() error {
	e.ctx = nil
	return e.child.Close()
}
