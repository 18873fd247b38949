package execution

import (
	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/storage"
)

// Limit passes on at most limit tuples of its child.
type Limit struct {
	limit int
	child Operator

	numEmitted int
}

func NewLimit(limit int, child Operator) (*Limit, error) {
	if limit < 0 {
		return nil, common.NewError(common.ConfigurationError, "negative limit %d", limit)
	}
	return &Limit{
		limit: limit,
		child: child,
	}, nil
}

func (e *Limit) Descriptor() *storage.TupleDesc {
	return e.child.Descriptor()
}

func (e *Limit) Open(ctx *ExecutorContext) error {
	e.numEmitted = 0
	return e.child.Open(ctx)
}

func (e *Limit) Next() bool {
	if e.numEmitted >= e.limit {
		return false
	}

	if e.child.Next() {
		e.numEmitted++
		return true
	}
	return false
}

func (e *Limit) Current() storage.Tuple {
	return e.child.Current()
}

func (e *Limit) Error() error {
	return e.child.Error()
}

func (e *Limit) Rewind() error {
	e.numEmitted = 0
	return e.child.Rewind()
}

func (e *Limit) Close() error {
	return e.child.Close()
}
