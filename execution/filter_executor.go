package execution

import (
	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/storage"
)

// Filter passes on the tuples of its child that satisfy a predicate.
type Filter struct {
	predicate Predicate
	child     Operator
}

// NewFilter creates a new Filter. The predicate's field must exist in the child's schema.
func NewFilter(predicate Predicate, child Operator) (*Filter, error) {
	if predicate.Field() < 0 || predicate.Field() >= child.Descriptor().NumFields() {
		return nil, common.NewError(common.ConfigurationError, "filter on field %d, child has %d fields",
			predicate.Field(), child.Descriptor().NumFields())
	}
	return &Filter{
		predicate: predicate,
		child:     child,
	}, nil
}

func (e *Filter) Predicate() Predicate {
	return e.predicate
}

func (e *Filter) Descriptor() *storage.TupleDesc {
	return e.child.Descriptor()
}

// Open opens the child.
func (e *Filter) Open(ctx *ExecutorContext) error {
	return e.child.Open(ctx)
}

func (e *Filter) Next() bool {
	for e.child.Next() {
		current := e.child.Current()
		if e.predicate.Filter(&current) {
			return true
		}
	}
	return false
}

func (e *Filter) Current() storage.Tuple {
	return e.child.Current()
}

func (e *Filter) Error() error {
	return e.child.Error()
}

func (e *Filter) Rewind() error {
	return e.child.Rewind()
}

func (e *Filter) Close() error {
	return e.child.Close()
}
