package execution

import (
	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/storage"
)

// Project produces, for each tuple of its child, a tuple holding the selected fields in the given order.
// A field may be selected more than once.
type Project struct {
	fields []int
	child  Operator
	desc   *storage.TupleDesc

	// Runtime state
	values []common.Value
	err    error
}

// NewProject creates a new Project. Every field index must exist in the child's schema.
func NewProject(fields []int, child Operator) (*Project, error) {
	childDesc := child.Descriptor()
	if len(fields) == 0 {
		return nil, common.NewError(common.ConfigurationError, "projection needs at least one field")
	}
	types := make([]common.Type, len(fields))
	names := make([]string, len(fields))
	for i, f := range fields {
		if f < 0 || f >= childDesc.NumFields() {
			return nil, common.NewError(common.ConfigurationError, "projection of field %d, child has %d fields",
				f, childDesc.NumFields())
		}
		types[i] = childDesc.FieldType(f)
		names[i] = childDesc.FieldName(f)
	}
	return &Project{
		fields: append([]int(nil), fields...),
		child:  child,
		desc:   storage.NewTupleDesc(types, names),
	}, nil
}

func (e *Project) Descriptor() *storage.TupleDesc {
	return e.desc
}

func (e *Project) Open(ctx *ExecutorContext) error {
	e.values = nil
	e.err = nil
	return e.child.Open(ctx)
}

func (e *Project) Next() bool {
	if !e.child.Next() {
		e.err = e.child.Error()
		return false
	}

	childTuple := e.child.Current()
	// Current tuples are handed out by value, so each one gets its own slice
	e.values = make([]common.Value, len(e.fields))
	for i, f := range e.fields {
		e.values[i] = childTuple.GetValue(f)
	}
	return true
}

func (e *Project) Current() storage.Tuple {
	return storage.NewTuple(e.desc, e.values...)
}

func (e *Project) Error() error {
	return e.err
}

func (e *Project) Rewind() error {
	e.err = nil
	return e.child.Rewind()
}

func (e *Project) Close() error {
	return e.child.Close()
}
