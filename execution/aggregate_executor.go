package execution

import (
	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/storage"
)

// Aggregate computes one aggregate over a single field of its child, optionally grouped by another field.
// Open drains the child into an IntegerAggregator or StringAggregator, picked by the type of the aggregate
// field; Next then serves one tuple per group. Rewind replays the groups without reading the child again.
// Output tuples are always described by Descriptor, whose names come from the child's descriptor.
type Aggregate struct {
	child  Operator
	aField int
	gField int
	op     AggOp
	desc   *storage.TupleDesc

	// Runtime state
	results *TupleIterator
	err     error
}

// NewAggregate creates an aggregate of child's field aField with op, grouped by child's field gField, or over
// all tuples if gField is NoGrouping. Fields outside the child's schema, and any op other than COUNT over a
// string field, are ConfigurationErrors.
func NewAggregate(child Operator, aField int, gField int, op AggOp) (*Aggregate, error) {
	childDesc := child.Descriptor()
	if aField < 0 || aField >= childDesc.NumFields() {
		return nil, common.NewError(common.ConfigurationError, "aggregate field %d, child has %d fields",
			aField, childDesc.NumFields())
	}
	if gField != NoGrouping && (gField < 0 || gField >= childDesc.NumFields()) {
		return nil, common.NewError(common.ConfigurationError, "group-by field %d, child has %d fields",
			gField, childDesc.NumFields())
	}

	e := &Aggregate{child: child, aField: aField, gField: gField, op: op}
	// Build one aggregator up front so a bad configuration fails here rather than at Open
	if _, err := e.newAggregator(); err != nil {
		return nil, err
	}
	if gField == NoGrouping {
		e.desc = storage.NewTupleDesc([]common.Type{common.IntType}, []string{childDesc.FieldName(aField)})
	} else {
		e.desc = storage.NewTupleDesc(
			[]common.Type{childDesc.FieldType(gField), common.IntType},
			[]string{childDesc.FieldName(gField), childDesc.FieldName(aField)})
	}
	return e, nil
}

func (e *Aggregate) newAggregator() (Aggregator, error) {
	childDesc := e.child.Descriptor()
	gType := common.DefaultType
	if e.gField != NoGrouping {
		gType = childDesc.FieldType(e.gField)
	}
	if childDesc.FieldType(e.aField) == common.StringType {
		return NewStringAggregator(e.gField, gType, e.aField, e.op)
	}
	return NewIntegerAggregator(e.gField, gType, e.aField, e.op)
}

// GroupField returns the group-by field index in the input tuples, or NoGrouping.
func (e *Aggregate) GroupField() int {
	return e.gField
}

// GroupFieldName returns the name of the group-by field in the output tuples, or "" without grouping.
func (e *Aggregate) GroupFieldName() string {
	if e.gField == NoGrouping {
		return ""
	}
	return e.desc.FieldName(0)
}

// AggregateField returns the aggregated field index in the input tuples.
func (e *Aggregate) AggregateField() int {
	return e.aField
}

// AggregateFieldName returns the name of the aggregate field in the output tuples.
func (e *Aggregate) AggregateFieldName() string {
	return e.desc.FieldName(e.desc.NumFields() - 1)
}

func (e *Aggregate) AggregateOp() AggOp {
	return e.op
}

func (e *Aggregate) Descriptor() *storage.TupleDesc {
	return e.desc
}

// Open opens the child and merges all of its tuples. The result is computed from scratch on every Open.
func (e *Aggregate) Open(ctx *ExecutorContext) error {
	e.results = nil
	e.err = nil
	if err := e.child.Open(ctx); err != nil {
		return err
	}

	agg, err := e.newAggregator()
	if err != nil {
		return err
	}
	for e.child.Next() {
		tuple := e.child.Current()
		if err := agg.MergeTupleIntoGroup(&tuple); err != nil {
			return err
		}
	}
	if err := e.child.Error(); err != nil {
		return err
	}

	e.results = agg.Iterator()
	return e.results.Open(ctx)
}

func (e *Aggregate) Next() bool {
	if e.results == nil {
		e.err = notOpen("aggregate")
		return false
	}
	return e.results.Next()
}

// Current returns the current group's result, described by Descriptor. It is the zero Tuple before Open.
func (e *Aggregate) Current() storage.Tuple {
	if e.results == nil {
		return storage.Tuple{}
	}
	t := e.results.Current()
	if t.IsNil() {
		return t
	}
	return storage.NewTuple(e.desc, t.Values()...)
}

func (e *Aggregate) Error() error {
	if e.err != nil {
		return e.err
	}
	if e.results != nil {
		return e.results.Error()
	}
	return nil
}

func (e *Aggregate) Rewind() error {
	if e.results == nil {
		return notOpen("aggregate")
	}
	return e.results.Rewind()
}

func (e *Aggregate) Close() error {
	e.results = nil
	return e.child.Close()
}
