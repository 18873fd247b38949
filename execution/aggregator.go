package execution

import (
	"strings"

	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/storage"
)

// NoGrouping is the group-by field index of an aggregate over the whole input.
const NoGrouping = -1

type AggOp int

const (
	AggMin AggOp = iota
	AggMax
	AggSum
	AggAvg
	AggCount
)

func (op AggOp) String() string {
	switch op {
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggCount:
		return "count"
	}
	return "???"
}

// ParseAggOp parses an aggregate name such as "sum" or "COUNT".
func ParseAggOp(s string) (AggOp, error) {
	for op := AggMin; op <= AggCount; op++ {
		if strings.EqualFold(s, op.String()) {
			return op, nil
		}
	}
	return AggCount, common.NewError(common.ConfigurationError, "unknown aggregate '%s'", s)
}

// Aggregator computes one aggregate over a stream of tuples, optionally per group.
type Aggregator interface {
	// MergeTupleIntoGroup folds t into the running state of its group.
	MergeTupleIntoGroup(t *storage.Tuple) error

	// Descriptor returns the schema of the result tuples: (aggregate) without grouping, (group, aggregate)
	// with it. Field names are taken from the last merged tuple.
	Descriptor() *storage.TupleDesc

	// Iterator returns the results computed so far, one tuple per group.
	Iterator() *TupleIterator
}

// groupState is the running state of one group. Which fields are maintained depends on the aggregate.
type groupState struct {
	count    int64
	sum      int64
	extremum int64
}

// groupedAggregator holds what IntegerAggregator and StringAggregator share: the configuration, the group
// table, and the field names captured from merged tuples.
type groupedAggregator struct {
	gbField     int
	gbFieldType common.Type
	aField      int
	op          AggOp

	groups     *ExecutionHashTable[*groupState]
	gFieldName string
	aFieldName string
}

func newGroupedAggregator(gbField int, gbFieldType common.Type, aField int, op AggOp) (groupedAggregator, error) {
	if op < AggMin || op > AggCount {
		return groupedAggregator{}, common.NewError(common.ConfigurationError, "unknown aggregate %d", int(op))
	}
	if aField < 0 {
		return groupedAggregator{}, common.NewError(common.ConfigurationError, "invalid aggregate field %d", aField)
	}
	if gbField != NoGrouping {
		if gbField < 0 {
			return groupedAggregator{}, common.NewError(common.ConfigurationError, "invalid group-by field %d", gbField)
		}
		if gbFieldType != common.IntType && gbFieldType != common.StringType {
			return groupedAggregator{}, common.NewError(common.ConfigurationError,
				"group-by field %d needs a type", gbField)
		}
	}
	return groupedAggregator{
		gbField:     gbField,
		gbFieldType: gbFieldType,
		aField:      aField,
		op:          op,
		groups:      NewExecutionHashTable[*groupState](),
	}, nil
}

// group returns the state of t's group, creating it if this is the first tuple of the group, and the value of
// t's aggregate field, which must be of type aggType. Ungrouped aggregates keep their state under the zero Value.
func (a *groupedAggregator) group(t *storage.Tuple, aggType common.Type) (*groupState, common.Value, bool, error) {
	if a.aField >= t.NumFields() {
		return nil, common.Value{}, false, common.NewError(common.ConfigurationError,
			"aggregate field %d out of range for (%s)", a.aField, t)
	}
	val := t.GetValue(a.aField)
	if val.Type() != aggType {
		return nil, common.Value{}, false, common.NewError(common.ConfigurationError,
			"%s aggregate over %s field %d", aggType, val.Type(), a.aField)
	}
	var key common.Value
	if a.gbField != NoGrouping {
		if a.gbField >= t.NumFields() {
			return nil, common.Value{}, false, common.NewError(common.ConfigurationError,
				"group-by field %d out of range for (%s)", a.gbField, t)
		}
		key = t.GetValue(a.gbField)
		if key.Type() != a.gbFieldType {
			return nil, common.Value{}, false, common.NewError(common.ConfigurationError,
				"group-by field %d is %s, expected %s", a.gbField, key.Type(), a.gbFieldType)
		}
	}

	if desc := t.Desc(); desc != nil {
		if a.gbField != NoGrouping {
			a.gFieldName = desc.FieldName(a.gbField)
		}
		a.aFieldName = desc.FieldName(a.aField)
	}

	state, found := a.groups.Get(key)
	if !found {
		state = &groupState{}
		a.groups.Insert(key, state)
	}
	return state, val, !found, nil
}

func (a *groupedAggregator) Descriptor() *storage.TupleDesc {
	if a.gbField == NoGrouping {
		return storage.NewTupleDesc([]common.Type{common.IntType}, []string{a.aFieldName})
	}
	return storage.NewTupleDesc([]common.Type{a.gbFieldType, common.IntType}, []string{a.gFieldName, a.aFieldName})
}

// results builds one tuple per group, with the aggregate computed from the group's state by value.
func (a *groupedAggregator) results(value func(*groupState) int64) *TupleIterator {
	desc := a.Descriptor()
	tuples := make([]storage.Tuple, 0, a.groups.Len())
	a.groups.Iterate(func(key common.Value, state *groupState) {
		agg := common.NewIntValue(value(state))
		if a.gbField == NoGrouping {
			tuples = append(tuples, storage.NewTuple(desc, agg))
		} else {
			tuples = append(tuples, storage.NewTuple(desc, key, agg))
		}
	})
	return NewTupleIterator(desc, tuples)
}

// IntegerAggregator computes COUNT, SUM, AVG, MIN or MAX over an integer field.
type IntegerAggregator struct {
	groupedAggregator
}

// NewIntegerAggregator creates an aggregator of field aField with operator op, grouped by field gbField of type
// gbFieldType, or ungrouped if gbField is NoGrouping (gbFieldType is then ignored).
func NewIntegerAggregator(gbField int, gbFieldType common.Type, aField int, op AggOp) (*IntegerAggregator, error) {
	base, err := newGroupedAggregator(gbField, gbFieldType, aField, op)
	if err != nil {
		return nil, err
	}
	return &IntegerAggregator{base}, nil
}

func (a *IntegerAggregator) MergeTupleIntoGroup(t *storage.Tuple) error {
	state, val, first, err := a.group(t, common.IntType)
	if err != nil {
		return err
	}
	v := val.IntValue()

	state.count++
	state.sum += v
	switch {
	case first:
		state.extremum = v
	case a.op == AggMin && v < state.extremum:
		state.extremum = v
	case a.op == AggMax && v > state.extremum:
		state.extremum = v
	}
	return nil
}

// Iterator returns the results. AVG is the running sum divided by the running count, truncated toward zero.
func (a *IntegerAggregator) Iterator() *TupleIterator {
	return a.results(func(s *groupState) int64 {
		switch a.op {
		case AggCount:
			return s.count
		case AggSum:
			return s.sum
		case AggAvg:
			return s.sum / s.count
		default:
			return s.extremum
		}
	})
}

// StringAggregator counts the values of a string field. COUNT is the only aggregate it supports.
type StringAggregator struct {
	groupedAggregator
}

// NewStringAggregator creates a counting aggregator; any op other than AggCount is a ConfigurationError.
func NewStringAggregator(gbField int, gbFieldType common.Type, aField int, op AggOp) (*StringAggregator, error) {
	if op != AggCount {
		return nil, common.NewError(common.ConfigurationError, "string fields only support count, got %s", op)
	}
	base, err := newGroupedAggregator(gbField, gbFieldType, aField, op)
	if err != nil {
		return nil, err
	}
	return &StringAggregator{base}, nil
}

func (a *StringAggregator) MergeTupleIntoGroup(t *storage.Tuple) error {
	state, _, _, err := a.group(t, common.StringType)
	if err != nil {
		return err
	}
	state.count++
	return nil
}

func (a *StringAggregator) Iterator() *TupleIterator {
	return a.results(func(s *groupState) int64 { return s.count })
}
