package planner

import (
	"fmt"

	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/execution"
)

// AggregateNode computes one aggregate over a field of its child, optionally grouped by another field.
type AggregateNode struct {
	Child      PlanNode
	AggField   int
	GroupField int
	Op         execution.AggOp
}

func NewAggregateNode(child PlanNode, aggField, groupField int, op execution.AggOp) *AggregateNode {
	return &AggregateNode{
		Child:      child,
		AggField:   aggField,
		GroupField: groupField,
		Op:         op,
	}
}

// OutputSchema is (group, aggregate) when grouped and (aggregate) otherwise. Aggregates are always ints.
func (n *AggregateNode) OutputSchema() []common.Type {
	if n.GroupField == execution.NoGrouping {
		return []common.Type{common.IntType}
	}
	in := n.Child.OutputSchema()
	if n.GroupField < 0 || n.GroupField >= len(in) {
		return []common.Type{common.DefaultType, common.IntType}
	}
	return []common.Type{in[n.GroupField], common.IntType}
}

func (n *AggregateNode) Children() []PlanNode {
	return []PlanNode{n.Child}
}

func (n *AggregateNode) String() string {
	if n.GroupField == execution.NoGrouping {
		return fmt.Sprintf("Aggregate: %s(#%d)", n.Op, n.AggField)
	}
	return fmt.Sprintf("Aggregate: %s(#%d) GroupBy(#%d)", n.Op, n.AggField, n.GroupField)
}
