package planner

import (
	"fmt"

	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/execution"
)

// FilterNode filters tuples from its child based on a predicate.
type FilterNode struct {
	Child     PlanNode
	Predicate execution.Predicate
}

func NewFilterNode(child PlanNode, predicate execution.Predicate) *FilterNode {
	return &FilterNode{
		Child:     child,
		Predicate: predicate,
	}
}

func (n *FilterNode) OutputSchema() []common.Type {
	return n.Child.OutputSchema()
}

func (n *FilterNode) Children() []PlanNode {
	return []PlanNode{n.Child}
}

func (n *FilterNode) String() string {
	return fmt.Sprintf("Filter: %s", n.Predicate.String())
}
