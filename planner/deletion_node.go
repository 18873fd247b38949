package planner

import (
	"github.com/mspronesti/simpledb/common"
)

// DeletionNode deletes every tuple its child produces. The tuples carry the record ids that locate them.
type DeletionNode struct {
	Child PlanNode
}

func NewDeleteNode(child PlanNode) *DeletionNode {
	return &DeletionNode{
		Child: child,
	}
}

func (n *DeletionNode) OutputSchema() []common.Type {
	return []common.Type{common.IntType} // Returns count of deleted rows
}

func (n *DeletionNode) Children() []PlanNode {
	return []PlanNode{n.Child}
}

func (n *DeletionNode) String() string {
	return "Delete"
}
