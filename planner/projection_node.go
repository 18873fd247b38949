package planner

import (
	"fmt"

	"github.com/mspronesti/simpledb/common"
)

// ProjectionNode projects specific columns from its child.
type ProjectionNode struct {
	Child  PlanNode
	Fields []int
}

func NewProjectionNode(child PlanNode, fields []int) *ProjectionNode {
	return &ProjectionNode{
		Child:  child,
		Fields: fields,
	}
}

func (n *ProjectionNode) OutputSchema() []common.Type {
	in := n.Child.OutputSchema()
	out := make([]common.Type, 0, len(n.Fields))
	for _, f := range n.Fields {
		if f >= 0 && f < len(in) {
			out = append(out, in[f])
		}
	}
	return out
}

func (n *ProjectionNode) Children() []PlanNode {
	return []PlanNode{n.Child}
}

func (n *ProjectionNode) String() string {
	return fmt.Sprintf("Projection: %v", n.Fields)
}
