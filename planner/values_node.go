package planner

import (
	"fmt"

	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/storage"
)

// ValuesNode produces a fixed list of tuples, such as the rows of an INSERT.
type ValuesNode struct {
	Desc *storage.TupleDesc
	Rows []storage.Tuple
}

func NewValuesNode(desc *storage.TupleDesc, rows []storage.Tuple) *ValuesNode {
	return &ValuesNode{
		Desc: desc,
		Rows: rows,
	}
}

func (n *ValuesNode) OutputSchema() []common.Type {
	return n.Desc.FieldTypes()
}

func (n *ValuesNode) Children() []PlanNode {
	return nil
}

func (n *ValuesNode) String() string {
	return fmt.Sprintf("Values: %d rows", len(n.Rows))
}
