package planner

import (
	"fmt"

	"github.com/mspronesti/simpledb/common"
)

// SeqScanNode represents a sequential scan over a table.
// It uses the TableOid to identify the target table.
type SeqScanNode struct {
	TableOid     common.ObjectID
	Alias        string
	outputSchema []common.Type
}

func NewSeqScanNode(tableOid common.ObjectID, alias string, outputSchema []common.Type) *SeqScanNode {
	return &SeqScanNode{
		TableOid:     tableOid,
		Alias:        alias,
		outputSchema: outputSchema,
	}
}

func (n *SeqScanNode) OutputSchema() []common.Type {
	return n.outputSchema
}

func (n *SeqScanNode) Children() []PlanNode {
	return nil
}

func (n *SeqScanNode) String() string {
	if n.Alias == "" {
		return fmt.Sprintf("SeqScan: TableOID(%d)", n.TableOid)
	}
	return fmt.Sprintf("SeqScan: TableOID(%d) AS %s", n.TableOid, n.Alias)
}
