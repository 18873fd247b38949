package planner

import (
	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/execution"
	"github.com/mspronesti/simpledb/storage"
)

// TableSource resolves the tables a plan refers to. *catalog.Catalog implements it.
type TableSource interface {
	GetTableID(name string) (common.ObjectID, error)
	GetTupleDesc(oid common.ObjectID) (*storage.TupleDesc, error)
	GetHeapFile(oid common.ObjectID) (*storage.HeapFile, error)
}

// ScanTable plans a sequential scan of the named table.
func ScanTable(tables TableSource, name, alias string) (*SeqScanNode, error) {
	oid, err := tables.GetTableID(name)
	if err != nil {
		return nil, err
	}
	desc, err := tables.GetTupleDesc(oid)
	if err != nil {
		return nil, err
	}
	return NewSeqScanNode(oid, alias, desc.FieldTypes()), nil
}

// Build turns a plan into a tree of unopened operators. Every call builds fresh operators, so a plan can be
// executed any number of times.
func Build(node PlanNode, tables TableSource) (execution.Operator, error) {
	switch n := node.(type) {
	case *SeqScanNode:
		file, err := tables.GetHeapFile(n.TableOid)
		if err != nil {
			return nil, err
		}
		return execution.NewSeqScan(file, n.Alias), nil

	case *ValuesNode:
		return execution.NewTupleIterator(n.Desc, n.Rows), nil

	case *FilterNode:
		child, err := Build(n.Child, tables)
		if err != nil {
			return nil, err
		}
		filter, err := execution.NewFilter(n.Predicate, child)
		if err != nil {
			return nil, err
		}
		return filter, nil

	case *ProjectionNode:
		child, err := Build(n.Child, tables)
		if err != nil {
			return nil, err
		}
		project, err := execution.NewProject(n.Fields, child)
		if err != nil {
			return nil, err
		}
		return project, nil

	case *LimitNode:
		child, err := Build(n.Child, tables)
		if err != nil {
			return nil, err
		}
		limit, err := execution.NewLimit(n.Limit, child)
		if err != nil {
			return nil, err
		}
		return limit, nil

	case *AggregateNode:
		child, err := Build(n.Child, tables)
		if err != nil {
			return nil, err
		}
		agg, err := execution.NewAggregate(child, n.AggField, n.GroupField, n.Op)
		if err != nil {
			return nil, err
		}
		return agg, nil

	case *InsertNode:
		file, err := tables.GetHeapFile(n.TableOid)
		if err != nil {
			return nil, err
		}
		child, err := Build(n.Child, tables)
		if err != nil {
			return nil, err
		}
		insert, err := execution.NewInsert(file, child)
		if err != nil {
			return nil, err
		}
		return insert, nil

	case *DeletionNode:
		child, err := Build(n.Child, tables)
		if err != nil {
			return nil, err
		}
		return execution.NewDelete(child), nil
	}
	return nil, common.NewError(common.ConfigurationError, "unsupported plan node %T", node)
}
