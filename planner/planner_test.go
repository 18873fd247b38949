package planner

import (
	"fmt"
	"testing"

	"github.com/mspronesti/simpledb/catalog"
	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/execution"
	"github.com/mspronesti/simpledb/storage"
	"github.com/mspronesti/simpledb/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var peopleDesc = storage.NewTupleDesc([]common.Type{common.IntType, common.StringType}, []string{"age", "city"})

type plannerEnv struct {
	catalog *catalog.Catalog
	bp      *storage.BufferPool
	tm      *transaction.TransactionManager
}

func setupPlanner(t *testing.T) *plannerEnv {
	dir := t.TempDir()
	cat, err := catalog.NewCatalog(dir, catalog.NewDiskCatalogManager(dir))
	require.NoError(t, err)
	bp := storage.NewBufferPool(10, cat, transaction.NewLockManager())
	cat.SetPageFetcher(bp)
	t.Cleanup(func() { _ = cat.Close() })
	_, err = cat.AddTable("people", peopleDesc)
	require.NoError(t, err)
	return &plannerEnv{catalog: cat, bp: bp, tm: transaction.NewTransactionManager(bp)}
}

// run builds and drains plan in its own committed transaction.
func (env *plannerEnv) run(t *testing.T, plan PlanNode) []storage.Tuple {
	t.Helper()
	op, err := Build(plan, env.catalog)
	require.NoError(t, err)
	txn, err := env.tm.Begin()
	require.NoError(t, err)
	require.NoError(t, op.Open(execution.NewExecutorContext(txn, env.bp)))
	var out []storage.Tuple
	for op.Next() {
		out = append(out, op.Current())
	}
	require.NoError(t, op.Error())
	require.NoError(t, op.Close())
	require.NoError(t, env.tm.Commit(txn))
	return out
}

func people() []storage.Tuple {
	cities := []string{"rome", "oslo", "lima"}
	rows := make([]storage.Tuple, 9)
	for i := range rows {
		rows[i] = storage.NewTuple(peopleDesc, common.NewIntValue(int64(20+i)), common.NewStringValue(cities[i%3]))
	}
	return rows
}

func TestPlanner_InsertScanAggregate(t *testing.T) {
	env := setupPlanner(t)
	scan, err := ScanTable(env.catalog, "people", "p")
	require.NoError(t, err)
	assert.Equal(t, []common.Type{common.IntType, common.StringType}, scan.OutputSchema())

	insert := NewInsertNode(scan.TableOid, NewValuesNode(peopleDesc, people()))
	assert.Equal(t, []common.Type{common.IntType}, insert.OutputSchema())
	out := env.run(t, insert)
	require.Len(t, out, 1)
	assert.Equal(t, int64(9), out[0].GetValue(0).IntValue())

	assert.Len(t, env.run(t, scan), 9)

	agg := NewAggregateNode(scan, 0, 1, execution.AggMax)
	assert.Equal(t, []common.Type{common.StringType, common.IntType}, agg.OutputSchema())
	var got []string
	for _, tup := range env.run(t, agg) {
		got = append(got, tup.String())
	}
	assert.ElementsMatch(t, []string{"rome\t26", "oslo\t27", "lima\t28"}, got)
}

func TestPlanner_FilterProjectLimit(t *testing.T) {
	env := setupPlanner(t)
	scan, err := ScanTable(env.catalog, "people", "")
	require.NoError(t, err)
	env.run(t, NewInsertNode(scan.TableOid, NewValuesNode(peopleDesc, people())))

	plan := NewLimitNode(
		NewProjectionNode(
			NewFilterNode(scan, execution.NewPredicate(1, execution.Equal, common.NewStringValue("oslo"))),
			[]int{0}),
		2)
	assert.Equal(t, []common.Type{common.IntType}, plan.OutputSchema())

	out := env.run(t, plan)
	require.Len(t, out, 2)
	assert.Equal(t, int64(21), out[0].GetValue(0).IntValue())
	assert.Equal(t, int64(24), out[1].GetValue(0).IntValue())

	// Each Build yields fresh operators
	assert.Len(t, env.run(t, plan), 2)
}

func TestPlanner_Delete(t *testing.T) {
	env := setupPlanner(t)
	scan, err := ScanTable(env.catalog, "people", "")
	require.NoError(t, err)
	env.run(t, NewInsertNode(scan.TableOid, NewValuesNode(peopleDesc, people())))

	del := NewDeleteNode(NewFilterNode(scan, execution.NewPredicate(0, execution.GreaterThanOrEqual, common.NewIntValue(25))))
	out := env.run(t, del)
	assert.Equal(t, int64(4), out[0].GetValue(0).IntValue())
	assert.Len(t, env.run(t, scan), 5)
}

func TestPlanner_Explain(t *testing.T) {
	scan := NewSeqScanNode(7, "p", peopleDesc.FieldTypes())
	plan := NewAggregateNode(
		NewFilterNode(scan, execution.NewPredicate(0, execution.LessThan, common.NewIntValue(30))),
		0, execution.NoGrouping, execution.AggSum)

	want := fmt.Sprintf("Aggregate: sum(#0)\n  Filter: %s\n    SeqScan: TableOID(7) AS p\n",
		execution.NewPredicate(0, execution.LessThan, common.NewIntValue(30)))
	assert.Equal(t, want, Explain(plan))
}

func TestPlanner_Errors(t *testing.T) {
	env := setupPlanner(t)
	_, err := ScanTable(env.catalog, "missing", "")
	assert.Error(t, err)

	_, err = Build(NewSeqScanNode(12345, "", nil), env.catalog)
	assert.Error(t, err)

	scan, err := ScanTable(env.catalog, "people", "")
	require.NoError(t, err)
	_, err = Build(NewAggregateNode(scan, 1, execution.NoGrouping, execution.AggSum), env.catalog)
	code, ok := common.ErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, common.ConfigurationError, code)

	_, err = Build(NewProjectionNode(scan, []int{5}), env.catalog)
	assert.Error(t, err)
}
