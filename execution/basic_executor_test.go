package execution

import (
	"fmt"
	"testing"

	"github.com/mspronesti/simpledb/catalog"
	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/storage"
	"github.com/mspronesti/simpledb/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDB struct {
	catalog *catalog.Catalog
	bp      *storage.BufferPool
	tm      *transaction.TransactionManager
}

func setupTestDB(t *testing.T) *testDB {
	dir := t.TempDir()
	cat, err := catalog.NewCatalog(dir, catalog.NewDiskCatalogManager(dir))
	require.NoError(t, err)
	bp := storage.NewBufferPool(20, cat, transaction.NewLockManager())
	cat.SetPageFetcher(bp)
	t.Cleanup(func() { _ = cat.Close() })
	return &testDB{catalog: cat, bp: bp, tm: transaction.NewTransactionManager(bp)}
}

func (db *testDB) begin(t *testing.T) *ExecutorContext {
	txn, err := db.tm.Begin()
	require.NoError(t, err)
	return NewExecutorContext(txn, db.bp)
}

func (db *testDB) commit(t *testing.T, ctx *ExecutorContext) {
	require.NoError(t, db.tm.Commit(ctx.GetTransaction()))
}

var testTableDesc = storage.NewTupleDesc([]common.Type{common.IntType, common.StringType}, []string{"id", "name"})

// setupTestTable creates a table (id int, name string) holding n committed rows (i, "row-i").
func (db *testDB) setupTestTable(t *testing.T, name string, n int) *storage.HeapFile {
	table, err := db.catalog.AddTable(name, testTableDesc)
	require.NoError(t, err)
	file, err := db.catalog.GetHeapFile(table.Oid)
	require.NoError(t, err)

	ctx := db.begin(t)
	for i := 0; i < n; i++ {
		tup := storage.NewTuple(testTableDesc, common.NewIntValue(int64(i)), common.NewStringValue(fmt.Sprintf("row-%d", i)))
		require.NoError(t, db.bp.InsertTuple(ctx.TID(), file.ID(), &tup))
	}
	db.commit(t, ctx)
	return file
}

// collect drains an open operator and fails the test if it stops with an error.
func collect(t *testing.T, op Operator) []storage.Tuple {
	t.Helper()
	var out []storage.Tuple
	for op.Next() {
		out = append(out, op.Current())
	}
	require.NoError(t, op.Error())
	return out
}

func TestBasicExecutor_SeqScan(t *testing.T) {
	db := setupTestDB(t)
	file := db.setupTestTable(t, "test_table", 600)

	scan := NewSeqScan(file, "t")
	assert.Equal(t, "t.id", scan.Descriptor().FieldName(0))
	assert.Equal(t, "t.name", scan.Descriptor().FieldName(1))
	assert.Equal(t, "t", scan.TableAlias())

	ctx := db.begin(t)
	require.NoError(t, scan.Open(ctx))
	rows := collect(t, scan)
	require.Len(t, rows, 600)
	for i, tup := range rows {
		assert.Equal(t, int64(i), tup.GetValue(0).IntValue(), "Pass 1: Tuple ID mismatch at row %d", i)
		assert.Equal(t, fmt.Sprintf("row-%d", i), tup.GetValue(1).StringValue())
		assert.Equal(t, file.ID(), tup.RID().Oid)
		assert.Equal(t, "t.id", tup.Desc().FieldName(0))
	}

	// Rewind reproduces the scan
	require.NoError(t, scan.Rewind())
	assert.Len(t, collect(t, scan), 600)

	// So does reopening after Close
	require.NoError(t, scan.Close())
	require.NoError(t, scan.Open(ctx))
	assert.Len(t, collect(t, scan), 600)
	require.NoError(t, scan.Close())
	db.commit(t, ctx)

	noAlias := NewSeqScan(file, "")
	assert.Equal(t, "id", noAlias.Descriptor().FieldName(0))
}

func TestBasicExecutor_Protocol(t *testing.T) {
	db := setupTestDB(t)
	file := db.setupTestTable(t, "test_table", 3)

	scan := NewSeqScan(file, "t")
	assert.False(t, scan.Next())
	requireCode(t, scan.Error(), common.ProtocolError)
	requireCode(t, scan.Rewind(), common.ProtocolError)

	ctx := db.begin(t)
	require.NoError(t, scan.Open(ctx))
	assert.Len(t, collect(t, scan), 3)
	require.NoError(t, scan.Close())
	assert.False(t, scan.Next())
	requireCode(t, scan.Error(), common.ProtocolError)

	it := NewTupleIterator(testTableDesc, nil)
	assert.False(t, it.Next())
	requireCode(t, it.Error(), common.ProtocolError)
}

func TestBasicExecutor_Filter(t *testing.T) {
	db := setupTestDB(t)
	file := db.setupTestTable(t, "test_table", 10)
	ctx := db.begin(t)

	filter, err := NewFilter(NewPredicate(0, GreaterThan, common.NewIntValue(5)), NewSeqScan(file, "t"))
	require.NoError(t, err)
	require.NoError(t, filter.Open(ctx))

	rows := collect(t, filter)
	for _, tup := range rows {
		assert.True(t, tup.GetValue(0).IntValue() > 5)
	}
	assert.Len(t, rows, 4, "Should match IDs 6, 7, 8, 9")

	require.NoError(t, filter.Rewind())
	assert.Len(t, collect(t, filter), 4)

	_, err = NewFilter(NewPredicate(2, Equal, common.NewIntValue(1)), NewSeqScan(file, "t"))
	requireCode(t, err, common.ConfigurationError)
}

func TestPredicate(t *testing.T) {
	tup := storage.NewTuple(testTableDesc, common.NewIntValue(5), common.NewStringValue("bob"))
	cases := []struct {
		pred Predicate
		want bool
	}{
		{NewPredicate(0, Equal, common.NewIntValue(5)), true},
		{NewPredicate(0, NotEqual, common.NewIntValue(5)), false},
		{NewPredicate(0, LessThan, common.NewIntValue(6)), true},
		{NewPredicate(0, LessThanOrEqual, common.NewIntValue(5)), true},
		{NewPredicate(0, GreaterThanOrEqual, common.NewIntValue(6)), false},
		{NewPredicate(1, GreaterThan, common.NewStringValue("alice")), true},
		{NewPredicate(1, Equal, common.NewStringValue("bob")), true},
		// Values of different types are never equal
		{NewPredicate(0, Equal, common.NewStringValue("5")), false},
		{NewPredicate(0, NotEqual, common.NewStringValue("5")), true},
		{NewPredicate(0, LessThan, common.NewStringValue("5")), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.pred.Filter(&tup), "%s", c.pred)
	}

	op, err := ParseComparisonType("<>")
	require.NoError(t, err)
	assert.Equal(t, NotEqual, op)
	_, err = ParseComparisonType("~")
	requireCode(t, err, common.ConfigurationError)
}

func TestBasicExecutor_Projection(t *testing.T) {
	db := setupTestDB(t)
	file := db.setupTestTable(t, "test_table", 5)
	ctx := db.begin(t)

	// Project: [name, id, id]
	proj, err := NewProject([]int{1, 0, 0}, NewSeqScan(file, "t"))
	require.NoError(t, err)
	assert.Equal(t, []common.Type{common.StringType, common.IntType, common.IntType}, proj.Descriptor().FieldTypes())
	assert.Equal(t, "t.name", proj.Descriptor().FieldName(0))
	require.NoError(t, proj.Open(ctx))

	rows := collect(t, proj)
	require.Len(t, rows, 5)
	for i, tup := range rows {
		require.Equal(t, 3, tup.NumFields())
		assert.Equal(t, fmt.Sprintf("row-%d", i), tup.GetValue(0).StringValue())
		assert.Equal(t, tup.GetValue(1), tup.GetValue(2))
	}

	_, err = NewProject([]int{3}, NewSeqScan(file, "t"))
	requireCode(t, err, common.ConfigurationError)
	_, err = NewProject(nil, NewSeqScan(file, "t"))
	requireCode(t, err, common.ConfigurationError)
}

func TestBasicExecutor_Limit(t *testing.T) {
	db := setupTestDB(t)
	file := db.setupTestTable(t, "test_table", 10)
	ctx := db.begin(t)

	for _, c := range []struct{ limit, want int }{{5, 5}, {0, 0}, {100, 10}} {
		limit, err := NewLimit(c.limit, NewSeqScan(file, "t"))
		require.NoError(t, err)
		require.NoError(t, limit.Open(ctx))
		assert.Len(t, collect(t, limit), c.want)
		require.NoError(t, limit.Rewind())
		assert.Len(t, collect(t, limit), c.want)
		require.NoError(t, limit.Close())
	}

	_, err := NewLimit(-1, NewSeqScan(file, "t"))
	requireCode(t, err, common.ConfigurationError)
}

func TestBasicExecutor_BasicPipeline(t *testing.T) {
	db := setupTestDB(t)
	file := db.setupTestTable(t, "test_table", 20)
	ctx := db.begin(t)

	// 1. Filter: id > 5
	f1, err := NewFilter(NewPredicate(0, GreaterThan, common.NewIntValue(5)), NewSeqScan(file, "t"))
	require.NoError(t, err)
	// 2. Project: Swap to (name, id)
	proj, err := NewProject([]int{1, 0}, f1)
	require.NoError(t, err)
	// 3. Filter: id < 15 (Note: id is now index 1)
	f2, err := NewFilter(NewPredicate(1, LessThan, common.NewIntValue(15)), proj)
	require.NoError(t, err)
	// 4. Limit: 3
	limit, err := NewLimit(3, f2)
	require.NoError(t, err)

	require.NoError(t, limit.Open(ctx))
	var results []int64
	for _, tup := range collect(t, limit) {
		results = append(results, tup.GetValue(1).IntValue())
	}
	// Matches > 5 and < 15: 6, 7, 8, 9, 10, 11, 12, 13, 14. Limit 3 -> Should get 6, 7, 8.
	assert.Equal(t, []int64{6, 7, 8}, results)
}

func requireCode(t *testing.T, err error, code common.GoDBErrorCode) {
	t.Helper()
	require.Error(t, err)
	got, ok := common.ErrorCode(err)
	require.True(t, ok, "expected a GoDBError, got %v", err)
	require.Equal(t, code, got, "unexpected error: %v", err)
}
