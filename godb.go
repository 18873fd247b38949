package simpledb

import (
	"errors"
	"fmt"
	"os"

	"github.com/mspronesti/simpledb/catalog"
	"github.com/mspronesti/simpledb/execution"
	"github.com/mspronesti/simpledb/logging"
	"github.com/mspronesti/simpledb/storage"
	"github.com/mspronesti/simpledb/transaction"
)

// GoDB is the top-level container for the database system.
type GoDB struct {
	Catalog            *catalog.Catalog
	BufferPool         *storage.BufferPool
	TransactionManager *transaction.TransactionManager
	LockManager        *transaction.LockManager
}

func NewGoDB(cfg Config) (*GoDB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logging.Init(cfg.Logging); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	cat, err := catalog.NewCatalog(cfg.DataDir, catalog.NewDiskCatalogManager(cfg.DataDir))
	if err != nil {
		return nil, err
	}
	lockManager := transaction.NewLockManager()
	bufferPool := storage.NewBufferPool(cfg.BufferPoolPages, cat, lockManager)
	cat.SetPageFetcher(bufferPool)

	logging.WithComponent("godb").Info("database opened",
		"data_dir", cfg.DataDir, "buffer_pool_pages", cfg.BufferPoolPages, "tables", len(cat.TableNames()))
	return &GoDB{
		Catalog:            cat,
		BufferPool:         bufferPool,
		TransactionManager: transaction.NewTransactionManager(bufferPool),
		LockManager:        lockManager,
	}, nil
}

// Begin starts a transaction and returns the context operators run under.
func (db *GoDB) Begin() (*execution.ExecutorContext, error) {
	txn, err := db.TransactionManager.Begin()
	if err != nil {
		return nil, err
	}
	return execution.NewExecutorContext(txn, db.BufferPool), nil
}

// Update runs fn in a new transaction. The transaction commits if fn succeeds and aborts otherwise.
func (db *GoDB) Update(fn func(ctx *execution.ExecutorContext) error) error {
	ctx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		if abortErr := db.TransactionManager.Abort(ctx.GetTransaction()); abortErr != nil {
			return errors.Join(err, abortErr)
		}
		return err
	}
	return db.TransactionManager.Commit(ctx.GetTransaction())
}

// Table returns the heap file backing the named table.
func (db *GoDB) Table(name string) (*storage.HeapFile, error) {
	oid, err := db.Catalog.GetTableID(name)
	if err != nil {
		return nil, err
	}
	return db.Catalog.GetHeapFile(oid)
}

// Collect opens op under ctx, drains it and closes it.
func Collect(ctx *execution.ExecutorContext, op execution.Operator) ([]storage.Tuple, error) {
	if err := op.Open(ctx); err != nil {
		return nil, err
	}
	var out []storage.Tuple
	for op.Next() {
		out = append(out, op.Current())
	}
	return out, errors.Join(op.Error(), op.Close())
}

// Close syncs and closes every table file. Pages of transactions still running are not written.
func (db *GoDB) Close() error {
	if active := db.TransactionManager.ActiveTransactions(); len(active) > 0 {
		logging.WithComponent("godb").Warn("closing with running transactions", "count", len(active))
	}
	err := db.Catalog.Close()
	return errors.Join(err, logging.Close())
}
