package storage

import (
	"fmt"
	"sync"

	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/logging"
	"github.com/mspronesti/simpledb/transaction"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tidwall/btree"
	"golang.org/x/sync/errgroup"
)

// DefaultPages is the buffer pool capacity used when none is configured.
const DefaultPages = 50

func pageIDLess(a, b common.PageID) bool {
	if a.Oid != b.Oid {
		return a.Oid < b.Oid
	}
	return a.PageNum < b.PageNum
}

// BufferPool caches pages read from heap files and is the only way the rest of the system reaches a page.
// GetPage takes the page lock implied by the requested permissions before returning the page, so page-level
// strict two-phase locking falls out of using the pool.
//
// The pool never writes a page dirtied by a running transaction (no steal): eviction only picks clean pages,
// and dirty pages reach disk when their transaction commits. On abort they are dropped from the cache so the
// next reader gets the on-disk version back.
type BufferPool struct {
	numPages    int
	files       DBFileManager
	lockManager *transaction.LockManager
	pageTable   *xsync.MapOf[common.PageID, *HeapPage]
	// loadMu serializes cache misses, so capacity checks and the evictions they trigger do not interleave
	loadMu sync.Mutex

	dirtyMu sync.Mutex
	// dirtyPages holds, per transaction, the pages it dirtied, ordered by (table, page number)
	dirtyPages map[common.TransactionID]*btree.BTreeG[common.PageID]
}

// NewBufferPool creates a new BufferPool caching at most numPages pages. Pages are read from and written to the
// files resolved by files, and locked through lockManager.
func NewBufferPool(numPages int, files DBFileManager, lockManager *transaction.LockManager) *BufferPool {
	common.Assert(numPages > 0, "buffer pool needs room for at least one page")
	return &BufferPool{
		numPages:    numPages,
		files:       files,
		lockManager: lockManager,
		pageTable:   xsync.NewMapOf[common.PageID, *HeapPage](),
		dirtyPages:  make(map[common.TransactionID]*btree.BTreeG[common.PageID]),
	}
}

// LockManager returns the lock manager pages are locked through.
func (bp *BufferPool) LockManager() *transaction.LockManager {
	return bp.lockManager
}

// Capacity returns the maximum number of cached pages.
func (bp *BufferPool) Capacity() int {
	return bp.numPages
}

// NumCached returns the number of pages currently cached.
func (bp *BufferPool) NumCached() int {
	return bp.pageTable.Size()
}

// Contains reports whether pid is cached.
func (bp *BufferPool) Contains(pid common.PageID) bool {
	_, ok := bp.pageTable.Load(pid)
	return ok
}

// GetPage retrieves a page on behalf of tid with the given permissions. It first acquires a shared lock for
// ReadOnly or an exclusive lock for ReadWrite, blocking while another transaction holds a conflicting lock, and
// failing with DeadlockError if waiting could deadlock. If the page is cached, the cached page is returned;
// otherwise it is read from its file, evicting a clean page if the pool is full.
func (bp *BufferPool) GetPage(tid common.TransactionID, pid common.PageID, perm common.Permissions) (*HeapPage, error) {
	if err := bp.lockManager.Lock(tid, pid, transaction.LockModeFor(perm)); err != nil {
		return nil, err
	}
	if page, ok := bp.pageTable.Load(pid); ok {
		return page, nil
	}

	bp.loadMu.Lock()
	defer bp.loadMu.Unlock()
	// Another miss on the same page may have loaded it while we waited
	if page, ok := bp.pageTable.Load(pid); ok {
		return page, nil
	}

	file, err := bp.files.GetDBFile(pid.Oid)
	if err != nil {
		return nil, err
	}
	if bp.pageTable.Size() >= bp.numPages {
		if err := bp.evictPage(); err != nil {
			return nil, err
		}
	}
	page, err := file.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	bp.pageTable.Store(pid, page)
	logging.GetLogger().Debug("page fetched", "table_id", uint32(pid.Oid), "page", pid.PageNum, "tx_id", uint64(tid), "perm", perm.String())
	return page, nil
}

// evictPage drops one clean page from the cache. Dirty pages are never chosen.
func (bp *BufferPool) evictPage() error {
	victim := common.PageID{}
	bp.pageTable.Range(func(pid common.PageID, page *HeapPage) bool {
		if _, dirty := page.IsDirty(); !dirty {
			victim = pid
			return false
		}
		return true
	})
	if victim.IsNil() {
		return common.NewError(common.BufferFullError, "all %d cached pages are dirty", bp.pageTable.Size())
	}
	bp.pageTable.Delete(victim)
	logging.GetLogger().Debug("page evicted", "table_id", uint32(victim.Oid), "page", victim.PageNum)
	return nil
}

// markDirty records that tid modified page. The page is put back in the cache in case it was evicted between
// being fetched and being modified.
func (bp *BufferPool) markDirty(tid common.TransactionID, page *HeapPage) {
	page.MarkDirty(true, tid)
	bp.pageTable.Store(page.ID(), page)

	bp.dirtyMu.Lock()
	defer bp.dirtyMu.Unlock()
	pages, ok := bp.dirtyPages[tid]
	if !ok {
		pages = btree.NewBTreeG(pageIDLess)
		bp.dirtyPages[tid] = pages
	}
	pages.Set(page.ID())
}

// InsertTuple adds t to the table tableID on behalf of tid. The pages modified by the insert are marked dirty
// and stay cached until the transaction completes.
func (bp *BufferPool) InsertTuple(tid common.TransactionID, tableID common.ObjectID, t *Tuple) error {
	file, err := bp.files.GetDBFile(tableID)
	if err != nil {
		return err
	}
	pages, err := file.InsertTuple(tid, t)
	if err != nil {
		return err
	}
	for _, page := range pages {
		bp.markDirty(tid, page)
	}
	return nil
}

// DeleteTuple removes t, located by its RecordID, from its table on behalf of tid.
func (bp *BufferPool) DeleteTuple(tid common.TransactionID, t *Tuple) error {
	rid := t.RID()
	if rid.IsNil() {
		return common.NewError(common.StorageError, "cannot delete (%s): it is not stored in any table", t)
	}
	file, err := bp.files.GetDBFile(rid.Oid)
	if err != nil {
		return err
	}
	pages, err := file.DeleteTuple(tid, t)
	if err != nil {
		return err
	}
	for _, page := range pages {
		bp.markDirty(tid, page)
	}
	return nil
}

// flushPage writes pid to disk if it is cached and dirty.
func (bp *BufferPool) flushPage(pid common.PageID) error {
	page, ok := bp.pageTable.Load(pid)
	if !ok {
		return nil
	}
	if _, dirty := page.IsDirty(); !dirty {
		return nil
	}
	file, err := bp.files.GetDBFile(pid.Oid)
	if err != nil {
		return err
	}
	if err := file.WritePage(page); err != nil {
		return err
	}
	page.MarkDirty(false, common.InvalidTransactionID)
	logging.GetLogger().Debug("page flushed", "table_id", uint32(pid.Oid), "page", pid.PageNum)
	return nil
}

// FlushAllPages writes every dirty cached page to disk, whichever transaction dirtied it. Each table is flushed
// by its own goroutine, in page order. This breaks no-steal for running transactions and is meant for
// shutdown and tests.
func (bp *BufferPool) FlushAllPages() error {
	byTable := make(map[common.ObjectID]*btree.BTreeG[common.PageID])
	bp.pageTable.Range(func(pid common.PageID, page *HeapPage) bool {
		if _, dirty := page.IsDirty(); dirty {
			pages, ok := byTable[pid.Oid]
			if !ok {
				pages = btree.NewBTreeG(pageIDLess)
				byTable[pid.Oid] = pages
			}
			pages.Set(pid)
		}
		return true
	})

	var g errgroup.Group
	for _, pages := range byTable {
		pages := pages
		g.Go(func() error {
			var err error
			pages.Scan(func(pid common.PageID) bool {
				err = bp.flushPage(pid)
				return err == nil
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("flushing buffer pool: %w", err)
	}
	return nil
}

// takeDirtyPages removes and returns the pages dirtied by tid, in (table, page number) order.
func (bp *BufferPool) takeDirtyPages(tid common.TransactionID) []common.PageID {
	bp.dirtyMu.Lock()
	defer bp.dirtyMu.Unlock()
	pages, ok := bp.dirtyPages[tid]
	if !ok {
		return nil
	}
	delete(bp.dirtyPages, tid)
	return pages.Items()
}

// FlushPages writes all pages dirtied by tid to disk.
func (bp *BufferPool) FlushPages(tid common.TransactionID) error {
	bp.dirtyMu.Lock()
	var pids []common.PageID
	if pages, ok := bp.dirtyPages[tid]; ok {
		pids = pages.Items()
	}
	bp.dirtyMu.Unlock()

	for _, pid := range pids {
		if err := bp.flushPage(pid); err != nil {
			return err
		}
	}
	return nil
}

// TransactionComplete ends tid in the cache. On commit the pages it dirtied are written to disk; on abort they
// are dropped so later readers see the on-disk version. In both cases every lock tid holds is released. If a
// commit cannot write its pages, the error is returned and tid keeps its locks, so the caller can abort it.
func (bp *BufferPool) TransactionComplete(tid common.TransactionID, commit bool) error {
	if commit {
		if err := bp.FlushPages(tid); err != nil {
			return err
		}
		bp.takeDirtyPages(tid)
	} else {
		for _, pid := range bp.takeDirtyPages(tid) {
			bp.DiscardPage(pid)
		}
	}
	bp.lockManager.ReleaseAll(tid)
	return nil
}

// DiscardPage removes pid from the cache without writing it.
func (bp *BufferPool) DiscardPage(pid common.PageID) {
	bp.pageTable.Delete(pid)
}
