package transaction

import (
	"fmt"
	"sync"

	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/logging"
	"github.com/puzpuzpuz/xsync/v3"
)

// LockMode represents the type of access a transaction is requesting on a page.
type LockMode int

const (
	// LockModeS (Shared) allows reading a page. Multiple transactions can hold S locks simultaneously.
	LockModeS LockMode = iota
	// LockModeX (Exclusive) allows modification. It is incompatible with all other modes.
	LockModeX
)

func (m LockMode) String() string {
	switch m {
	case LockModeS:
		return "LockModeS"
	case LockModeX:
		return "LockModeX"
	}
	return "Unknown lock mode"
}

// LockModeFor maps the permissions a page is requested with to the lock protecting that access.
func LockModeFor(perm common.Permissions) LockMode {
	if perm == common.ReadWrite {
		return LockModeX
	}
	return LockModeS
}

// Compatible reports whether a lock in mode req can be granted while another transaction holds mode held.
func Compatible(req, held LockMode) bool {
	return req == LockModeS && held == LockModeS
}

// CoveredBy returns true if the 'held' lock is strong enough to satisfy the 'req' lock.
func CoveredBy(req, held LockMode) bool {
	return held == LockModeX || req == held
}

type lockHolder struct {
	txnID common.TransactionID
	mode  LockMode
}

type lockRequest struct {
	lockHolder
	// index of the requester in holders when upgrading, -1 otherwise
	selfIdx int
	granted bool
	cond    *sync.Cond
}

// pageLock is the lock table entry of one page. All fields are protected by mutex.
type pageLock struct {
	pid        common.PageID
	heldCounts [2]int
	holders    []lockHolder
	waiters    []*lockRequest
	upgraders  []*lockRequest

	mutex sync.Mutex
}

func (l *pageLock) initialize(pid common.PageID) {
	l.pid = pid
	l.heldCounts = [2]int{}
	l.holders = l.holders[:0]
	l.waiters = l.waiters[:0]
	l.upgraders = l.upgraders[:0]
}

func (l *pageLock) invalidate() {
	l.pid = common.PageID{}
}

func (l *pageLock) outOfScope() bool {
	if len(l.waiters) != 0 || len(l.upgraders) != 0 {
		return false
	}
	for _, h := range l.holders {
		if h.txnID != common.InvalidTransactionID {
			return false
		}
	}
	return true
}

func (l *pageLock) grant(request *lockRequest) {
	if request.selfIdx != -1 {
		l.heldCounts[l.holders[request.selfIdx].mode]--
		l.holders[request.selfIdx].mode = request.mode
	} else {
		slot := -1
		for i := range l.holders {
			if l.holders[i].txnID == common.InvalidTransactionID {
				slot = i
				break
			}
		}
		if slot != -1 {
			l.holders[slot] = request.lockHolder
			request.selfIdx = slot
		} else {
			request.selfIdx = len(l.holders)
			l.holders = append(l.holders, request.lockHolder)
		}
	}
	l.heldCounts[request.mode]++
	request.granted = true
	if request.cond != nil {
		request.cond.Signal()
	}
}

func (l *pageLock) canGrant(r *lockRequest) bool {
	for m, c := range l.heldCounts {
		if c == 0 || Compatible(r.mode, LockMode(m)) {
			continue
		}
		// The only conflicting holder may be the upgrading transaction itself
		if r.selfIdx != -1 && c == 1 && l.holders[r.selfIdx].mode == LockMode(m) {
			continue
		}
		return false
	}
	return true
}

func deadlock(txnID, other common.TransactionID, pid common.PageID, role string) error {
	return common.GoDBError{
		Code:      common.DeadlockError,
		ErrString: fmt.Sprintf("deadlock (wait-die) on %s: txn %d aborting for %s %d", pid, txnID, role, other),
	}
}

// lock implements wait-die: a transaction may only wait for transactions younger (larger id) than itself. A
// conflict with an older transaction aborts the requester.
func (l *pageLock) lock(txnID common.TransactionID, mode LockMode) error {
	selfIdx := -1
	blocked := false

	for i, h := range l.holders {
		if h.txnID == common.InvalidTransactionID {
			continue
		} else if h.txnID == txnID {
			selfIdx = i
		} else if !Compatible(mode, h.mode) {
			if txnID > h.txnID {
				return deadlock(txnID, h.txnID, l.pid, "holder")
			}
			blocked = true
		}
	}

	for _, u := range l.upgraders {
		common.Assert(u.txnID != txnID, "txn %d requested a lock while its upgrade is pending", txnID)
		if !Compatible(mode, u.mode) {
			if txnID > u.txnID {
				return deadlock(txnID, u.txnID, l.pid, "waiter")
			}
			blocked = true
		}
	}

	// Upgrades jump the wait queue because the upgrader already holds the page
	if selfIdx == -1 {
		for _, w := range l.waiters {
			common.Assert(w.txnID != txnID, "txn %d requested a lock while already waiting", txnID)
			if txnID > w.txnID && !Compatible(mode, w.mode) {
				return deadlock(txnID, w.txnID, l.pid, "waiter")
			}
			blocked = true
		}
	}

	request := &lockRequest{
		lockHolder: lockHolder{txnID: txnID, mode: mode},
		selfIdx:    selfIdx,
	}
	if !blocked {
		l.grant(request)
		return nil
	}

	request.cond = sync.NewCond(&l.mutex)
	if selfIdx == -1 {
		l.waiters = append(l.waiters, request)
	} else {
		l.upgraders = append(l.upgraders, request)
	}
	for !request.granted {
		request.cond.Wait()
	}
	return nil
}

func (l *pageLock) unlock(tid common.TransactionID) {
	for i, h := range l.holders {
		if h.txnID == tid {
			l.heldCounts[h.mode]--
			l.holders[i].txnID = common.InvalidTransactionID
			break
		}
	}

	i := 0
	for i < len(l.upgraders) && l.canGrant(l.upgraders[i]) {
		l.grant(l.upgraders[i])
		l.upgraders[i] = nil
		i++
	}
	l.upgraders = l.upgraders[i:]
	if len(l.upgraders) != 0 {
		return
	}

	i = 0
	for i < len(l.waiters) && l.canGrant(l.waiters[i]) {
		l.grant(l.waiters[i])
		l.waiters[i] = nil
		i++
	}
	l.waiters = l.waiters[i:]
}

// heldLocks is the set of pages a transaction holds locks on.
type heldLocks struct {
	sync.Mutex
	pages map[common.PageID]LockMode
}

// LockManager grants shared and exclusive page locks to transactions. Locks are held until the transaction
// releases them (strict two-phase locking); deadlocks are prevented with wait-die.
type LockManager struct {
	lockTable *xsync.MapOf[common.PageID, *pageLock]
	lockPool  sync.Pool
	held      *xsync.MapOf[common.TransactionID, *heldLocks]
}

// NewLockManager initializes a new LockManager.
func NewLockManager() *LockManager {
	return &LockManager{
		lockTable: xsync.NewMapOf[common.PageID, *pageLock](),
		lockPool: sync.Pool{
			New: func() any {
				return &pageLock{
					holders:   make([]lockHolder, 0, 8),
					waiters:   make([]*lockRequest, 0, 8),
					upgraders: make([]*lockRequest, 0, 2),
				}
			},
		},
		held: xsync.NewMapOf[common.TransactionID, *heldLocks](),
	}
}

func (lm *LockManager) heldBy(tid common.TransactionID) *heldLocks {
	h, _ := lm.held.LoadOrCompute(tid, func() *heldLocks {
		return &heldLocks{pages: make(map[common.PageID]LockMode)}
	})
	return h
}

// HeldMode returns the mode tid holds pid in, if any.
func (lm *LockManager) HeldMode(tid common.TransactionID, pid common.PageID) (LockMode, bool) {
	h, ok := lm.held.Load(tid)
	if !ok {
		return 0, false
	}
	h.Lock()
	defer h.Unlock()
	mode, ok := h.pages[pid]
	return mode, ok
}

// HoldsLock reports whether tid holds any lock on pid.
func (lm *LockManager) HoldsLock(tid common.TransactionID, pid common.PageID) bool {
	_, ok := lm.HeldMode(tid, pid)
	return ok
}

// Lock acquires a lock on a page with the requested mode, upgrading a shared lock the transaction already holds
// if needed. If the lock cannot be acquired immediately, the transaction blocks until it is granted. It returns
// nil if the lock is held on return, or GoDBError(DeadlockError) if the transaction must abort instead.
func (lm *LockManager) Lock(tid common.TransactionID, pid common.PageID, mode LockMode) error {
	if held, ok := lm.HeldMode(tid, pid); ok && CoveredBy(mode, held) {
		return nil
	}

	for {
		lock, ok := lm.lockTable.Load(pid)
		if !ok {
			newLock := lm.lockPool.Get().(*pageLock)
			newLock.mutex.Lock()
			newLock.initialize(pid)
			actualLock, loaded := lm.lockTable.LoadOrStore(pid, newLock)
			if loaded {
				newLock.invalidate()
				newLock.mutex.Unlock()
				lm.lockPool.Put(newLock)
				lock = actualLock
				lock.mutex.Lock()
			} else {
				lock = newLock
			}
		} else {
			lock.mutex.Lock()
		}

		// The entry may have been recycled between Load and Lock
		if lock.pid != pid {
			lock.mutex.Unlock()
			continue
		}

		err := lock.lock(tid, mode)
		if err == nil {
			h := lm.heldBy(tid)
			h.Lock()
			h.pages[pid] = mode
			h.Unlock()
		} else {
			logging.WithPage(pid).Debug("lock request aborted", "tx_id", uint64(tid), "mode", mode.String())
		}
		lm.releaseIfUnused(pid, lock)
		lock.mutex.Unlock()
		return err
	}
}

// releaseIfUnused drops an empty lock entry from the table. lock.mutex must be held.
func (lm *LockManager) releaseIfUnused(pid common.PageID, lock *pageLock) {
	if lock.outOfScope() {
		lock.invalidate()
		lm.lockTable.Delete(pid)
		lm.lockPool.Put(lock)
	}
}

// Unlock releases the lock held by the transaction on the given page. Releasing a lock before the transaction
// ends gives up strict two-phase locking and is only safe for pages the transaction did not modify.
func (lm *LockManager) Unlock(tid common.TransactionID, pid common.PageID) {
	if h, ok := lm.held.Load(tid); ok {
		h.Lock()
		delete(h.pages, pid)
		h.Unlock()
	}

	lock, ok := lm.lockTable.Load(pid)
	if !ok {
		return
	}
	lock.mutex.Lock()
	defer lock.mutex.Unlock()
	if lock.pid != pid {
		return
	}
	lock.unlock(tid)
	lm.releaseIfUnused(pid, lock)
}

// ReleaseAll releases every lock held by tid. It is called when the transaction commits or aborts.
func (lm *LockManager) ReleaseAll(tid common.TransactionID) {
	h, ok := lm.held.LoadAndDelete(tid)
	if !ok {
		return
	}
	h.Lock()
	pages := make([]common.PageID, 0, len(h.pages))
	for pid := range h.pages {
		pages = append(pages, pid)
	}
	h.Unlock()
	for _, pid := range pages {
		lm.Unlock(tid, pid)
	}
}

// LockHeld checks if any transaction currently holds a lock on the given page.
func (lm *LockManager) LockHeld(pid common.PageID) bool {
	lock, ok := lm.lockTable.Load(pid)
	if !ok {
		return false
	}
	lock.mutex.Lock()
	defer lock.mutex.Unlock()
	if lock.pid != pid {
		return false
	}
	return lock.heldCounts[LockModeS]+lock.heldCounts[LockModeX] > 0
}
