package storage

import (
	"sync"

	"github.com/mspronesti/simpledb/common"
)

// HeapPage Layout:
// slot bitmap (ceil(N/8) bytes) | N fixed-width slots | zero padding
//
// N is the largest slot count for which N records plus N header bits fit in PageSize bytes. A page holds its
// serialized bytes and decodes records on access, so PageData never needs to re-encode anything.
type HeapPage struct {
	pid      common.PageID
	desc     *TupleDesc
	numSlots int
	header   Bitmap
	rowStart int

	// PageLatch protects bytes and the dirty state from concurrent access.
	PageLatch sync.RWMutex
	bytes     [common.PageSize]byte
	dirty     bool
	dirtier   common.TransactionID
}

// NumSlotsFor returns the number of records of the given schema that fit in one page.
func NumSlotsFor(desc *TupleDesc) int {
	return (common.PageSize * 8) / (desc.BytesPerTuple()*8 + 1)
}

// headerSizeFor returns the size in bytes of the slot bitmap of a page with numSlots slots.
func headerSizeFor(numSlots int) int {
	return common.CeilDiv(numSlots, 8)
}

// EmptyPageData returns the serialized form of a page with every slot empty.
func EmptyPageData() []byte {
	return make([]byte, common.PageSize)
}

// NewHeapPage builds a page of the given schema from its serialized bytes. data is copied.
func NewHeapPage(pid common.PageID, desc *TupleDesc, data []byte) (*HeapPage, error) {
	if len(data) != common.PageSize {
		return nil, common.NewError(common.StorageError, "%s: expected %d bytes of page data, got %d",
			pid, common.PageSize, len(data))
	}
	numSlots := NumSlotsFor(desc)
	hp := &HeapPage{
		pid:      pid,
		desc:     desc,
		numSlots: numSlots,
		rowStart: headerSizeFor(numSlots),
	}
	copy(hp.bytes[:], data)
	hp.header = AsBitmap(hp.bytes[:hp.rowStart], numSlots)
	return hp, nil
}

// ID returns the PageID of the page.
func (hp *HeapPage) ID() common.PageID {
	return hp.pid
}

// Desc returns the schema of records on the page.
func (hp *HeapPage) Desc() *TupleDesc {
	return hp.desc
}

func (hp *HeapPage) NumSlots() int {
	return hp.numSlots
}

func (hp *HeapPage) NumEmptySlots() int {
	hp.PageLatch.RLock()
	defer hp.PageLatch.RUnlock()
	return hp.numSlots - hp.header.CountOnes()
}

// IsSlotUsed reports whether slot i holds a record. Out-of-range slots are reported unused.
func (hp *HeapPage) IsSlotUsed(i int) bool {
	if i < 0 || i >= hp.numSlots {
		return false
	}
	hp.PageLatch.RLock()
	defer hp.PageLatch.RUnlock()
	return hp.header.LoadBit(i)
}

func (hp *HeapPage) slotBytes(slot int) []byte {
	rowSize := hp.desc.BytesPerTuple()
	start := hp.rowStart + slot*rowSize
	return hp.bytes[start : start+rowSize]
}

// InsertTuple stores t in the lowest empty slot and sets t's RecordID to that slot.
func (hp *HeapPage) InsertTuple(t *Tuple) error {
	if !t.conformsTo(hp.desc) || (t.Desc() != nil && !t.Desc().Equals(hp.desc)) {
		return common.NewError(common.StorageError, "cannot insert (%s) into %s with schema (%s)", t, hp.pid, hp.desc)
	}

	hp.PageLatch.Lock()
	defer hp.PageLatch.Unlock()
	slot := hp.header.FindFirstZero(0)
	if slot == -1 {
		return common.NewError(common.PageFullError, "%s has no empty slots", hp.pid)
	}
	t.writeTo(hp.slotBytes(slot))
	hp.header.SetBit(slot, true)
	t.SetRID(common.RecordID{PageID: hp.pid, Slot: int32(slot)})
	return nil
}

// DeleteTuple frees the slot referenced by t's RecordID. The slot must be occupied by a record equal to t.
func (hp *HeapPage) DeleteTuple(t *Tuple) error {
	rid := t.RID()
	if rid.PageID != hp.pid {
		return common.NewError(common.StorageError, "%s is not on %s", rid, hp.pid)
	}
	slot := int(rid.Slot)
	if slot < 0 || slot >= hp.numSlots {
		return common.NewError(common.StorageError, "%s: slot out of range [0, %d)", rid, hp.numSlots)
	}

	hp.PageLatch.Lock()
	defer hp.PageLatch.Unlock()
	if !hp.header.LoadBit(slot) {
		return common.NewError(common.StorageError, "%s: slot is already empty", rid)
	}
	stored := readTuple(hp.desc, hp.slotBytes(slot), rid)
	if !stored.Equals(t) {
		return common.NewError(common.StorageError, "%s holds (%s), not (%s)", rid, stored, t)
	}
	hp.header.SetBit(slot, false)
	return nil
}

// MarkDirty records whether the page has been modified since it was read, and by which transaction.
func (hp *HeapPage) MarkDirty(dirty bool, tid common.TransactionID) {
	hp.PageLatch.Lock()
	defer hp.PageLatch.Unlock()
	hp.dirty = dirty
	if dirty {
		hp.dirtier = tid
	} else {
		hp.dirtier = common.InvalidTransactionID
	}
}

// IsDirty returns the transaction that last dirtied the page, and whether the page is dirty at all.
func (hp *HeapPage) IsDirty() (common.TransactionID, bool) {
	hp.PageLatch.RLock()
	defer hp.PageLatch.RUnlock()
	return hp.dirtier, hp.dirty
}

// PageData returns a copy of the serialized page.
func (hp *HeapPage) PageData() []byte {
	hp.PageLatch.RLock()
	defer hp.PageLatch.RUnlock()
	data := make([]byte, common.PageSize)
	copy(data, hp.bytes[:])
	return data
}

// readSlot decodes the record in slot, reporting false if the slot is empty.
func (hp *HeapPage) readSlot(slot int) (Tuple, bool) {
	hp.PageLatch.RLock()
	defer hp.PageLatch.RUnlock()
	if !hp.header.LoadBit(slot) {
		return Tuple{}, false
	}
	rid := common.RecordID{PageID: hp.pid, Slot: int32(slot)}
	return readTuple(hp.desc, hp.slotBytes(slot), rid), true
}

// Iterator returns an iterator over the records on the page in increasing slot order.
func (hp *HeapPage) Iterator() *PageIterator {
	hp.PageLatch.RLock()
	defer hp.PageLatch.RUnlock()
	slots := make([]int, 0, hp.numSlots)
	for i := 0; i < hp.numSlots; i++ {
		if hp.header.LoadBit(i) {
			slots = append(slots, i)
		}
	}
	it := &PageIterator{page: hp, slots: slots}
	it.advance()
	return it
}

// PageIterator walks the slots that were occupied when it was created. Records are decoded only when reached,
// and slots freed in the meantime are skipped.
type PageIterator struct {
	page    *HeapPage
	slots   []int
	pos     int
	current Tuple
	ok      bool
}

func (it *PageIterator) advance() {
	it.ok = false
	for it.pos < len(it.slots) {
		slot := it.slots[it.pos]
		it.pos++
		if t, used := it.page.readSlot(slot); used {
			it.current, it.ok = t, true
			return
		}
	}
}

// HasNext reports whether Next will return a record.
func (it *PageIterator) HasNext() bool {
	return it.ok
}

// Next returns the next record.
func (it *PageIterator) Next() (Tuple, error) {
	if !it.ok {
		return Tuple{}, common.NewError(common.NoSuchElementError, "no more records on %s", it.page.pid)
	}
	t := it.current
	it.advance()
	return t, nil
}

// Rewind restarts the iterator at the first slot of its snapshot.
func (it *PageIterator) Rewind() {
	it.pos = 0
	it.advance()
}
