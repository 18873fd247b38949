package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/logging"
)

// HeapFile implements DBFile as an unordered collection of HeapPages stored back to back in a single OS file.
// Page i lives at byte offset i*PageSize, so the number of pages is always derived from the file length.
type HeapFile struct {
	file    *os.File
	path    string
	id      common.ObjectID
	desc    *TupleDesc
	fetcher PageFetcher
	// appendMu serializes file growth so two inserts cannot both append at the same page number
	appendMu sync.Mutex
}

// FileID derives the table id of the heap file at path from its absolute path. The id is never InvalidObjectID.
func FileID(path string) (common.ObjectID, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return common.InvalidObjectID, err
	}
	h := xxhash.Sum64String(abs)
	oid := common.ObjectID(uint32(h) ^ uint32(h>>32))
	if oid == common.InvalidObjectID {
		oid = 1
	}
	return oid, nil
}

// NewHeapFile opens (creating if needed) the heap file at path. Pages touched by InsertTuple, DeleteTuple and
// iterators are fetched through fetcher.
func NewHeapFile(path string, desc *TupleDesc, fetcher PageFetcher) (*HeapFile, error) {
	oid, err := FileID(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, common.NewError(common.StorageError, "opening heap file %s: %v", path, err)
	}
	return &HeapFile{
		file:    f,
		path:    path,
		id:      oid,
		desc:    desc,
		fetcher: fetcher,
	}, nil
}

func (f *HeapFile) ID() common.ObjectID {
	return f.id
}

func (f *HeapFile) TupleDesc() *TupleDesc {
	return f.desc
}

// Path returns the path the file was opened with.
func (f *HeapFile) Path() string {
	return f.path
}

// NumPages returns the number of whole pages currently in the file.
func (f *HeapFile) NumPages() (int, error) {
	stat, err := f.file.Stat()
	if err != nil {
		return 0, common.NewError(common.StorageError, "stat %s: %v", f.path, err)
	}
	return int(stat.Size() / int64(common.PageSize)), nil
}

// ReadPage reads the content of the page identified by pid. Returns StorageError if the page does not exist.
func (f *HeapFile) ReadPage(pid common.PageID) (*HeapPage, error) {
	if pid.Oid != f.id {
		return nil, common.NewError(common.StorageError, "%s does not belong to table %d", pid, f.id)
	}
	numPages, err := f.NumPages()
	if err != nil {
		return nil, err
	}
	if pid.PageNum < 0 || int(pid.PageNum) >= numPages {
		return nil, common.NewError(common.StorageError, "read out of bounds: %s does not exist (file has %d pages)",
			pid, numPages)
	}

	buf := make([]byte, common.PageSize)
	if _, err := f.file.ReadAt(buf, int64(pid.PageNum)*int64(common.PageSize)); err != nil {
		return nil, common.NewError(common.StorageError, "reading %s: %v", pid, err)
	}
	return NewHeapPage(pid, f.desc, buf)
}

// WritePage writes the page to its slot in the file. Returns StorageError if that would leave a gap.
func (f *HeapFile) WritePage(page *HeapPage) error {
	pid := page.ID()
	if pid.Oid != f.id {
		return common.NewError(common.StorageError, "%s does not belong to table %d", pid, f.id)
	}
	numPages, err := f.NumPages()
	if err != nil {
		return err
	}
	if pid.PageNum < 0 || int(pid.PageNum) > numPages {
		return common.NewError(common.StorageError, "write out of bounds: %s (file has %d pages)", pid, numPages)
	}
	if _, err := f.file.WriteAt(page.PageData(), int64(pid.PageNum)*int64(common.PageSize)); err != nil {
		return common.NewError(common.StorageError, "writing %s: %v", pid, err)
	}
	return nil
}

// appendEmptyPage writes a blank page at index pageNum, unless another insert has grown the file past
// pageNum already.
func (f *HeapFile) appendEmptyPage(pageNum int) error {
	f.appendMu.Lock()
	defer f.appendMu.Unlock()
	numPages, err := f.NumPages()
	if err != nil || numPages != pageNum {
		return err
	}
	pid := common.PageID{Oid: f.id, PageNum: int32(pageNum)}
	page, err := NewHeapPage(pid, f.desc, EmptyPageData())
	if err != nil {
		return err
	}
	if err := f.WritePage(page); err != nil {
		return err
	}
	logging.GetLogger().Debug("appended empty page", "table_id", uint32(pid.Oid), "page", pid.PageNum, "file", f.path)
	return nil
}

// InsertTuple places t on the first page with an empty slot, scanning pages in order and fetching each with
// ReadWrite permissions. If every page is full, a blank page is appended to the file and t goes there.
// Exactly one page is returned, already marked dirty by tid.
func (f *HeapFile) InsertTuple(tid common.TransactionID, t *Tuple) ([]*HeapPage, error) {
	if !t.conformsTo(f.desc) {
		return nil, common.NewError(common.StorageError, "cannot insert (%s) into %s with schema (%s)", t, f.path, f.desc)
	}

	start := 0
	for {
		numPages, err := f.NumPages()
		if err != nil {
			return nil, err
		}
		for pageNum := start; pageNum < numPages; pageNum++ {
			pid := common.PageID{Oid: f.id, PageNum: int32(pageNum)}
			page, err := f.fetcher.GetPage(tid, pid, common.ReadWrite)
			if err != nil {
				return nil, err
			}
			if page.NumEmptySlots() == 0 {
				continue
			}
			if err := page.InsertTuple(t); err != nil {
				return nil, err
			}
			page.MarkDirty(true, tid)
			return []*HeapPage{page}, nil
		}
		start = numPages
		if err := f.appendEmptyPage(numPages); err != nil {
			return nil, err
		}
	}
}

// DeleteTuple removes t from the page its RecordID points to, fetching that page with ReadWrite permissions.
func (f *HeapFile) DeleteTuple(tid common.TransactionID, t *Tuple) ([]*HeapPage, error) {
	rid := t.RID()
	if rid.IsNil() {
		return nil, common.NewError(common.StorageError, "cannot delete (%s): it is not stored in any table", t)
	}
	if rid.Oid != f.id {
		return nil, common.NewError(common.StorageError, "cannot delete %s from table %d", rid, f.id)
	}
	numPages, err := f.NumPages()
	if err != nil {
		return nil, err
	}
	if rid.PageNum < 0 || int(rid.PageNum) >= numPages {
		return nil, common.NewError(common.StorageError, "cannot delete %s: file has %d pages", rid, numPages)
	}

	page, err := f.fetcher.GetPage(tid, rid.PageID, common.ReadWrite)
	if err != nil {
		return nil, err
	}
	if err := page.DeleteTuple(t); err != nil {
		return nil, err
	}
	page.MarkDirty(true, tid)
	return []*HeapPage{page}, nil
}

// Iterator returns a scan over every tuple in the file, fetching pages ReadOnly on behalf of tid.
func (f *HeapFile) Iterator(tid common.TransactionID) *HeapFileIterator {
	return NewHeapFileIterator(f, f.fetcher, tid)
}

// Sync flushes writes to stable storage.
func (f *HeapFile) Sync() error {
	return f.file.Sync()
}

// Close closes the underlying OS file.
func (f *HeapFile) Close() error {
	return f.file.Close()
}

func (f *HeapFile) String() string {
	return fmt.Sprintf("HeapFile(%d, %s)", f.id, f.path)
}
