package storage

import (
	"github.com/mspronesti/simpledb/common"
)

// DBFile abstracts the physical file on storage that stores a table.
// It handles page-level reads and writes, as well as the placement of tuples on pages.
//
// ReadPage and WritePage perform raw I/O and bypass the buffer pool; everything else reaches pages through a
// PageFetcher so that page locks are taken. Implementations should be safe for concurrent use.
type DBFile interface {
	// ID returns the table id. Every page of the file carries it in its PageID.
	ID() common.ObjectID
	// TupleDesc returns the schema of the tuples stored in the file.
	TupleDesc() *TupleDesc
	// ReadPage reads the page identified by pid from disk.
	ReadPage(pid common.PageID) (*HeapPage, error)
	// WritePage writes page to its position in the file. It may be used to append the page right after
	// the current last page, but not to leave holes.
	WritePage(page *HeapPage) error
	// NumPages returns the number of pages in the file.
	NumPages() (int, error)
	// InsertTuple places t on some page of the file on behalf of tid and returns the modified pages.
	InsertTuple(tid common.TransactionID, t *Tuple) ([]*HeapPage, error)
	// DeleteTuple removes t, located by its RecordID, on behalf of tid and returns the modified pages.
	DeleteTuple(tid common.TransactionID, t *Tuple) ([]*HeapPage, error)
	// Iterator returns a scan over every tuple in the file, read on behalf of tid.
	Iterator(tid common.TransactionID) *HeapFileIterator
	// Sync forces any buffered writes to stable storage.
	Sync() error
	// Close closes the underlying file handle and releases resources.
	Close() error
}

// DBFileManager resolves table ids to open files. The catalog is the DBFileManager of a running database.
type DBFileManager interface {
	// GetDBFile retrieves the DBFile for the given table ObjectID, or NoSuchObjectError.
	GetDBFile(oid common.ObjectID) (DBFile, error)
}

// PageFetcher hands out cached pages under the page lock implied by perm. BufferPool implements it; heap files
// receive one at construction.
type PageFetcher interface {
	GetPage(tid common.TransactionID, pid common.PageID, perm common.Permissions) (*HeapPage, error)
}
