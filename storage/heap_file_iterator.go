package storage

import (
	"github.com/mspronesti/simpledb/common"
)

type iteratorState int

const (
	iteratorUnopened iteratorState = iota
	iteratorOpen
	iteratorExhausted
)

// HeapFileIterator scans every tuple of a heap file, page by page in increasing page order and slot by slot
// within a page. Pages are fetched ReadOnly through the PageFetcher, one at a time and only when the scan
// reaches them. The scan covers the pages the file had when it was opened or last rewound; pages appended
// afterwards are not visited.
//
// The iterator is a small state machine: unopened -> open -> exhausted, and Close returns it to unopened from
// either state. HasNext never consumes a tuple, so it may be called any number of times between Next calls.
type HeapFileIterator struct {
	file    DBFile
	fetcher PageFetcher
	tid     common.TransactionID

	state    iteratorState
	numPages int
	pageNum  int
	pageIt   *PageIterator
}

// NewHeapFileIterator creates an unopened iterator over file.
func NewHeapFileIterator(file DBFile, fetcher PageFetcher, tid common.TransactionID) *HeapFileIterator {
	return &HeapFileIterator{file: file, fetcher: fetcher, tid: tid}
}

func (it *HeapFileIterator) reset() {
	it.numPages = 0
	it.pageNum = -1
	it.pageIt = nil
}

// start fixes the page count of the scan and fetches page 0, if there is one.
func (it *HeapFileIterator) start() error {
	it.reset()
	numPages, err := it.file.NumPages()
	if err != nil {
		return err
	}
	if numPages > 0 {
		page, err := it.fetcher.GetPage(it.tid, common.PageID{Oid: it.file.ID(), PageNum: 0}, common.ReadOnly)
		if err != nil {
			return err
		}
		it.pageNum = 0
		it.pageIt = page.Iterator()
	}
	it.numPages = numPages
	it.state = iteratorOpen
	return nil
}

// Open fetches the first page of the file and prepares the iterator to return its first tuple. Opening an open
// iterator is an error. If the first page cannot be fetched, the iterator stays unopened.
func (it *HeapFileIterator) Open() error {
	if it.state != iteratorUnopened {
		return common.NewError(common.ProtocolError, "iterator over table %d is already open", it.file.ID())
	}
	if err := it.start(); err != nil {
		it.reset()
		return err
	}
	return nil
}

// settle moves forward until the current page iterator has a tuple or every page has been visited.
func (it *HeapFileIterator) settle() error {
	for it.pageIt == nil || !it.pageIt.HasNext() {
		if it.pageNum+1 >= it.numPages {
			it.pageIt = nil
			it.state = iteratorExhausted
			return nil
		}
		pid := common.PageID{Oid: it.file.ID(), PageNum: int32(it.pageNum + 1)}
		page, err := it.fetcher.GetPage(it.tid, pid, common.ReadOnly)
		if err != nil {
			return err
		}
		it.pageNum++
		it.pageIt = page.Iterator()
	}
	return nil
}

// HasNext reports whether Next will return a tuple. An unopened iterator has no next tuple.
func (it *HeapFileIterator) HasNext() (bool, error) {
	if it.state != iteratorOpen {
		return false, nil
	}
	if err := it.settle(); err != nil {
		return false, err
	}
	return it.state == iteratorOpen, nil
}

// Next returns the next tuple in the file.
func (it *HeapFileIterator) Next() (Tuple, error) {
	if it.state == iteratorUnopened {
		return Tuple{}, common.NewError(common.ProtocolError, "iterator over table %d is not open", it.file.ID())
	}
	ok, err := it.HasNext()
	if err != nil {
		return Tuple{}, err
	}
	if !ok {
		return Tuple{}, common.NewError(common.NoSuchElementError, "iterator over table %d is exhausted", it.file.ID())
	}
	return it.pageIt.Next()
}

// Rewind restarts the scan at the first page, taking in pages appended since the last Open or Rewind.
// Rewinding an unopened iterator is an error.
func (it *HeapFileIterator) Rewind() error {
	if it.state == iteratorUnopened {
		return common.NewError(common.ProtocolError, "cannot rewind unopened iterator over table %d", it.file.ID())
	}
	if err := it.start(); err != nil {
		it.state = iteratorExhausted
		return err
	}
	return nil
}

// Close releases the current page and returns the iterator to the unopened state. Closing twice is harmless.
func (it *HeapFileIterator) Close() error {
	it.reset()
	it.state = iteratorUnopened
	return nil
}
