package execution

import (
	"github.com/mspronesti/simpledb/storage"
)

// TupleIterator is an Operator over a fixed slice of tuples. Aggregate serves its results through one, and it
// is a convenient leaf for feeding tuples into other operators.
type TupleIterator struct {
	desc   *storage.TupleDesc
	tuples []storage.Tuple

	open bool
	pos  int
	err  error
}

func NewTupleIterator(desc *storage.TupleDesc, tuples []storage.Tuple) *TupleIterator {
	return &TupleIterator{desc: desc, tuples: tuples}
}

func (it *TupleIterator) Descriptor() *storage.TupleDesc {
	return it.desc
}

// Open does not use ctx, which may be nil.
func (it *TupleIterator) Open(*ExecutorContext) error {
	it.open = true
	it.pos = -1
	it.err = nil
	return nil
}

func (it *TupleIterator) Next() bool {
	if !it.open {
		it.err = notOpen("tuple iterator")
		return false
	}
	if it.pos+1 >= len(it.tuples) {
		it.pos = len(it.tuples)
		return false
	}
	it.pos++
	return true
}

// Current returns the tuple Next moved to, or the zero Tuple when Next has not produced one.
func (it *TupleIterator) Current() storage.Tuple {
	if !it.open || it.pos < 0 || it.pos >= len(it.tuples) {
		return storage.Tuple{}
	}
	return it.tuples[it.pos]
}

func (it *TupleIterator) Error() error {
	return it.err
}

func (it *TupleIterator) Rewind() error {
	if !it.open {
		return notOpen("tuple iterator")
	}
	it.pos = -1
	return nil
}

func (it *TupleIterator) Close() error {
	it.open = false
	return nil
}

// Len returns the number of tuples the iterator serves.
func (it *TupleIterator) Len() int {
	return len(it.tuples)
}
