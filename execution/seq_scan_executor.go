package execution

import (
	"github.com/mspronesti/simpledb/storage"
)

// SeqScan implements a sequential scan over a table, in page and slot order. Output field names are prefixed
// with the table alias ("alias.field"), so the same table can be scanned twice in one query.
type SeqScan struct {
	file  storage.DBFile
	alias string
	desc  *storage.TupleDesc

	// Runtime state
	iterator *storage.HeapFileIterator
	current  storage.Tuple
	err      error
}

// NewSeqScan creates a scan over file. An empty alias leaves field names unchanged.
func NewSeqScan(file storage.DBFile, alias string) *SeqScan {
	tableDesc := file.TupleDesc()
	desc := tableDesc
	if alias != "" {
		names := make([]string, tableDesc.NumFields())
		for i := range names {
			names[i] = alias + "." + tableDesc.FieldName(i)
		}
		desc = storage.NewTupleDesc(tableDesc.FieldTypes(), names)
	}
	return &SeqScan{file: file, alias: alias, desc: desc}
}

// TableAlias returns the alias field names are prefixed with.
func (e *SeqScan) TableAlias() string {
	return e.alias
}

func (e *SeqScan) Descriptor() *storage.TupleDesc {
	return e.desc
}

// Open starts a new scan; an already open scan is restarted.
func (e *SeqScan) Open(ctx *ExecutorContext) error {
	if e.iterator != nil {
		_ = e.iterator.Close()
	}
	e.err = nil
	e.iterator = e.file.Iterator(ctx.TID())
	if err := e.iterator.Open(); err != nil {
		e.iterator = nil
		return err
	}
	return nil
}

func (e *SeqScan) Next() bool {
	if e.iterator == nil {
		e.err = notOpen("seq scan")
		return false
	}
	ok, err := e.iterator.HasNext()
	if err != nil {
		e.err = err
		return false
	}
	if !ok {
		return false
	}
	t, err := e.iterator.Next()
	if err != nil {
		e.err = err
		return false
	}
	e.current = storage.NewTuple(e.desc, t.Values()...)
	e.current.SetRID(t.RID())
	return true
}

func (e *SeqScan) Current() storage.Tuple {
	return e.current
}

func (e *SeqScan) Error() error {
	return e.err
}

func (e *SeqScan) Rewind() error {
	if e.iterator == nil {
		return notOpen("seq scan")
	}
	e.err = nil
	return e.iterator.Rewind()
}

func (e *SeqScan) Close() error {
	if e.iterator == nil {
		return nil
	}
	err := e.iterator.Close()
	e.iterator = nil
	return err
}
