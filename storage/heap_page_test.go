package storage

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"testing"

	"github.com/mspronesti/simpledb/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intDesc(numFields int) *TupleDesc {
	types := make([]common.Type, numFields)
	names := make([]string, numFields)
	for i := range types {
		types[i] = common.IntType
		names[i] = fmt.Sprintf("f%d", i)
	}
	return NewTupleDesc(types, names)
}

func intTuple(desc *TupleDesc, vals ...int64) Tuple {
	values := make([]common.Value, len(vals))
	for i, v := range vals {
		values[i] = common.NewIntValue(v)
	}
	return NewTuple(desc, values...)
}

func newEmptyPage(t *testing.T, desc *TupleDesc) *HeapPage {
	hp, err := NewHeapPage(common.PageID{Oid: 1, PageNum: 0}, desc, EmptyPageData())
	require.NoError(t, err)
	return hp
}

func requireCode(t *testing.T, err error, code common.GoDBErrorCode) {
	t.Helper()
	require.Error(t, err)
	actual, ok := common.ErrorCode(err)
	require.True(t, ok, "expected a GoDBError, got %v", err)
	assert.Equal(t, code, actual, "unexpected error: %v", err)
}

func TestHeapPageSlotCount(t *testing.T) {
	// Two int fields: 16 bytes per record, floor(32768 / 129) slots
	assert.Equal(t, 254, NumSlotsFor(intDesc(2)))
	assert.Equal(t, 32, headerSizeFor(254))
	// One int field: floor(32768 / 65)
	assert.Equal(t, 504, NumSlotsFor(intDesc(1)))
	assert.Equal(t, 63, headerSizeFor(504))

	desc := NewTupleDesc([]common.Type{common.IntType, common.StringType}, nil)
	hp := newEmptyPage(t, desc)
	assert.Equal(t, NumSlotsFor(desc), hp.NumSlots())
	assert.Equal(t, hp.NumSlots(), hp.NumEmptySlots())
}

// TestHeapPageInsertUntilFull checks:
// 1. Records go to the lowest empty slot and receive a RecordID pointing at it.
// 2. NumEmptySlots decreases by one per insert.
// 3. Inserting into a full page fails with PageFullError.
// 4. A freed slot is the next one reused.
func TestHeapPageInsertUntilFull(t *testing.T) {
	desc := intDesc(2)
	hp := newEmptyPage(t, desc)
	numSlots := hp.NumSlots()

	for i := 0; i < numSlots; i++ {
		tup := intTuple(desc, int64(i), int64(i*10))
		require.NoError(t, hp.InsertTuple(&tup))
		assert.Equal(t, common.RecordID{PageID: hp.ID(), Slot: int32(i)}, tup.RID())
		assert.True(t, hp.IsSlotUsed(i))
		assert.Equal(t, numSlots-i-1, hp.NumEmptySlots())
	}

	extra := intTuple(desc, -1, -1)
	requireCode(t, hp.InsertTuple(&extra), common.PageFullError)
	assert.True(t, extra.RID().IsNil(), "failed insert must not assign a RecordID")

	victim := intTuple(desc, 17, 170)
	victim.SetRID(common.RecordID{PageID: hp.ID(), Slot: 17})
	require.NoError(t, hp.DeleteTuple(&victim))
	assert.False(t, hp.IsSlotUsed(17))
	assert.Equal(t, 1, hp.NumEmptySlots())

	require.NoError(t, hp.InsertTuple(&extra))
	assert.Equal(t, int32(17), extra.RID().Slot)
	assert.Equal(t, 0, hp.NumEmptySlots())
}

func TestHeapPageInsertSchemaMismatch(t *testing.T) {
	hp := newEmptyPage(t, intDesc(2))

	short := intTuple(intDesc(1), 1)
	requireCode(t, hp.InsertTuple(&short), common.StorageError)

	strDesc := NewTupleDesc([]common.Type{common.IntType, common.StringType}, nil)
	wrongType := NewTuple(strDesc, common.NewIntValue(1), common.NewStringValue("x"))
	requireCode(t, hp.InsertTuple(&wrongType), common.StorageError)

	assert.Equal(t, hp.NumSlots(), hp.NumEmptySlots())
}

// TestHeapPageDeleteErrors checks that deletes referencing the wrong page, an empty slot, or a slot holding a
// different record are all refused and leave the page unchanged.
func TestHeapPageDeleteErrors(t *testing.T) {
	desc := intDesc(2)
	hp := newEmptyPage(t, desc)
	tup := intTuple(desc, 1, 2)
	require.NoError(t, hp.InsertTuple(&tup))

	otherPage := intTuple(desc, 1, 2)
	otherPage.SetRID(common.RecordID{PageID: common.PageID{Oid: 1, PageNum: 3}, Slot: 0})
	requireCode(t, hp.DeleteTuple(&otherPage), common.StorageError)

	emptySlot := intTuple(desc, 1, 2)
	emptySlot.SetRID(common.RecordID{PageID: hp.ID(), Slot: 5})
	requireCode(t, hp.DeleteTuple(&emptySlot), common.StorageError)

	different := intTuple(desc, 1, 3)
	different.SetRID(tup.RID())
	requireCode(t, hp.DeleteTuple(&different), common.StorageError)

	computed := intTuple(desc, 1, 2)
	requireCode(t, hp.DeleteTuple(&computed), common.StorageError)

	assert.True(t, hp.IsSlotUsed(0))
	require.NoError(t, hp.DeleteTuple(&tup))
	requireCode(t, hp.DeleteTuple(&tup), common.StorageError)
}

// TestHeapPageLayout pins the serialized format: bitmap first (LSB first), then slots back to back.
func TestHeapPageLayout(t *testing.T) {
	desc := intDesc(2)
	hp := newEmptyPage(t, desc)
	for i := 0; i < 10; i++ {
		tup := intTuple(desc, int64(100+i), int64(-i))
		require.NoError(t, hp.InsertTuple(&tup))
	}
	for _, slot := range []int32{1, 2, 3, 4, 5, 6, 7, 8} {
		victim := intTuple(desc, int64(100+slot), int64(-slot))
		victim.SetRID(common.RecordID{PageID: hp.ID(), Slot: slot})
		require.NoError(t, hp.DeleteTuple(&victim))
	}

	data := hp.PageData()
	require.Len(t, data, common.PageSize)
	assert.Equal(t, byte(0x01), data[0], "only slot 0 of the first byte remains")
	assert.Equal(t, byte(0x02), data[1], "slot 9 is bit 1 of the second byte")

	header := headerSizeFor(hp.NumSlots())
	assert.Equal(t, uint64(100), binary.LittleEndian.Uint64(data[header:]))
	assert.Equal(t, uint64(109), binary.LittleEndian.Uint64(data[header+9*16:]))
	assert.Equal(t, int64(-9), int64(binary.LittleEndian.Uint64(data[header+9*16+8:])))

	trailer := header + hp.NumSlots()*16
	for i := trailer; i < common.PageSize; i++ {
		require.Equal(t, byte(0), data[i], "trailing byte %d should be zero", i)
	}
}

// TestHeapPageReload checks that a page rebuilt from PageData holds the same records in the same slots, and that
// PageData is a copy.
func TestHeapPageReload(t *testing.T) {
	desc := NewTupleDesc([]common.Type{common.IntType, common.StringType}, []string{"id", "name"})
	hp1 := newEmptyPage(t, desc)
	for i := 0; i < hp1.NumSlots(); i++ {
		tup := NewTuple(desc, common.NewIntValue(int64(i*100)), common.NewStringValue(fmt.Sprintf("val-%d", i)))
		require.NoError(t, hp1.InsertTuple(&tup))
		if i%3 == 0 {
			require.NoError(t, hp1.DeleteTuple(&tup))
		}
	}

	data := hp1.PageData()
	hp2, err := NewHeapPage(hp1.ID(), desc, data)
	require.NoError(t, err)
	data[0] ^= 0xFF
	assert.Equal(t, hp1.NumEmptySlots(), hp2.NumEmptySlots())

	it1, it2 := hp1.Iterator(), hp2.Iterator()
	for it1.HasNext() {
		require.True(t, it2.HasNext())
		a, err := it1.Next()
		require.NoError(t, err)
		b, err := it2.Next()
		require.NoError(t, err)
		assert.True(t, a.Equals(&b))
		assert.Equal(t, a.RID(), b.RID())
	}
	assert.False(t, it2.HasNext())

	_, err = NewHeapPage(hp1.ID(), desc, make([]byte, 10))
	requireCode(t, err, common.StorageError)
}

// TestHeapPageIterator checks:
// 1. Records come back in increasing slot order, empty slots skipped.
// 2. Next on an exhausted iterator fails with NoSuchElementError.
// 3. Rewind restarts from the first record.
// 4. Records inserted after the iterator was created are not visited.
// 5. Records freed after the iterator was created are skipped.
func TestHeapPageIterator(t *testing.T) {
	desc := intDesc(1)
	hp := newEmptyPage(t, desc)
	assert.False(t, hp.Iterator().HasNext())

	for i := 0; i < 6; i++ {
		tup := intTuple(desc, int64(i))
		require.NoError(t, hp.InsertTuple(&tup))
	}
	del := intTuple(desc, 2)
	del.SetRID(common.RecordID{PageID: hp.ID(), Slot: 2})
	require.NoError(t, hp.DeleteTuple(&del))

	collect := func(it *PageIterator) []int64 {
		var out []int64
		for it.HasNext() {
			tup, err := it.Next()
			require.NoError(t, err)
			out = append(out, tup.GetValue(0).IntValue())
		}
		return out
	}

	it := hp.Iterator()
	assert.Equal(t, []int64{0, 1, 3, 4, 5}, collect(it))
	_, err := it.Next()
	requireCode(t, err, common.NoSuchElementError)

	it.Rewind()
	assert.Equal(t, []int64{0, 1, 3, 4, 5}, collect(it))

	it.Rewind()
	late := intTuple(desc, 99)
	require.NoError(t, hp.InsertTuple(&late))
	gone := intTuple(desc, 4)
	gone.SetRID(common.RecordID{PageID: hp.ID(), Slot: 4})
	require.NoError(t, hp.DeleteTuple(&gone))
	assert.Equal(t, []int64{0, 1, 3, 5}, collect(it))
}

func TestHeapPageDirty(t *testing.T) {
	hp := newEmptyPage(t, intDesc(1))
	_, dirty := hp.IsDirty()
	assert.False(t, dirty)

	hp.MarkDirty(true, 7)
	tid, dirty := hp.IsDirty()
	assert.True(t, dirty)
	assert.Equal(t, common.TransactionID(7), tid)

	hp.MarkDirty(false, 7)
	tid, dirty = hp.IsDirty()
	assert.False(t, dirty)
	assert.Equal(t, common.InvalidTransactionID, tid)
}

// TestHeapPageRandomized runs random inserts and deletes against a slot -> record reference map for several
// schemas, from a single int up to records that leave room for only a few slots.
func TestHeapPageRandomized(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	schemas := [][]common.Type{
		{common.IntType},
		{common.IntType, common.StringType, common.IntType},
		make([]common.Type, 0),
	}
	for len(schemas[2])*common.StringLength < common.PageSize/3 {
		schemas[2] = append(schemas[2], common.StringType)
	}

	for _, fields := range schemas {
		desc := NewTupleDesc(fields, nil)
		t.Run(fmt.Sprintf("Cols%d_Size%d", len(fields), desc.BytesPerTuple()), func(t *testing.T) {
			hp := newEmptyPage(t, desc)
			shadow := make(map[int32]Tuple)

			for i := 0; i < 5000; i++ {
				if r.Intn(3) != 0 {
					values := make([]common.Value, len(fields))
					for k, ft := range fields {
						if ft == common.IntType {
							values[k] = common.NewIntValue(r.Int63())
						} else {
							values[k] = common.NewStringValue(fmt.Sprintf("s%d", r.Intn(1000)))
						}
					}
					tup := NewTuple(desc, values...)
					err := hp.InsertTuple(&tup)
					if len(shadow) == hp.NumSlots() {
						requireCode(t, err, common.PageFullError)
						continue
					}
					require.NoError(t, err)
					_, taken := shadow[tup.RID().Slot]
					require.False(t, taken, "slot %d handed out twice", tup.RID().Slot)
					shadow[tup.RID().Slot] = tup
				} else {
					for slot, tup := range shadow {
						require.NoError(t, hp.DeleteTuple(&tup))
						delete(shadow, slot)
						break
					}
				}
			}

			assert.Equal(t, hp.NumSlots()-len(shadow), hp.NumEmptySlots())
			it := hp.Iterator()
			seen := 0
			for it.HasNext() {
				tup, err := it.Next()
				require.NoError(t, err)
				expected, ok := shadow[tup.RID().Slot]
				require.True(t, ok)
				assert.True(t, expected.Equals(&tup))
				seen++
			}
			assert.Equal(t, len(shadow), seen)
		})
	}
}
