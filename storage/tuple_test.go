package storage

import (
	"testing"

	"github.com/mspronesti/simpledb/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTupleDescLayout(t *testing.T) {
	desc := NewTupleDesc([]common.Type{common.IntType, common.StringType, common.IntType}, []string{"a", "b", "c"})

	assert.Equal(t, 3, desc.NumFields())
	assert.Equal(t, 2*common.IntSize+common.StringLength, desc.BytesPerTuple())
	assert.Equal(t, 0, desc.FieldOffset(0))
	assert.Equal(t, common.IntSize, desc.FieldOffset(1))
	assert.Equal(t, common.IntSize+common.StringLength, desc.FieldOffset(2))
	assert.Equal(t, common.StringType, desc.FieldType(1))
	assert.Equal(t, "c", desc.FieldName(2))

	idx, err := desc.FieldNameToIndex("b")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	_, err = desc.FieldNameToIndex("missing")
	requireCode(t, err, common.NoSuchElementError)
	_, err = desc.FieldNameToIndex("")
	requireCode(t, err, common.NoSuchElementError)
}

func TestTupleDescAnonymousFields(t *testing.T) {
	desc := NewTupleDesc([]common.Type{common.IntType, common.IntType}, nil)
	assert.Equal(t, "", desc.FieldName(0))
	assert.Equal(t, "", desc.FieldName(1))
}

// TestTupleDescEquality checks that equality and hashing look only at the field types, not the names.
func TestTupleDescEquality(t *testing.T) {
	a := NewTupleDesc([]common.Type{common.IntType, common.StringType}, []string{"x", "y"})
	b := NewTupleDesc([]common.Type{common.IntType, common.StringType}, []string{"p", "q"})
	c := NewTupleDesc([]common.Type{common.StringType, common.IntType}, []string{"x", "y"})
	d := NewTupleDesc([]common.Type{common.IntType}, []string{"x"})

	assert.True(t, a.Equals(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.False(t, a.Equals(c))
	assert.False(t, a.Equals(d))
	assert.False(t, a.Equals(nil))
}

func TestMergeTupleDescs(t *testing.T) {
	a := NewTupleDesc([]common.Type{common.IntType}, []string{"id"})
	b := NewTupleDesc([]common.Type{common.StringType, common.IntType}, []string{"name", "age"})
	merged := MergeTupleDescs(a, b)

	assert.Equal(t, 3, merged.NumFields())
	assert.Equal(t, []common.Type{common.IntType, common.StringType, common.IntType}, merged.FieldTypes())
	assert.Equal(t, "id", merged.FieldName(0))
	assert.Equal(t, "age", merged.FieldName(2))
	assert.Equal(t, a.BytesPerTuple()+b.BytesPerTuple(), merged.BytesPerTuple())
	assert.Equal(t, 1, a.NumFields(), "inputs are not modified")
}

func TestTupleSerialization(t *testing.T) {
	desc := NewTupleDesc([]common.Type{common.IntType, common.StringType}, nil)
	tup := NewTuple(desc, common.NewIntValue(-42), common.NewStringValue("world"))
	assert.True(t, tup.RID().IsNil(), "computed tuples have no RecordID")

	buf := make([]byte, desc.BytesPerTuple())
	tup.writeTo(buf)
	rid := common.RecordID{PageID: common.PageID{Oid: 1, PageNum: 1}, Slot: 3}
	back := readTuple(desc, buf, rid)

	assert.True(t, tup.Equals(&back))
	assert.Equal(t, int64(-42), back.GetValue(0).IntValue())
	assert.Equal(t, "world", back.GetValue(1).StringValue())
	assert.Equal(t, rid, back.RID())
	assert.Equal(t, "-42\tworld", back.String())
}

func TestTupleStringFullWidth(t *testing.T) {
	desc := NewTupleDesc([]common.Type{common.StringType}, nil)
	s := "0123456789abcdef0123456789abcdef"
	require.Len(t, s, common.StringLength)
	tup := NewTuple(desc, common.NewStringValue(s))

	buf := make([]byte, desc.BytesPerTuple())
	tup.writeTo(buf)
	back := readTuple(desc, buf, common.RecordID{})
	assert.Equal(t, s, back.GetValue(0).StringValue())
}

func TestValueEquality(t *testing.T) {
	assert.Equal(t, common.NewIntValue(5), common.NewIntValue(5))
	assert.NotEqual(t, common.NewIntValue(5), common.NewStringValue("5"))
	assert.True(t, common.NewStringValue("a").Equals(common.NewStringValue("a")))
	assert.Equal(t, -1, common.NewIntValue(1).Compare(common.NewIntValue(2)))
	assert.Equal(t, 1, common.NewStringValue("b").Compare(common.NewStringValue("a")))

	groups := map[common.Value]int{}
	groups[common.NewIntValue(1)]++
	groups[common.NewIntValue(1)]++
	groups[common.NewStringValue("1")]++
	assert.Len(t, groups, 2)
}
