package storage

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/mspronesti/simpledb/common"
)

// TupleDesc is the schema of a tuple: an ordered list of (type, name) pairs.
//
// Besides the logical schema, a TupleDesc caches the physical layout of a tuple on a page. Every field is fixed
// width, so a tuple occupies exactly BytesPerTuple() bytes and field i always begins at FieldOffset(i).
type TupleDesc struct {
	fields      []common.Type
	names       []string
	offsets     []int // Cache of column_id => physical offset of first byte in a serialized tuple
	bytesPerRow int
}

// CheckTupleWidth reports a ConfigurationError if a tuple with the given field types cannot fit in a page.
// NewTupleDesc panics on such types, so schemas from outside the program are checked with it first.
func CheckTupleWidth(fields []common.Type) error {
	width := 0
	for _, t := range fields {
		width += t.Size()
	}
	if width*8+1 > common.PageSize*8 {
		return common.NewError(common.ConfigurationError, "a tuple of %d bytes cannot fit in a %d byte page",
			width, common.PageSize)
	}
	return nil
}

// NewTupleDesc creates a descriptor for the given field types. names may be nil, or may hold empty strings for
// anonymous fields; otherwise it must have one entry per type.
func NewTupleDesc(fields []common.Type, names []string) *TupleDesc {
	common.Assert(len(fields) > 0, "a tuple descriptor needs at least one field")
	common.Assert(names == nil || len(names) == len(fields), "%d names given for %d fields", len(names), len(fields))

	desc := &TupleDesc{
		fields:  append([]common.Type(nil), fields...),
		names:   make([]string, len(fields)),
		offsets: make([]int, len(fields)),
	}
	copy(desc.names, names)
	for i, t := range fields {
		desc.offsets[i] = desc.bytesPerRow
		desc.bytesPerRow += t.Size()
	}
	common.Assert(desc.bytesPerRow*8+1 <= common.PageSize*8, "a tuple of %d bytes cannot fit in a page", desc.bytesPerRow)
	return desc
}

// MergeTupleDescs returns a descriptor with the fields of a followed by the fields of b.
func MergeTupleDescs(a, b *TupleDesc) *TupleDesc {
	fields := make([]common.Type, 0, a.NumFields()+b.NumFields())
	fields = append(append(fields, a.fields...), b.fields...)
	names := make([]string, 0, len(fields))
	names = append(append(names, a.names...), b.names...)
	return NewTupleDesc(fields, names)
}

func (desc *TupleDesc) String() string {
	parts := make([]string, len(desc.fields))
	for i, t := range desc.fields {
		parts[i] = fmt.Sprintf("%s(%s)", t, desc.names[i])
	}
	return strings.Join(parts, ", ")
}

// NumFields returns the number of fields in the schema.
func (desc *TupleDesc) NumFields() int {
	return len(desc.fields)
}

// BytesPerTuple returns the fixed size in bytes required to store this tuple.
func (desc *TupleDesc) BytesPerTuple() int {
	return desc.bytesPerRow
}

// FieldType returns the type of the field at index i.
func (desc *TupleDesc) FieldType(i int) common.Type {
	return desc.fields[i]
}

func (desc *TupleDesc) FieldTypes() []common.Type {
	return desc.fields
}

// FieldName returns the name of the field at index i, or "" if the field is anonymous.
func (desc *TupleDesc) FieldName(i int) string {
	return desc.names[i]
}

// FieldOffset returns the byte offset where field i begins.
func (desc *TupleDesc) FieldOffset(i int) int {
	return desc.offsets[i]
}

// FieldNameToIndex returns the index of the first field called name.
func (desc *TupleDesc) FieldNameToIndex(name string) (int, error) {
	if name != "" {
		for i, n := range desc.names {
			if n == name {
				return i, nil
			}
		}
	}
	return -1, common.NewError(common.NoSuchElementError, "no field named %q in (%s)", name, desc)
}

// Equals reports whether the two descriptors have the same number of fields with the same types in the same
// order. Names are not compared.
func (desc *TupleDesc) Equals(other *TupleDesc) bool {
	if desc == other {
		return true
	}
	if other == nil || len(desc.fields) != len(other.fields) {
		return false
	}
	for i := range desc.fields {
		if desc.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

// Hash returns a hash of the field types, consistent with Equals.
func (desc *TupleDesc) Hash() uint64 {
	buf := make([]byte, len(desc.fields))
	for i, t := range desc.fields {
		buf[i] = byte(t)
	}
	return xxhash.Sum64(buf)
}

// readValue deserializes the value of field i from a serialized tuple.
func (desc *TupleDesc) readValue(raw []byte, i int) common.Value {
	return common.AsValue(desc.fields[i], raw[desc.offsets[i]:])
}

// Tuple is a row exchanged between storage and query operators. A tuple read from a heap page carries the
// RecordID of its slot; tuples computed by operators (aggregates, counts) have a nil RecordID.
type Tuple struct {
	desc   *TupleDesc
	values []common.Value
	rid    common.RecordID
}

// NewTuple creates a tuple with the given schema and values. Conformance of values to desc is checked when the
// tuple is stored, not here.
func NewTuple(desc *TupleDesc, values ...common.Value) Tuple {
	return Tuple{desc: desc, values: values}
}

// readTuple decodes a tuple of the given schema from its page representation.
func readTuple(desc *TupleDesc, raw []byte, rid common.RecordID) Tuple {
	values := make([]common.Value, desc.NumFields())
	for i := range values {
		values[i] = desc.readValue(raw, i)
	}
	return Tuple{desc: desc, values: values, rid: rid}
}

// writeTo serializes the tuple into buf in page format.
func (t *Tuple) writeTo(buf []byte) {
	common.Assert(len(buf) >= t.desc.BytesPerTuple(), "buffer too small")
	for i, v := range t.values {
		v.WriteTo(buf[t.desc.offsets[i]:])
	}
}

// conformsTo reports whether the tuple's values match the field types of desc.
func (t *Tuple) conformsTo(desc *TupleDesc) bool {
	if len(t.values) != desc.NumFields() {
		return false
	}
	for i, v := range t.values {
		if v.Type() != desc.fields[i] {
			return false
		}
	}
	return true
}

// IsNil checks if the tuple is uninitialized.
func (t *Tuple) IsNil() bool {
	return t.desc == nil && t.values == nil
}

// Desc returns the schema of the tuple.
func (t *Tuple) Desc() *TupleDesc {
	return t.desc
}

// RID returns the RecordID of the tuple, or a nil ID if the tuple is not stored.
func (t *Tuple) RID() common.RecordID {
	return t.rid
}

// SetRID records where the tuple is stored.
func (t *Tuple) SetRID(rid common.RecordID) {
	t.rid = rid
}

// NumFields returns the number of values in the tuple.
func (t *Tuple) NumFields() int {
	return len(t.values)
}

// GetValue retrieves the value at index i.
func (t *Tuple) GetValue(i int) common.Value {
	return t.values[i]
}

// Values returns the tuple's values. The slice must not be modified.
func (t *Tuple) Values() []common.Value {
	return t.values
}

// Equals reports whether both tuples hold the same values. Schemas and RecordIDs are not compared.
func (t *Tuple) Equals(other *Tuple) bool {
	if len(t.values) != len(other.values) {
		return false
	}
	for i := range t.values {
		if t.values[i] != other.values[i] {
			return false
		}
	}
	return true
}

// String renders the values separated by tabs.
func (t Tuple) String() string {
	parts := make([]string, len(t.values))
	for i, v := range t.values {
		parts[i] = v.String()
	}
	return strings.Join(parts, "\t")
}
