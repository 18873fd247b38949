package common

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

const (
	// PageSize is the size of every page in every heap file, in bytes.
	PageSize     int = 4096
	IntSize      int = 8
	StringLength int = 32
)

type Type int8

const (
	// For uninitialized Values
	DefaultType Type = iota
	IntType
	StringType
)

// Size returns the fixed-width storage size of the type in bytes
func (t Type) Size() int {
	switch t {
	case IntType:
		return IntSize
	case StringType:
		return StringLength
	default:
		panic("unknown type")
	}
}

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// ObjectID is a unique identifier for a table (heap file) in the database.
type ObjectID uint32

const InvalidObjectID ObjectID = 0

// PageID uniquely identifies a page within the database.
type PageID struct {
	Oid     ObjectID
	PageNum int32
}

func (p PageID) String() string {
	return fmt.Sprintf("Page(%d, %d)", p.Oid, p.PageNum)
}

// IsNil checks if the PageID is valid.
func (p PageID) IsNil() bool {
	return p.Oid == InvalidObjectID
}

// RecordID identifies a specific tuple (row) in the database via its PageID and Slot index.
type RecordID struct {
	PageID
	Slot int32
}

// IsNil reports whether the RecordID refers to no stored location, as is the case for computed tuples.
func (r RecordID) IsNil() bool {
	return r.PageID.IsNil()
}

func (r RecordID) String() string {
	return fmt.Sprintf("rid(%s, %d)", r.PageID.String(), r.Slot)
}

type TransactionID uint64

const InvalidTransactionID TransactionID = 0

// Permissions is the access level a transaction requests when fetching a page.
type Permissions int

const (
	ReadOnly Permissions = iota
	ReadWrite
)

func (p Permissions) String() string {
	switch p {
	case ReadOnly:
		return "READ_ONLY"
	case ReadWrite:
		return "READ_WRITE"
	}
	return "unknown"
}

// Value is a single typed field of a tuple. Values are comparable Go structs, so two Values are == exactly when
// they have the same type and the same content. This makes Value usable directly as a map key.
type Value struct {
	t   Type
	i   int64
	str string
}

// AsValue decodes a value of type t from its fixed-width storage format. The returned Value never aliases source.
func AsValue(t Type, source []byte) Value {
	Assert(len(source) >= t.Size(), "buffer too small to decode %s", t)
	switch t {
	case IntType:
		return Value{t: IntType, i: int64(binary.LittleEndian.Uint64(source))}
	case StringType:
		realLen := StringLength
		for i := 0; i < StringLength; i++ {
			if source[i] == 0 {
				realLen = i
				break
			}
		}
		return Value{t: StringType, str: string(source[:realLen])}
	}
	panic("unknown type")
}

// NewIntValue creates a new integer Value.
func NewIntValue(v int64) Value {
	return Value{t: IntType, i: v}
}

// NewStringValue creates a new string Value. Strings longer than StringLength bytes cannot be stored.
func NewStringValue(v string) Value {
	Assert(len(v) <= StringLength, "string too long: %d > %d bytes", len(v), StringLength)
	return Value{t: StringType, str: v}
}

// ParseValue converts the text form of a value of type t.
func ParseValue(t Type, text string) (Value, error) {
	switch t {
	case IntType:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, NewError(ConfigurationError, "'%s' is not an int", text)
		}
		return NewIntValue(i), nil
	case StringType:
		if len(text) > StringLength {
			return Value{}, NewError(ConfigurationError, "string too long: %d > %d bytes", len(text), StringLength)
		}
		return NewStringValue(text), nil
	default:
		return Value{}, NewError(ConfigurationError, "cannot parse a value of type %s", t)
	}
}

// IsNil returns true if the Value is uninitialized.
func (v Value) IsNil() bool {
	return v.t == DefaultType
}

// Type returns the type of the Value.
func (v Value) Type() Type {
	return v.t
}

// IntValue returns the underlying integer.
func (v Value) IntValue() int64 {
	Assert(v.t == IntType, "type mismatch in IntValue")
	return v.i
}

// StringValue returns the underlying string.
func (v Value) StringValue() string {
	Assert(v.t == StringType, "type mismatch in StringValue")
	return v.str
}

// SizeInBytes returns the serialization size (fixed width).
func (v Value) SizeInBytes() int {
	return v.t.Size()
}

// WriteTo serializes the Value into storage format.
func (v Value) WriteTo(data []byte) {
	Assert(len(data) >= v.SizeInBytes(), "buffer too small")
	switch v.t {
	case IntType:
		binary.LittleEndian.PutUint64(data, uint64(v.i))
	case StringType:
		n := copy(data[:StringLength], v.str)
		for i := n; i < StringLength; i++ {
			data[i] = 0
		}
	}
}

// Equals reports whether two values have the same type and content.
func (v Value) Equals(other Value) bool {
	return v == other
}

// Compare compares two Values of the same type.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
func (v Value) Compare(other Value) int {
	Assert(v.t == other.t, "type mismatch in comparison")

	switch v.t {
	case IntType:
		if v.i < other.i {
			return -1
		}
		if v.i > other.i {
			return 1
		}
		return 0
	case StringType:
		if v.str < other.str {
			return -1
		}
		if v.str > other.str {
			return 1
		}
		return 0
	}
	panic("unreachable")
}

func (v Value) String() string {
	switch v.t {
	case IntType:
		return strconv.FormatInt(v.i, 10)
	case StringType:
		return v.str
	}
	return "<nil>"
}
