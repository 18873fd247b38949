package execution

import (
	"github.com/mspronesti/simpledb/common"
)

// ExecutionHashTable is a thin wrapper around a Go map keyed by field values, for single-threaded execution
// operators. common.Value is a comparable struct, so values are used as keys directly: two keys collide exactly
// when they have the same type and content.
//
// Iterate visits entries in the order their keys were first inserted, which keeps operator output stable from
// run to run. Callers must not rely on that order.
type ExecutionHashTable[T any] struct {
	table map[common.Value]T
	keys  []common.Value
}

func NewExecutionHashTable[T any]() *ExecutionHashTable[T] {
	return &ExecutionHashTable[T]{
		table: make(map[common.Value]T),
	}
}

// Insert adds or replaces the value stored under key.
func (ht *ExecutionHashTable[T]) Insert(key common.Value, value T) {
	if _, exists := ht.table[key]; !exists {
		ht.keys = append(ht.keys, key)
	}
	ht.table[key] = value
}

// Get returns the value stored under key.
func (ht *ExecutionHashTable[T]) Get(key common.Value) (value T, exists bool) {
	value, exists = ht.table[key]
	return
}

// Len returns the number of keys in the table.
func (ht *ExecutionHashTable[T]) Len() int {
	return len(ht.table)
}

// Iterate loops over all key-value pairs in the hash table and calls the provided callback function for each.
func (ht *ExecutionHashTable[T]) Iterate(iter func(key common.Value, value T)) {
	for _, key := range ht.keys {
		iter(key, ht.table[key])
	}
}
