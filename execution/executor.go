package execution

import (
	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/storage"
)

// Operator is the interface that all relational operators implement. Operators form a tree and are evaluated by
// pulling: the root's Next pulls from its children, one tuple at a time.
type Operator interface {
	// Descriptor returns the schema of the tuples the operator produces. It is derived from the children's
	// schemas and the operator's configuration, so it is available before Open.
	Descriptor() *storage.TupleDesc

	// Open binds the operator to a transaction and prepares it to produce its first tuple. Children are opened
	// first, then any one-time work (such as draining a child) is done.
	Open(ctx *ExecutorContext) error

	// Next advances to the next tuple. It returns false when the operator is exhausted or failed; Error tells
	// the two apart.
	Next() bool

	// Current returns the tuple most recently produced by Next.
	Current() storage.Tuple

	// Error returns the error that stopped the operator, or nil if it is merely exhausted.
	Error() error

	// Rewind returns the operator to the state right after Open, so its output can be read again.
	Rewind() error

	// Close releases the operator's state and its children's.
	Close() error
}

func notOpen(op string) error {
	return common.NewError(common.ProtocolError, "%s: operator is not open", op)
}
