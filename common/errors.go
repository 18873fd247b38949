package common

import (
	"errors"
	"fmt"
)

type GoDBErrorCode int

const (
	// DuplicateObjectError indicates an attempt to create a table that already exists in the catalog.
	DuplicateObjectError GoDBErrorCode = iota
	// NoSuchObjectError indicates a request for a table, page or record that does not exist.
	NoSuchObjectError
	// DeadlockError is returned by the lock manager when granting a lock could deadlock. The requesting
	// transaction must abort.
	DeadlockError
	// ConfigurationError indicates an operator or component was built with arguments it cannot honor,
	// such as a non-COUNT aggregate over a string column.
	ConfigurationError
	// ProtocolError indicates an iterator or operator was driven out of order (Next before Open, etc.).
	ProtocolError
	// StorageError indicates failed or inconsistent page I/O, or a record that does not belong where it was sent.
	StorageError
	// PageFullError is returned when inserting into a page with no empty slots.
	PageFullError
	// NoSuchElementError is returned by Next on an exhausted iterator.
	NoSuchElementError
	// BufferFullError is returned when the buffer pool has no clean page to evict.
	BufferFullError
)

func (ec GoDBErrorCode) String() string {
	switch ec {
	case DuplicateObjectError:
		return "DuplicateObjectError"
	case NoSuchObjectError:
		return "NoSuchObjectError"
	case DeadlockError:
		return "DeadlockError"
	case ConfigurationError:
		return "ConfigurationError"
	case ProtocolError:
		return "ProtocolError"
	case StorageError:
		return "StorageError"
	case PageFullError:
		return "PageFullError"
	case NoSuchElementError:
		return "NoSuchElementError"
	case BufferFullError:
		return "BufferFullError"
	}
	return "unknown"
}

// GoDBError is the custom error type for the database engine.
// It wraps a specific GoDBErrorCode with a detailed message, so callers can tell
// an abort signal apart from a misuse or an I/O failure.
type GoDBError struct {
	Code      GoDBErrorCode
	ErrString string
}

func (e GoDBError) Error() string {
	return fmt.Sprintf("err: %s; msg: %s", e.Code.String(), e.ErrString)
}

// NewError builds a GoDBError with a formatted message.
func NewError(code GoDBErrorCode, format string, args ...any) GoDBError {
	return GoDBError{Code: code, ErrString: fmt.Sprintf(format, args...)}
}

// ErrorCode extracts the GoDBErrorCode from err, looking through wrapped errors.
// The second return value is false if err carries no GoDBError.
func ErrorCode(err error) (GoDBErrorCode, bool) {
	var gerr GoDBError
	if errors.As(err, &gerr) {
		return gerr.Code, true
	}
	return 0, false
}

// IsAbort reports whether err tells the caller to abort its transaction.
func IsAbort(err error) bool {
	code, ok := ErrorCode(err)
	return ok && code == DeadlockError
}
