package logging

import (
	"log/slog"

	"github.com/mspronesti/simpledb/common"
)

// WithTx creates a logger that tags every record with the transaction id.
func WithTx(tid common.TransactionID) *slog.Logger {
	return GetLogger().With("tx_id", uint64(tid))
}

// WithTable creates a logger with table context.
func WithTable(tableName string) *slog.Logger {
	return GetLogger().With("table", tableName)
}

// WithPage creates a logger with page context. Hot paths log the same "table_id" and "page" keys through
// GetLogger directly instead of building a logger per event.
func WithPage(pid common.PageID) *slog.Logger {
	return GetLogger().With("table_id", uint32(pid.Oid), "page", pid.PageNum)
}

// WithComponent creates a logger with component/subsystem context.
//
// Example:
//
//	log := logging.WithComponent("buffer_pool")
//	log.Debug("evicted page", "page", pid)
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}
