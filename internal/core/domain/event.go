package domain

import "github.com/google/uuid"

// EventKind identifies a progress event of a transaction.
type EventKind string

const (
	// EventTransactionStart is emitted before the first operation runs.
	EventTransactionStart EventKind = "transaction.start"
	// EventTransactionComplete is emitted when the transaction ends, with Err set on failure.
	EventTransactionComplete EventKind = "transaction.complete"
	// EventOperationStart is emitted before an operation runs.
	EventOperationStart EventKind = "operation.start"
	// EventOperationComplete is emitted after an operation ran.
	EventOperationComplete EventKind = "operation.complete"
	// EventFetchStart is emitted before a package is acquired from the cache.
	EventFetchStart EventKind = "fetch.start"
	// EventFetchComplete is emitted after a package was acquired.
	EventFetchComplete EventKind = "fetch.complete"
	// EventLinkStart is emitted before a package's files are linked.
	EventLinkStart EventKind = "link.start"
	// EventLinkComplete is emitted after a package's files were linked.
	EventLinkComplete EventKind = "link.complete"
	// EventUnlinkStart is emitted before a package's files are removed.
	EventUnlinkStart EventKind = "unlink.start"
	// EventUnlinkComplete is emitted after a package's files were removed.
	EventUnlinkComplete EventKind = "unlink.complete"
)

// Event is one progress notification of a transaction.
type Event struct {
	Kind          EventKind
	TransactionID uuid.UUID
	Operation     Operation
	Record        *PackageRecord
	Bytes         int64
	// Total is the number of operations, set on transaction start.
	Total         int
	Err           error
}
