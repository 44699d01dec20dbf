package document

import (
	"fmt"
	"time"

	"github.com/lweidner/akv/lib/engine"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// EngineFactory is a function type that creates a new engine used by the collection.
// This is used to abstract the creation of the engine from the collection implementation.
type EngineFactory func() engine.IEngine

// ICollection is the generic interface for interacting with a document
// collection. All mutations return a *MutationResult carrying the CAS of the
// new revision together with an error (nil on success). Conditional failures
// (key exists, key not found, cas mismatch) are reported as *Error values
// with the matching status code.
type ICollection interface {
	// Get returns the document for an id. The boolean return value indicates
	// whether a document was found; a missing id is not an error.
	Get(id string, opts GetOptions) (result *GetResult, found bool, err error)
	// Upsert stores a document unconditionally.
	Upsert(id string, content []byte, flags uint32, opts StoreOptions) (result *MutationResult, err error)
	// Insert stores a document only if the id does not exist yet.
	// Fails with StatusKeyExists otherwise.
	Insert(id string, content []byte, flags uint32, opts StoreOptions) (result *MutationResult, err error)
	// Replace stores a document only if the id already exists.
	// Fails with StatusKeyNotFound otherwise. If opts.Cas is non-zero it must
	// match the stored CAS or the call fails with StatusCasMismatch.
	Replace(id string, content []byte, flags uint32, opts StoreOptions) (result *MutationResult, err error)
	// Remove deletes a document. Fails with StatusKeyNotFound if the id does
	// not exist. If opts.Cas is non-zero it must match the stored CAS.
	Remove(id string, opts RemoveOptions) (result *MutationResult, err error)
	// Exists returns whether a document exists for the id.
	Exists(id string) (found bool, err error)
	// GetEngineInfo returns metadata about the engine underlying the collection.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetEngineInfo() (info engine.EngineInfo, err error)
}

// --------------------------------------------------------------------------
// Results and Options
// --------------------------------------------------------------------------

// GetResult is the outcome of a successful Get.
type GetResult struct {
	Content []byte // the stored document content
	Flags   uint32 // the application flags stored with the document
	Cas     uint64 // the CAS of the current revision
}

// MutationResult is the outcome of a successful mutation.
type MutationResult struct {
	Cas uint64 // the CAS of the revision the mutation created
}

// GetOptions configures a Get operation.
type GetOptions struct {
	// Timeout bounds the operation when it crosses a network boundary.
	// Zero means the transport default. Local collections ignore it.
	Timeout time.Duration
}

// StoreOptions configures Upsert, Insert and Replace operations.
type StoreOptions struct {
	// Expiry schedules removal of the document after the given number of
	// logical ticks. Zero means the document never expires.
	Expiry uint64
	// Cas guards a Replace against concurrent modification. Zero disables
	// the guard. Ignored by Upsert and Insert.
	Cas uint64
	// Timeout bounds the operation when it crosses a network boundary.
	Timeout time.Duration
}

// RemoveOptions configures a Remove operation.
type RemoveOptions struct {
	// Cas guards the removal against concurrent modification. Zero disables
	// the guard.
	Cas uint64
	// Timeout bounds the operation when it crosses a network boundary.
	Timeout time.Duration
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps an engine status code
// and an error message.
type Error struct {
	Code engine.Status // the status code
	Msg  string        // the error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("CollectionError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new collection Error with the given code and message.
func NewError(code engine.Status, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// StatusOf extracts the status code of an error. Errors that are not
// collection errors report StatusInternal.
func StatusOf(err error) engine.Status {
	if err == nil {
		return engine.StatusOK
	}
	if cerr, ok := err.(*Error); ok {
		return cerr.Code
	}
	return engine.StatusInternal
}
