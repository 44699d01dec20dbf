package engine

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplCedar Implementation = "cedar"
)

// Status is the result code of an engine operation.
type Status uint8

const (
	StatusOK Status = iota
	StatusKeyNotFound
	StatusKeyExists
	StatusCasMismatch
	StatusUnsupported
	StatusInvalid
	StatusInternal
	StatusTimeout
	StatusEncoding
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusKeyNotFound:
		return "KeyNotFound"
	case StatusKeyExists:
		return "KeyExists"
	case StatusCasMismatch:
		return "CasMismatch"
	case StatusUnsupported:
		return "Unsupported"
	case StatusInvalid:
		return "Invalid"
	case StatusInternal:
		return "Internal"
	case StatusTimeout:
		return "Timeout"
	case StatusEncoding:
		return "Encoding"
	default:
		return "Unknown"
	}
}

// StoreMode selects the conditional behavior of a Store call.
type StoreMode uint8

const (
	// ModeUpsert stores the document unconditionally.
	ModeUpsert StoreMode = iota
	// ModeInsert stores the document only if the key does not exist yet.
	ModeInsert
	// ModeReplace stores the document only if the key already exists.
	ModeReplace
)

func (m StoreMode) String() string {
	switch m {
	case ModeUpsert:
		return "Upsert"
	case ModeInsert:
		return "Insert"
	case ModeReplace:
		return "Replace"
	default:
		return "Unknown"
	}
}

// Feature represents engine features as bit flags
type Feature uint64

const (
	FeatureUpsert  Feature = 1 << iota // Support for unconditional stores
	FeatureInsert                      // Support for store-if-absent
	FeatureReplace                     // Support for store-if-present
	FeatureCas                         // Support for CAS guards on Replace/Remove
	FeatureExpiry                      // Support for document expiry
	FeatureGet                         // Support for Get operations
	FeatureRemove                      // Support for Remove operations
	FeatureExists                      // Support for Exists operations
	FeatureSave                        // Support for Save operations
	FeatureLoad                        // Support for Load operations
	FeatureGC                          // Support for background expiry collection
)

func (f Feature) String() string {
	switch f {
	case FeatureUpsert:
		return "Upsert"
	case FeatureInsert:
		return "Insert"
	case FeatureReplace:
		return "Replace"
	case FeatureCas:
		return "Cas"
	case FeatureExpiry:
		return "Expiry"
	case FeatureGet:
		return "Get"
	case FeatureRemove:
		return "Remove"
	case FeatureExists:
		return "Exists"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeatureGC:
		return "GC"
	default:
		return "Unknown"
	}
}

type EngineInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	EngineType        Implementation `json:"engine_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Engine Interface
// --------------------------------------------------------------------------

// IEngine defines an interface for document storage engine implementations.
// It provides conditional store semantics (upsert, insert, replace), CAS
// guarded mutations, expiry and various utility functions.
// Implementations can vary in their feature support, which can be queried
// with SupportsFeature.
type IEngine interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Store writes a document with the given key, value and flags.
	// The writeIndex parameter is used as a logical timestamp for the entry
	// and becomes the document's CAS value on success.
	// The ttl parameter schedules removal of the document after the given
	// number of logical ticks; ttl=0 means no expiry.
	// The mode parameter selects between upsert, insert and replace semantics.
	// The cas parameter, if non-zero, must match the stored CAS for the write
	// to take effect (only meaningful for ModeReplace).
	// Returns the new CAS on success and a status code.
	Store(key string, value []byte, flags uint32, writeIndex uint64, ttl uint64, mode StoreMode, cas uint64) (newCas uint64, status Status)

	// Remove deletes the document with the specified key.
	// The cas parameter, if non-zero, must match the stored CAS.
	Remove(key string, writeIndex uint64, cas uint64) (status Status)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the document for an exact key.
	// A logically expired document is never returned, even if the garbage
	// collector has not removed it yet.
	// The boolean return value indicates whether the document was found.
	Get(key string) (value []byte, flags uint32, cas uint64, found bool)

	// Exists checks whether a document exists for the key.
	Exists(key string) (found bool)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the engine to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the engine state from the data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the engine implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the engine.
	GetInfo() (info EngineInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index of the engine only if the provided index is greater than the current index.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index of the engine.
	WriteIdx() (index uint64)

	// Close closes the engine.
	Close() (err error)
}
