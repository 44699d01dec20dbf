package common

import (
	"encoding/json"
	"fmt"

	"github.com/lweidner/akv/lib/document"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key       string `json:"key,omitempty"`       // Used for: all document and lock operations
	Value     []byte `json:"value,omitempty"`     // Used for: store requests, Get (response), Acquire (response), Release (request)
	Flags     uint32 `json:"flags,omitempty"`     // Used for: store requests, Get (response)
	Cas       uint64 `json:"cas,omitempty"`       // Used for: Replace/Remove guards (request), mutation and Get responses
	Expiry    uint64 `json:"expiry,omitempty"`    // Used for: store and Acquire requests
	TimeoutMs uint64 `json:"timeoutMs,omitempty"` // Optional per operation timeout in milliseconds

	// Response only fields
	Ok      bool   `json:"ok,omitempty"`      // Used for: Get, Exists, Acquire, Release responses
	ErrCode uint8  `json:"errCode,omitempty"` // Status code of the failure (engine.Status), 0 if no error
	Err     string `json:"err,omitempty"`     // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Info responses, can be used for additional Adapters
}

// setError fills the response error fields from an error value.
// The status code survives the wire so clients can rebuild typed errors.
func (msg *Message) setError(err error) {
	if err != nil {
		msg.ErrCode = uint8(document.StatusOf(err))
		msg.Err = err.Error()
	}
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewGetRequest creates a new Get request
func NewGetRequest(key string, timeoutMs uint64) *Message {
	return &Message{
		MsgType:   MsgTDocGet,
		Key:       key,
		TimeoutMs: timeoutMs,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, flags uint32, cas uint64, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTDocGet,
		Ok:      ok,
		Value:   value,
		Flags:   flags,
		Cas:     cas,
	}
	msg.setError(err)
	return msg
}

// NewUpsertRequest creates a new Upsert request
func NewUpsertRequest(key string, value []byte, flags uint32, expiry, timeoutMs uint64) *Message {
	return &Message{
		MsgType:   MsgTDocUpsert,
		Key:       key,
		Value:     value,
		Flags:     flags,
		Expiry:    expiry,
		TimeoutMs: timeoutMs,
	}
}

// NewInsertRequest creates a new Insert request
func NewInsertRequest(key string, value []byte, flags uint32, expiry, timeoutMs uint64) *Message {
	return &Message{
		MsgType:   MsgTDocInsert,
		Key:       key,
		Value:     value,
		Flags:     flags,
		Expiry:    expiry,
		TimeoutMs: timeoutMs,
	}
}

// NewReplaceRequest creates a new Replace request
func NewReplaceRequest(key string, value []byte, flags uint32, expiry, cas, timeoutMs uint64) *Message {
	return &Message{
		MsgType:   MsgTDocReplace,
		Key:       key,
		Value:     value,
		Flags:     flags,
		Expiry:    expiry,
		Cas:       cas,
		TimeoutMs: timeoutMs,
	}
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(key string, cas, timeoutMs uint64) *Message {
	return &Message{
		MsgType:   MsgTDocRemove,
		Key:       key,
		Cas:       cas,
		TimeoutMs: timeoutMs,
	}
}

// NewMutationResponse creates a response for a mutation (Upsert, Insert,
// Replace, Remove). On success cas carries the CAS of the created revision.
func NewMutationResponse(msgType MessageType, cas uint64, err error) *Message {
	msg := &Message{
		MsgType: msgType,
		Cas:     cas,
	}
	msg.setError(err)
	return msg
}

// NewExistsRequest creates a new Exists request
func NewExistsRequest(key string) *Message {
	return &Message{
		MsgType: MsgTDocExists,
		Key:     key,
	}
}

// NewExistsResponse creates a new Exists response
func NewExistsResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTDocExists,
		Ok:      ok,
	}
	msg.setError(err)
	return msg
}

// NewEngineInfoRequest creates a new EngineInfo request
func NewEngineInfoRequest() *Message {
	return &Message{
		MsgType: MsgTDocInfo,
	}
}

// NewEngineInfoResponse creates a new EngineInfo response.
// The info is JSON encoded in the Meta field.
func NewEngineInfoResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTDocInfo,
		Meta:    meta,
	}
	msg.setError(err)
	return msg
}

// NewAcquireRequest creates a new Acquire request
func NewAcquireRequest(key string, timeout uint64) *Message {
	return &Message{
		MsgType: MsgTLCKAcquire,
		Key:     key,
		Expiry:  timeout,
	}
}

// NewAcquireResponse creates a new Acquire response
func NewAcquireResponse(ok bool, ownerID []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTLCKAcquire,
		Ok:      ok,
		Value:   ownerID,
	}
	msg.setError(err)
	return msg
}

// NewReleaseRequest creates a new Release request
func NewReleaseRequest(key string, ownerID []byte) *Message {
	return &Message{
		MsgType: MsgTLCKRelease,
		Key:     key,
		Value:   ownerID,
	}
}

// NewReleaseResponse creates a new Release response
func NewReleaseResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTLCKRelease,
		Ok:      ok,
	}
	msg.setError(err)
	return msg
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
	msg.setError(err)
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTDocGet:
		return "get"
	case MsgTDocUpsert:
		return "upsert"
	case MsgTDocInsert:
		return "insert"
	case MsgTDocReplace:
		return "replace"
	case MsgTDocRemove:
		return "remove"
	case MsgTDocExists:
		return "exists"
	case MsgTDocInfo:
		return "info"
	case MsgTLCKAcquire:
		return "acquire"
	case MsgTLCKRelease:
		return "release"
	case MsgTCustom:
		return "custom"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "get":
		*t = MsgTDocGet
	case "upsert":
		*t = MsgTDocUpsert
	case "insert":
		*t = MsgTDocInsert
	case "replace":
		*t = MsgTDocReplace
	case "remove":
		*t = MsgTDocRemove
	case "exists":
		*t = MsgTDocExists
	case "info":
		*t = MsgTDocInfo
	case "acquire":
		*t = MsgTLCKAcquire
	case "release":
		*t = MsgTLCKRelease
	case "custom":
		*t = MsgTCustom
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// ICollection operations

	MsgTDocGet     // Get a document by id
	MsgTDocUpsert  // Store a document unconditionally
	MsgTDocInsert  // Store a document if the id is absent
	MsgTDocReplace // Store a document if the id is present
	MsgTDocRemove  // Remove a document
	MsgTDocExists  // Check if a document exists
	MsgTDocInfo    // Retrieve engine metadata

	// ILockManager operations

	MsgTLCKAcquire // Acquire a lock
	MsgTLCKRelease // Release a lock

	// Custom operations

	MsgTCustom // Custom operation type
)
