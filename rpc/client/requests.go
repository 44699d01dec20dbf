package client

import (
	"encoding/json"
	"time"

	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/lib/engine"
	"github.com/lweidner/akv/rpc/common"
)

// --------------------------------------------------------------------------
// Request Interface
// --------------------------------------------------------------------------

// IRequest is a single-use operation request. A request is constructed with
// all its fields, submitted to an Instance, encoded exactly once into a wire
// message and completed exactly once with the matching response or an error.
//
// Complete may be called from a transport goroutine. Implementations must
// never block in Complete; all requests in this package deliver their outcome
// into a buffered channel exposed via Done().
type IRequest interface {
	// Encode builds the wire message for this request. Building a message
	// cannot fail; serialization failures are reported via Complete.
	Encode() *common.Message

	// Complete resolves the request with the response message or an error.
	// Exactly one of resp and err is non-nil.
	Complete(resp *common.Message, err error)

	// Timeout returns the per-request timeout. Zero means the transport
	// default applies.
	Timeout() time.Duration
}

// timeoutMs converts a timeout duration to whole milliseconds for the wire.
func timeoutMs(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / time.Millisecond)
}

// --------------------------------------------------------------------------
// Get
// --------------------------------------------------------------------------

// GetOutcome is the resolved result of a GetRequest.
type GetOutcome struct {
	Result *document.GetResult // nil if the document was not found
	Found  bool
	Err    error
}

// GetRequest fetches a document by id.
type GetRequest struct {
	ID      string
	Options document.GetOptions

	done chan GetOutcome
}

// NewGetRequest creates a single-use Get request.
func NewGetRequest(id string, opts document.GetOptions) *GetRequest {
	return &GetRequest{ID: id, Options: opts, done: make(chan GetOutcome, 1)}
}

// Done returns the channel the outcome is delivered on.
func (r *GetRequest) Done() <-chan GetOutcome { return r.done }

func (r *GetRequest) Timeout() time.Duration { return r.Options.Timeout }

func (r *GetRequest) Encode() *common.Message {
	return common.NewGetRequest(r.ID, timeoutMs(r.Options.Timeout))
}

func (r *GetRequest) Complete(resp *common.Message, err error) {
	if err != nil {
		r.done <- GetOutcome{Err: err}
		return
	}
	if !resp.Ok {
		r.done <- GetOutcome{}
		return
	}
	r.done <- GetOutcome{
		Result: &document.GetResult{
			Content: resp.Value,
			Flags:   resp.Flags,
			Cas:     resp.Cas,
		},
		Found: true,
	}
}

// --------------------------------------------------------------------------
// Mutations (Upsert, Insert, Replace, Remove)
// --------------------------------------------------------------------------

// MutationOutcome is the resolved result of a mutation request.
type MutationOutcome struct {
	Result *document.MutationResult
	Err    error
}

// mutationDone is the shared completion half of all mutation requests.
type mutationDone struct {
	done chan MutationOutcome
}

// Done returns the channel the outcome is delivered on.
func (m *mutationDone) Done() <-chan MutationOutcome { return m.done }

func (m *mutationDone) Complete(resp *common.Message, err error) {
	if err != nil {
		m.done <- MutationOutcome{Err: err}
		return
	}
	m.done <- MutationOutcome{Result: &document.MutationResult{Cas: resp.Cas}}
}

// UpsertRequest stores a document unconditionally.
type UpsertRequest struct {
	ID      string
	Content []byte
	Flags   uint32
	Options document.StoreOptions

	mutationDone
}

// NewUpsertRequest creates a single-use Upsert request.
func NewUpsertRequest(id string, content []byte, flags uint32, opts document.StoreOptions) *UpsertRequest {
	return &UpsertRequest{
		ID:           id,
		Content:      content,
		Flags:        flags,
		Options:      opts,
		mutationDone: mutationDone{done: make(chan MutationOutcome, 1)},
	}
}

func (r *UpsertRequest) Timeout() time.Duration { return r.Options.Timeout }

func (r *UpsertRequest) Encode() *common.Message {
	return common.NewUpsertRequest(r.ID, r.Content, r.Flags, r.Options.Expiry, timeoutMs(r.Options.Timeout))
}

// InsertRequest stores a document only if the id does not exist yet.
type InsertRequest struct {
	ID      string
	Content []byte
	Flags   uint32
	Options document.StoreOptions

	mutationDone
}

// NewInsertRequest creates a single-use Insert request.
func NewInsertRequest(id string, content []byte, flags uint32, opts document.StoreOptions) *InsertRequest {
	return &InsertRequest{
		ID:           id,
		Content:      content,
		Flags:        flags,
		Options:      opts,
		mutationDone: mutationDone{done: make(chan MutationOutcome, 1)},
	}
}

func (r *InsertRequest) Timeout() time.Duration { return r.Options.Timeout }

func (r *InsertRequest) Encode() *common.Message {
	return common.NewInsertRequest(r.ID, r.Content, r.Flags, r.Options.Expiry, timeoutMs(r.Options.Timeout))
}

// ReplaceRequest stores a document only if the id already exists, optionally
// guarded by the CAS in its options.
type ReplaceRequest struct {
	ID      string
	Content []byte
	Flags   uint32
	Options document.StoreOptions

	mutationDone
}

// NewReplaceRequest creates a single-use Replace request.
func NewReplaceRequest(id string, content []byte, flags uint32, opts document.StoreOptions) *ReplaceRequest {
	return &ReplaceRequest{
		ID:           id,
		Content:      content,
		Flags:        flags,
		Options:      opts,
		mutationDone: mutationDone{done: make(chan MutationOutcome, 1)},
	}
}

func (r *ReplaceRequest) Timeout() time.Duration { return r.Options.Timeout }

func (r *ReplaceRequest) Encode() *common.Message {
	return common.NewReplaceRequest(r.ID, r.Content, r.Flags, r.Options.Expiry, r.Options.Cas, timeoutMs(r.Options.Timeout))
}

// RemoveRequest deletes a document, optionally guarded by the CAS in its
// options.
type RemoveRequest struct {
	ID      string
	Options document.RemoveOptions

	mutationDone
}

// NewRemoveRequest creates a single-use Remove request.
func NewRemoveRequest(id string, opts document.RemoveOptions) *RemoveRequest {
	return &RemoveRequest{
		ID:           id,
		Options:      opts,
		mutationDone: mutationDone{done: make(chan MutationOutcome, 1)},
	}
}

func (r *RemoveRequest) Timeout() time.Duration { return r.Options.Timeout }

func (r *RemoveRequest) Encode() *common.Message {
	return common.NewRemoveRequest(r.ID, r.Options.Cas, timeoutMs(r.Options.Timeout))
}

// --------------------------------------------------------------------------
// Exists / EngineInfo
// --------------------------------------------------------------------------

// ExistsOutcome is the resolved result of an ExistsRequest.
type ExistsOutcome struct {
	Found bool
	Err   error
}

// ExistsRequest checks whether a document exists for an id.
type ExistsRequest struct {
	ID string

	done chan ExistsOutcome
}

// NewExistsRequest creates a single-use Exists request.
func NewExistsRequest(id string) *ExistsRequest {
	return &ExistsRequest{ID: id, done: make(chan ExistsOutcome, 1)}
}

// Done returns the channel the outcome is delivered on.
func (r *ExistsRequest) Done() <-chan ExistsOutcome { return r.done }

func (r *ExistsRequest) Timeout() time.Duration { return 0 }

func (r *ExistsRequest) Encode() *common.Message {
	return common.NewExistsRequest(r.ID)
}

func (r *ExistsRequest) Complete(resp *common.Message, err error) {
	if err != nil {
		r.done <- ExistsOutcome{Err: err}
		return
	}
	r.done <- ExistsOutcome{Found: resp.Ok}
}

// InfoOutcome is the resolved result of an InfoRequest.
type InfoOutcome struct {
	Info engine.EngineInfo
	Err  error
}

// InfoRequest retrieves metadata about the remote engine.
type InfoRequest struct {
	done chan InfoOutcome
}

// NewInfoRequest creates a single-use EngineInfo request.
func NewInfoRequest() *InfoRequest {
	return &InfoRequest{done: make(chan InfoOutcome, 1)}
}

// Done returns the channel the outcome is delivered on.
func (r *InfoRequest) Done() <-chan InfoOutcome { return r.done }

func (r *InfoRequest) Timeout() time.Duration { return 0 }

func (r *InfoRequest) Encode() *common.Message {
	return common.NewEngineInfoRequest()
}

func (r *InfoRequest) Complete(resp *common.Message, err error) {
	if err != nil {
		r.done <- InfoOutcome{Err: err}
		return
	}
	var info engine.EngineInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		r.done <- InfoOutcome{Err: document.NewError(engine.StatusEncoding, err.Error())}
		return
	}
	r.done <- InfoOutcome{Info: info}
}

// --------------------------------------------------------------------------
// Locks (Acquire, Release)
// --------------------------------------------------------------------------

// AcquireOutcome is the resolved result of an AcquireRequest.
type AcquireOutcome struct {
	Acquired bool
	OwnerID  []byte
	Err      error
}

// AcquireRequest tries to acquire a distributed lock.
type AcquireRequest struct {
	Key string
	// TTL is the lock timeout in logical ticks of the backing collection.
	TTL uint64

	done chan AcquireOutcome
}

// NewAcquireRequest creates a single-use lock Acquire request.
func NewAcquireRequest(key string, ttl uint64) *AcquireRequest {
	return &AcquireRequest{Key: key, TTL: ttl, done: make(chan AcquireOutcome, 1)}
}

// Done returns the channel the outcome is delivered on.
func (r *AcquireRequest) Done() <-chan AcquireOutcome { return r.done }

func (r *AcquireRequest) Timeout() time.Duration { return 0 }

func (r *AcquireRequest) Encode() *common.Message {
	return common.NewAcquireRequest(r.Key, r.TTL)
}

func (r *AcquireRequest) Complete(resp *common.Message, err error) {
	if err != nil {
		r.done <- AcquireOutcome{Err: err}
		return
	}
	r.done <- AcquireOutcome{Acquired: resp.Ok, OwnerID: resp.Value}
}

// ReleaseOutcome is the resolved result of a ReleaseRequest.
type ReleaseOutcome struct {
	Released bool
	Err      error
}

// ReleaseRequest releases a previously acquired lock.
type ReleaseRequest struct {
	Key     string
	OwnerID []byte

	done chan ReleaseOutcome
}

// NewReleaseRequest creates a single-use lock Release request.
func NewReleaseRequest(key string, ownerID []byte) *ReleaseRequest {
	return &ReleaseRequest{Key: key, OwnerID: ownerID, done: make(chan ReleaseOutcome, 1)}
}

// Done returns the channel the outcome is delivered on.
func (r *ReleaseRequest) Done() <-chan ReleaseOutcome { return r.done }

func (r *ReleaseRequest) Timeout() time.Duration { return 0 }

func (r *ReleaseRequest) Encode() *common.Message {
	return common.NewReleaseRequest(r.Key, r.OwnerID)
}

func (r *ReleaseRequest) Complete(resp *common.Message, err error) {
	if err != nil {
		r.done <- ReleaseOutcome{Err: err}
		return
	}
	r.done <- ReleaseOutcome{Released: resp.Ok}
}
