package internal

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTGet           QueryType = iota // Retrieve a document by id.
	QueryTExists                         // Check if a document exists for an id.
	QueryTGetEngineInfo                  // Retrieve metadata about the engine underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTExists:
		return "Exists"
	case QueryTGetEngineInfo:
		return "GetEngineInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or StaleRead
type Query struct {
	Type QueryType // The type of Query to perform.
	Key  string    // The id for the Query (empty for some queries).
}

// QueryResult is the result of a QueryTGet operation.
// All other query results are primitive types or predefined structs
// (bool, engine.EngineInfo).
type QueryResult struct {
	Ok    bool
	Value []byte
	Flags uint32
	Cas   uint64
}
