package raft

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/lib/document/raft/internal"
	"github.com/lweidner/akv/lib/engine"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// DocumentStateMachine is a state machine implementation for Dragonboat RAFT
type DocumentStateMachine struct {
	replicaID uint64
	shardID   uint64
	eng       engine.IEngine // the actual document storage
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host.
// The factory pattern is used to enable the caller to pass an interchangeable engine factory.
func CreateStateMachineFactory(engineFactory document.EngineFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &DocumentStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			eng:       engineFactory(),
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the corresponding engine method.
func (fsm *DocumentStateMachine) Lookup(itf interface{}) (interface{}, error) {

	// try to parse Query into Query struct
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, document.NewError(engine.StatusInternal, fmt.Sprintf("invalid Query type: %T", itf))
	}

	// Handle different Query types
	switch q.Type {
	case internal.QueryTGet:
		if !fsm.eng.SupportsFeature(engine.FeatureGet) {
			return nil, document.NewError(engine.StatusUnsupported, "Get operation is not supported")
		}
		value, flags, cas, found := fsm.eng.Get(q.Key)
		return internal.QueryResult{
			Ok:    found,
			Value: value,
			Flags: flags,
			Cas:   cas,
		}, nil
	case internal.QueryTExists:
		if !fsm.eng.SupportsFeature(engine.FeatureExists) {
			return nil, document.NewError(engine.StatusUnsupported, "Exists operation is not supported")
		}
		return fsm.eng.Exists(q.Key), nil
	case internal.QueryTGetEngineInfo:
		return fsm.eng.GetInfo(), nil
	default:
		return nil, document.NewError(engine.StatusInvalid, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// Update handles write commands on the engine instance.
// All mutations are serialized into []byte and are accessible via the entries slice.
// The raft entry index serves as the write index, so the CAS of a successful
// mutation equals the index of the log entry that applied it. On success the
// result carries that CAS big endian encoded in its Data field.
func (fsm *DocumentStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	// Stats
	start := time.Now()

	for idx, e := range entries {
		// Handle each entry
		if len(e.Cmd) == 0 {
			entries[idx].Result = sm.Result{Value: uint64(engine.StatusInvalid), Data: []byte("empty command ignored")}
			continue
		}
		// Deserialize the command
		cmd := internal.Command{}
		err := cmd.Deserialize(e.Cmd)
		if err != nil {
			entries[idx].Result = sm.Result{Value: uint64(engine.StatusInternal), Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
			continue
		}

		// Check if the engine supports the operation
		feat, err := cmd.Type.ToEngineFeature()
		if err != nil {
			entries[idx].Result = sm.Result{
				Value: uint64(engine.StatusInvalid),
				Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
			}
			continue
		}
		if !fsm.eng.SupportsFeature(feat) {
			entries[idx].Result = sm.Result{
				Value: uint64(engine.StatusUnsupported),
				Data:  []byte(fmt.Sprintf("%s operation is not supported", cmd.Type)),
			}
			continue
		}

		switch cmd.Type {
		case internal.CommandTUpsert, internal.CommandTInsert, internal.CommandTReplace:
			mode, err := cmd.Type.ToStoreMode()
			if err != nil {
				entries[idx].Result = sm.Result{
					Value: uint64(engine.StatusInvalid),
					Data:  []byte(err.Error()),
				}
				continue
			}
			newCas, status := fsm.eng.Store(cmd.Key, cmd.Value, cmd.Flags, e.Index, cmd.Expiry, mode, cmd.Cas)
			entries[idx].Result = mutationResult(status, newCas, cmd)
		case internal.CommandTRemove:
			status := fsm.eng.Remove(cmd.Key, e.Index, cmd.Cas)
			entries[idx].Result = mutationResult(status, e.Index, cmd)
		default:
			entries[idx].Result = sm.Result{
				Value: uint64(engine.StatusInvalid),
				Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
			}
		}
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// mutationResult builds the sm.Result for a mutation. Successful mutations
// carry the resulting CAS, failed ones a human readable reason.
func mutationResult(status engine.Status, cas uint64, cmd internal.Command) sm.Result {
	if status != engine.StatusOK {
		return sm.Result{
			Value: uint64(status),
			Data:  []byte(fmt.Sprintf("%s of %q failed", cmd.Type, cmd.Key)),
		}
	}
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, cas)
	return sm.Result{Value: uint64(engine.StatusOK), Data: data}
}

// PrepareSnapshot is not used. We don't need to prepare anything since we use fuzzy snapshotting
func (fsm *DocumentStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves a fuzzy engine snapshot to the writer
func (fsm *DocumentStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if !fsm.eng.SupportsFeature(engine.FeatureSave) {
		return fmt.Errorf("the used engine implementation does not support Save() operations")
	}
	return fsm.eng.Save(writer)
}

// RecoverFromSnapshot delegates snapshot recovery to the engine layer.
func (fsm *DocumentStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.eng.SupportsFeature(engine.FeatureLoad) {
		return fmt.Errorf("the used engine implementation does not support Load() operations")
	}
	return fsm.eng.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *DocumentStateMachine) Close() error {
	return fsm.eng.Close()
}
