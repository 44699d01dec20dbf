package server

import (
	"fmt"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/lib/document/local"
	"github.com/lweidner/akv/lib/document/raft"
	"github.com/lweidner/akv/lib/engine"
	"github.com/lweidner/akv/lib/engine/cedar"
	"github.com/lweidner/akv/rpc/common"
	"github.com/lweidner/akv/rpc/serializer"
	"github.com/lweidner/akv/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the collection it encapsulates and the adapter
// that handles requests for the collection
type serverShard struct {
	Collection document.ICollection
	Adapter    IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	// Create shards map
	shardMap := xsync.NewMapOf[uint64, serverShard]()

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     shardMap,
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(shardId uint64, req []byte) []byte {
		var msg common.Message
		var respMsg common.Message

		start := time.Now()

		// Get appropriate shard
		shard, ok := s.shards.Load(shardId)

		// Case shard does not exist -> error
		if !ok {
			respMsg = *common.NewErrorResponse("shard not found")
		} else {
			// Decode the request
			err := s.serializer.Deserialize(req, &msg)

			if err != nil {
				respMsg = *common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
			} else {
				// Let the adapter handle the request
				respMsg = *shard.Adapter.Handle(&msg, shard.Collection)
			}
		}

		recordMetrics(msg.MsgType, &respMsg, time.Since(start))

		// Return result
		val, err := s.serializer.Serialize(respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %v", err)
			return nil
		}
		return val
	})
}

// recordMetrics updates the per operation counters and duration summary.
func recordMetrics(op common.MessageType, resp *common.Message, duration time.Duration) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`akv_rpc_requests_total{op=%q}`, op)).Inc()
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		metrics.GetOrCreateCounter(fmt.Sprintf(`akv_rpc_request_errors_total{op=%q}`, op)).Inc()
	}
	metrics.GetOrCreateSummary(fmt.Sprintf(`akv_rpc_request_duration_seconds{op=%q}`, op)).Update(duration.Seconds())
}

func (s *rpcServer) init() error {

	// Init logger
	common.InitLoggers(s.config)

	// Function to create a new engine instance
	engineFactory := func() engine.IEngine { return cedar.NewCedarEngine(nil) }

	// Create the Dragonboat NodeHost
	var nodeHost *dragonboat.NodeHost
	var err error
	if s.config.HasReplicatedShard() {
		// Only create the NodeHost if we have replicated shards
		nodeHost, err = dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
	}

	// Configure the timeout for the replicated collection
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	// CREATE SHARDS

	/*
		Note: A single RPC Server can have any number of replicated and or local
		shards. Each shard can be a collection or a lock manager. The following
		loop creates all the shards and stores them for the RPC server.
	*/

	for _, shardConfig := range s.config.Shards {

		// Case local collection
		if shardConfig.Type == common.ShardTypeLocalCollection {
			s.shards.Store(shardConfig.ShardID, serverShard{
				Collection: local.NewLocalCollection(engineFactory),
				Adapter:    NewCollectionServerAdapter(),
			})
			Logger.Infof("created local collection for shard %d", shardConfig.ShardID)

			// Case local lock
		} else if shardConfig.Type == common.ShardTypeLocalLockManager {
			s.shards.Store(shardConfig.ShardID, serverShard{
				Collection: local.NewLocalCollection(engineFactory),
				Adapter:    NewLockManagerServerAdapter(),
			})
			Logger.Infof("created local lock manager for shard %d", shardConfig.ShardID)

			// Case replicated collection or replicated lock
		} else {
			if nodeHost == nil {
				return fmt.Errorf("node host is nil, cannot create replicated collection")
			}

			// Start Raft for the shard
			if err := nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false, raft.CreateStateMachineFactory(engineFactory), s.config.ToDragonboatConfig(shardConfig.ShardID)); err != nil {
				Logger.Errorf("failed to start shard %v: %v", shardConfig.ShardID, err)
			}

			// Choose the appropriate adapter based on the shard type
			var adapter IRPCServerAdapter
			if shardConfig.Type == common.ShardTypeReplicatedLockManager { // Case replicated lock manager
				adapter = NewLockManagerServerAdapter()
			} else if shardConfig.Type == common.ShardTypeReplicatedCollection { // Case replicated collection
				adapter = NewCollectionServerAdapter()
			} else {
				return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
			}

			s.shards.Store(shardConfig.ShardID, serverShard{
				Collection: raft.NewReplicatedCollection(nodeHost, shardConfig.ShardID, timeout),
				Adapter:    adapter,
			})
		}
	}

	Logger.Infof("akv setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer
func (s *rpcServer) Serve() error {
	err := s.init()
	if err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}
