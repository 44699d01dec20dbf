package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/rpc/common"
)

func NewCollectionServerAdapter() IRPCServerAdapter {
	return &collectionServerAdapterImpl{}
}

type collectionServerAdapterImpl struct{}

func (adapter *collectionServerAdapterImpl) Handle(req *common.Message, coll document.ICollection) *common.Message {
	// Check for nil collection
	if coll == nil {
		return common.NewErrorResponse("handler: collection is nil")
	}

	timeout := time.Duration(req.TimeoutMs) * time.Millisecond

	// Handle different message types
	switch req.MsgType {
	case common.MsgTDocGet:
		result, found, err := coll.Get(req.Key, document.GetOptions{Timeout: timeout})
		if !found || err != nil {
			return common.NewGetResponse(nil, 0, 0, false, err)
		}
		return common.NewGetResponse(result.Content, result.Flags, result.Cas, true, nil)
	case common.MsgTDocUpsert:
		result, err := coll.Upsert(req.Key, req.Value, req.Flags, document.StoreOptions{
			Expiry:  req.Expiry,
			Timeout: timeout,
		})
		return mutationResponse(req.MsgType, result, err)
	case common.MsgTDocInsert:
		result, err := coll.Insert(req.Key, req.Value, req.Flags, document.StoreOptions{
			Expiry:  req.Expiry,
			Timeout: timeout,
		})
		return mutationResponse(req.MsgType, result, err)
	case common.MsgTDocReplace:
		result, err := coll.Replace(req.Key, req.Value, req.Flags, document.StoreOptions{
			Expiry:  req.Expiry,
			Cas:     req.Cas,
			Timeout: timeout,
		})
		return mutationResponse(req.MsgType, result, err)
	case common.MsgTDocRemove:
		result, err := coll.Remove(req.Key, document.RemoveOptions{
			Cas:     req.Cas,
			Timeout: timeout,
		})
		return mutationResponse(req.MsgType, result, err)
	case common.MsgTDocExists:
		found, err := coll.Exists(req.Key)
		return common.NewExistsResponse(found, err)
	case common.MsgTDocInfo:
		info, err := coll.GetEngineInfo()
		if err != nil {
			return common.NewEngineInfoResponse(nil, err)
		}
		meta, err := json.Marshal(info)
		return common.NewEngineInfoResponse(meta, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC CollectionAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// mutationResponse builds the response for a mutation outcome.
func mutationResponse(msgType common.MessageType, result *document.MutationResult, err error) *common.Message {
	if err != nil {
		return common.NewMutationResponse(msgType, 0, err)
	}
	return common.NewMutationResponse(msgType, result.Cas, nil)
}
