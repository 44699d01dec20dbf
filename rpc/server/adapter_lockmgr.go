package server

import (
	"fmt"

	"github.com/lweidner/akv/lib/dlock"
	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/rpc/common"
)

func NewLockManagerServerAdapter() IRPCServerAdapter {
	return &lockMgrServerAdapterImpl{}
}

type lockMgrServerAdapterImpl struct{}

func (adapter *lockMgrServerAdapterImpl) Handle(req *common.Message, coll document.ICollection) (resp *common.Message) {

	// Check for nil collection
	if coll == nil {
		return common.NewErrorResponse("handler: collection is nil")
	}

	// Create lock manager
	locks := dlock.NewLockManager(coll)

	// Handle different message types
	switch req.MsgType {
	case common.MsgTLCKAcquire:
		ok, ownerID, err := locks.AcquireLock(req.Key, req.Expiry)
		return common.NewAcquireResponse(ok, ownerID, err)
	case common.MsgTLCKRelease:
		ok, err := locks.ReleaseLock(req.Key, req.Value)
		return common.NewReleaseResponse(ok, err)
	default:
		return common.NewErrorResponse(fmt.Sprintf("RPC LockManagerAdapter - Unsupported message type: %s", req.MsgType))
	}
}
