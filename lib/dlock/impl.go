package dlock

import (
	"bytes"

	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/lib/engine"
)

type lockMgrImpl struct {
	coll document.ICollection
}

func NewLockManager(coll document.ICollection) ILockManager {
	return &lockMgrImpl{
		coll: coll,
	}
}

func (lm *lockMgrImpl) AcquireLock(key string, timeout uint64) (bool, []byte, error) {
	// Generate owner ID (256 byte random value)
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, nil, err
	}

	// Try to acquire the lock. Insert only succeeds if the key is absent,
	// so exactly one contender wins.
	_, err = lm.coll.Insert(key, ownerID, 0, document.StoreOptions{Expiry: timeout})
	if err != nil {
		// Lock held by someone else
		if document.StatusOf(err) == engine.StatusKeyExists {
			return false, nil, nil
		}
		return false, nil, err
	}

	return true, ownerID, nil
}

func (lm *lockMgrImpl) ReleaseLock(key string, ownerID []byte) (bool, error) {
	// Check if the lock exists
	result, found, err := lm.coll.Get(key, document.GetOptions{})
	if err != nil || !found {
		return err == nil, err
	}

	// Check if the lock is owned by us
	if !bytes.Equal(ownerID, result.Content) {
		return false, nil
	}

	// Release the lock. The CAS guard ensures we only remove the revision we
	// inspected, never a lock re-acquired by someone else in the meantime.
	_, err = lm.coll.Remove(key, document.RemoveOptions{Cas: result.Cas})
	if err != nil {
		switch document.StatusOf(err) {
		case engine.StatusKeyNotFound, engine.StatusCasMismatch:
			// The lock expired or changed hands after our Get
			return false, nil
		}
		return false, err
	}
	return true, nil
}
