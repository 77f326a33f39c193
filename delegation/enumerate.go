// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package delegation

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/database/types"
	"github.com/ethereum/go-ethereum/common"
)

func (e *Engine) logLength(txn *database.Txn, outgoing bool, id uint64) (uint64, error) {
	val, err := txn.Get(types.DelegationLogLengthKey(outgoing, id))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read delegation log length: %w", err)
	}
	return types.BytesToUint64(val), nil
}

// appendLog adds hash to the outgoing or incoming log of id. Logs are never shortened
func (e *Engine) appendLog(txn *database.Txn, outgoing bool, id uint64, hash common.Hash) error {
	length, err := e.logLength(txn, outgoing, id)
	if err != nil {
		return err
	}
	if err := txn.Set(types.DelegationLogEntryKey(outgoing, id, length), hash.Bytes()); err != nil {
		return err
	}
	return txn.Set(types.DelegationLogLengthKey(outgoing, id), types.Uint64ToBytes(length+1))
}

// readLog returns every hash ever appended to a log, oldest first
func (e *Engine) readLog(txn *database.Txn, outgoing bool, id uint64) ([]common.Hash, error) {
	prefix := types.DelegationLogPrefix(outgoing, id)
	var ret []common.Hash
	err := txn.Iterate(prefix, func(key []byte, val []byte) error {
		// Skip the length key, which shares the prefix
		if len(key) != len(prefix)+8 {
			return nil
		}
		ret = append(ret, common.BytesToHash(val))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read delegation log: %w", err)
	}
	return ret, nil
}

// activeFromLog filters a log down to the hashes whose record is active
func (e *Engine) activeFromLog(
	txn *database.Txn,
	outgoing bool,
	id uint64,
) ([]common.Hash, []Delegation, error) {
	hashes, err := e.readLog(txn, outgoing, id)
	if err != nil {
		return nil, nil, err
	}
	var activeHashes []common.Hash
	var delegations []Delegation
	for _, hash := range hashes {
		rec, err := e.loadRecord(txn, Location(hash))
		if err != nil {
			return nil, nil, err
		}
		if rec.status() != StatusActive {
			continue
		}
		activeHashes = append(activeHashes, hash)
		delegations = append(delegations, rec.delegation())
	}
	return activeHashes, delegations, nil
}

func (e *Engine) enumerate(outgoing bool, id uint64) ([]common.Hash, []Delegation, error) {
	var hashes []common.Hash
	var delegations []Delegation
	err := e.db.View(func(txn *database.Txn) error {
		var err error
		hashes, delegations, err = e.activeFromLog(txn, outgoing, id)
		return err
	})
	return hashes, delegations, err
}

// OutgoingDelegations returns the active delegations granted by id
func (e *Engine) OutgoingDelegations(id uint64) ([]Delegation, error) {
	_, ret, err := e.enumerate(true, id)
	return ret, err
}

// IncomingDelegations returns the active delegations granted to id
func (e *Engine) IncomingDelegations(id uint64) ([]Delegation, error) {
	_, ret, err := e.enumerate(false, id)
	return ret, err
}

func (e *Engine) OutgoingDelegationHashes(id uint64) ([]common.Hash, error) {
	ret, _, err := e.enumerate(true, id)
	return ret, err
}

func (e *Engine) IncomingDelegationHashes(id uint64) ([]common.Hash, error) {
	ret, _, err := e.enumerate(false, id)
	return ret, err
}

// DelegationsFromHashes looks up delegations by hash. Hashes without an
// active record yield a zero Delegation at the same index
func (e *Engine) DelegationsFromHashes(hashes []common.Hash) ([]Delegation, error) {
	ret := make([]Delegation, len(hashes))
	err := e.db.View(func(txn *database.Txn) error {
		for i, hash := range hashes {
			rec, err := e.loadRecord(txn, Location(hash))
			if err != nil {
				return err
			}
			if rec.status() == StatusActive {
				ret[i] = rec.delegation()
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Status returns the state of the record for a delegation hash
func (e *Engine) Status(hash common.Hash) (Status, error) {
	var ret Status
	err := e.db.View(func(txn *database.Txn) error {
		rec, err := e.loadRecord(txn, Location(hash))
		if err != nil {
			return err
		}
		ret = rec.status()
		return nil
	})
	return ret, err
}
