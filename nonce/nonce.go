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

// Package nonce keeps the per-signer replay counters consumed by signature checks.
package nonce

import (
	"errors"
	"fmt"
	"math"

	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/database/types"
	"github.com/ethereum/go-ethereum/common"
)

var ErrNonceExhausted = errors.New("nonce exhausted")

// Authority tracks a monotonic counter per signer address. Each component
// uses its own namespace so that nonces are not shared between signing domains
type Authority struct {
	namespace string
}

func NewAuthority(namespace string) *Authority {
	return &Authority{namespace: namespace}
}

func (a *Authority) Namespace() string {
	return a.namespace
}

// Nonce returns the next unused nonce for addr
func (a *Authority) Nonce(txn *database.Txn, addr common.Address) (uint64, error) {
	val, err := txn.Get(types.NonceKey(a.namespace, addr.Bytes()))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read nonce: %w", err)
	}
	return types.BytesToUint64(val), nil
}

// Use consumes the current nonce for addr and returns it. Any signature made
// over the returned value can no longer be verified
func (a *Authority) Use(txn *database.Txn, addr common.Address) (uint64, error) {
	current, err := a.Nonce(txn, addr)
	if err != nil {
		return 0, err
	}
	if current == math.MaxUint64 {
		return 0, ErrNonceExhausted
	}
	if err := txn.Set(
		types.NonceKey(a.namespace, addr.Bytes()),
		types.Uint64ToBytes(current+1),
	); err != nil {
		return 0, fmt.Errorf("write nonce: %w", err)
	}
	return current, nil
}
