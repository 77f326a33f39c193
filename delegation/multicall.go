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
	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/typeddata"
	"github.com/ethereum/go-ethereum/common"
)

// Call is one entry of a Multicall batch
type Call interface {
	apply(e *Engine, txn *database.Txn, caller common.Address) error
}

// DelegateCall runs Delegate for the batch caller
type DelegateCall struct {
	Request Request
}

func (c DelegateCall) apply(e *Engine, txn *database.Txn, caller common.Address) error {
	return e.delegateTxn(txn, caller, c.Request)
}

// DelegateForCall runs DelegateFor. The batch caller plays no part in its authorization
type DelegateForCall struct {
	Auth    typeddata.Authorization
	Request Request
}

func (c DelegateForCall) apply(e *Engine, txn *database.Txn, _ common.Address) error {
	return e.delegateForTxn(txn, c.Request, c.Auth)
}

// IncrementNonceCall consumes the delegation nonce of the batch caller
type IncrementNonceCall struct{}

func (IncrementNonceCall) apply(e *Engine, txn *database.Txn, caller common.Address) error {
	_, err := e.incrementNonceTxn(txn, caller)
	return err
}

// Multicall applies calls in order within one transaction. The first
// failure aborts the batch and nothing is stored
func (e *Engine) Multicall(caller common.Address, calls ...Call) error {
	return e.mutate(func(txn *database.Txn) error {
		for i, call := range calls {
			if err := call.apply(e, txn, caller); err != nil {
				e.logger.Debug(
					"multicall aborted",
					"component", "delegation",
					"index", i,
					"error", err,
				)
				return err
			}
		}
		return nil
	})
}
