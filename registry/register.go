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

package registry

import (
	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/database/types"
	"github.com/blinklabs-io/lineage/event"
	"github.com/blinklabs-io/lineage/typeddata"
	"github.com/ethereum/go-ethereum/common"
)

// Register issues a new id with caller as custody address. params.Custody
// may be left zero, otherwise it must equal caller
func (r *Registry) Register(caller common.Address, params RegisterParams) (uint64, error) {
	if params.Custody != (common.Address{}) && params.Custody != caller {
		return 0, ErrUnauthorized
	}
	params.Custody = caller
	var id uint64
	err := r.mutate(func(txn *database.Txn) error {
		var err error
		id, err = r.registerTxn(txn, params)
		return err
	})
	return id, err
}

// RegisterFor issues a new id for params.Custody, authorized by a signature of that address
func (r *Registry) RegisterFor(params RegisterParams, auth typeddata.Authorization) (uint64, error) {
	var id uint64
	err := r.mutate(func(txn *database.Txn) error {
		if err := r.verifier.Verify(
			txn,
			params.Custody,
			RegisterSchema,
			RegisterMessage(params),
			auth,
		); err != nil {
			return err
		}
		var err error
		id, err = r.registerTxn(txn, params)
		return err
	})
	return id, err
}

// RegisterAndDelegate registers a new account for caller and grants an
// ALL delegation from it to the existing account delegateTo in the same transaction
func (r *Registry) RegisterAndDelegate(
	caller common.Address,
	params RegisterParams,
	delegateTo uint64,
) (uint64, error) {
	r.mu.RLock()
	bootstrapper := r.bootstrapper
	r.mu.RUnlock()
	if bootstrapper == nil {
		return 0, ErrBootstrapUnavailable
	}
	if params.Custody != (common.Address{}) && params.Custody != caller {
		return 0, ErrUnauthorized
	}
	params.Custody = caller
	var id uint64
	err := r.mutate(func(txn *database.Txn) error {
		if _, err := r.loadAccount(txn, delegateTo); err != nil {
			return err
		}
		var err error
		id, err = r.registerTxn(txn, params)
		if err != nil {
			return err
		}
		return bootstrapper.BootstrapDelegateAllTxn(txn, r.Address(), id, delegateTo)
	})
	return id, err
}

func (r *Registry) registerTxn(txn *database.Txn, params RegisterParams) (uint64, error) {
	if params.Custody == (common.Address{}) {
		return 0, ErrInvalidAddress
	}
	existing, err := r.IDOfTxn(txn, params.Custody)
	if err != nil {
		return 0, err
	}
	if existing != 0 {
		return 0, ErrCustodyAlreadyRegistered
	}
	if params.Operator != (common.Address{}) {
		if params.Operator == params.Custody {
			return 0, ErrOperatorCannotBeCustody
		}
		existing, err := r.IDOfTxn(txn, params.Operator)
		if err != nil {
			return 0, err
		}
		if existing != 0 {
			return 0, ErrOperatorAlreadyRegistered
		}
	}
	counter, err := r.IDCounterTxn(txn)
	if err != nil {
		return 0, err
	}
	id := counter + 1
	if err := r.claimUsername(txn, params.Username, id); err != nil {
		return 0, err
	}
	if err := txn.Set([]byte(types.RegistryIdCounterKey), types.Uint64ToBytes(id)); err != nil {
		return 0, err
	}
	rec := accountRecord{
		Custody:  params.Custody,
		Operator: params.Operator,
		Recovery: params.Recovery,
		Username: params.Username,
	}
	if err := r.storeAccount(txn, id, rec); err != nil {
		return 0, err
	}
	if err := r.setIDOf(txn, params.Custody, id); err != nil {
		return 0, err
	}
	if err := r.setIDOf(txn, params.Operator, id); err != nil {
		return 0, err
	}
	txn.OnCommit(r.metrics.registered.Inc)
	r.publishOnCommit(txn, pendingEvent{
		evtType: event.RegistryRegisteredEventType,
		data: event.RegisteredEvent{
			ID:       id,
			Custody:  params.Custody,
			Operator: params.Operator,
			Recovery: params.Recovery,
			Username: params.Username,
		},
	})
	r.logger.Info(
		"account registered",
		"component", "registry",
		"id", id,
		"custody", params.Custody.Hex(),
		"username", params.Username,
	)
	return id, nil
}
