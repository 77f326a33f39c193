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
	"github.com/blinklabs-io/lineage/event"
	"github.com/blinklabs-io/lineage/typeddata"
	"github.com/ethereum/go-ethereum/common"
)

// Transfer moves the account held by caller to the address to, which must
// consent with toAuth and must not hold an account
func (r *Registry) Transfer(
	caller common.Address,
	to common.Address,
	toAuth typeddata.Authorization,
) error {
	return r.transferDirect(caller, to, toAuth, TransferSchema, false)
}

// TransferFor is the relayed form of Transfer, authorized by both the custody address and to
func (r *Registry) TransferFor(
	id uint64,
	to common.Address,
	custodyAuth typeddata.Authorization,
	toAuth typeddata.Authorization,
) error {
	return r.transferRelayed(id, to, custodyAuth, toAuth, TransferSchema, false)
}

// TransferAndClearRecovery is Transfer followed by clearing the recovery address
func (r *Registry) TransferAndClearRecovery(
	caller common.Address,
	to common.Address,
	toAuth typeddata.Authorization,
) error {
	return r.transferDirect(caller, to, toAuth, TransferAndClearRecoverySchema, true)
}

func (r *Registry) TransferAndClearRecoveryFor(
	id uint64,
	to common.Address,
	custodyAuth typeddata.Authorization,
	toAuth typeddata.Authorization,
) error {
	return r.transferRelayed(id, to, custodyAuth, toAuth, TransferAndClearRecoverySchema, true)
}

func (r *Registry) transferDirect(
	caller common.Address,
	to common.Address,
	toAuth typeddata.Authorization,
	schema typeddata.Schema,
	clearRecovery bool,
) error {
	return r.mutate(func(txn *database.Txn) error {
		id, rec, err := r.custodyID(txn, caller)
		if err != nil {
			return err
		}
		if err := r.verifier.Verify(txn, to, schema, TransferMessage(id, to), toAuth); err != nil {
			return err
		}
		return r.transferTxn(txn, id, rec, to, clearRecovery)
	})
}

func (r *Registry) transferRelayed(
	id uint64,
	to common.Address,
	custodyAuth typeddata.Authorization,
	toAuth typeddata.Authorization,
	schema typeddata.Schema,
	clearRecovery bool,
) error {
	return r.mutate(func(txn *database.Txn) error {
		rec, err := r.loadAccount(txn, id)
		if err != nil {
			return err
		}
		msg := TransferMessage(id, to)
		if err := r.verifier.Verify(txn, rec.Custody, schema, msg, custodyAuth); err != nil {
			return err
		}
		if err := r.verifier.Verify(txn, to, schema, msg, toAuth); err != nil {
			return err
		}
		return r.transferTxn(txn, id, rec, to, clearRecovery)
	})
}

// Recover moves the account to the address to. Only the recovery address of the account may call it
func (r *Registry) Recover(
	caller common.Address,
	id uint64,
	to common.Address,
	toAuth typeddata.Authorization,
) error {
	return r.mutate(func(txn *database.Txn) error {
		rec, err := r.loadAccount(txn, id)
		if err != nil {
			return err
		}
		if rec.Recovery == (common.Address{}) || rec.Recovery != caller {
			return ErrNotRecovery
		}
		if err := r.verifier.Verify(txn, to, RecoverSchema, RecoverMessage(id, to), toAuth); err != nil {
			return err
		}
		return r.recoverTxn(txn, id, rec, to)
	})
}

// RecoverFor is the relayed form of Recover, authorized by the recovery address and to
func (r *Registry) RecoverFor(
	id uint64,
	to common.Address,
	recoveryAuth typeddata.Authorization,
	toAuth typeddata.Authorization,
) error {
	return r.mutate(func(txn *database.Txn) error {
		rec, err := r.loadAccount(txn, id)
		if err != nil {
			return err
		}
		if rec.Recovery == (common.Address{}) {
			return ErrNotRecovery
		}
		msg := RecoverMessage(id, to)
		if err := r.verifier.Verify(txn, rec.Recovery, RecoverSchema, msg, recoveryAuth); err != nil {
			return err
		}
		if err := r.verifier.Verify(txn, to, RecoverSchema, msg, toAuth); err != nil {
			return err
		}
		return r.recoverTxn(txn, id, rec, to)
	})
}

func (r *Registry) recoverTxn(txn *database.Txn, id uint64, rec accountRecord, to common.Address) error {
	recovery := rec.Recovery
	if err := r.transferTxn(txn, id, rec, to, false); err != nil {
		return err
	}
	r.metrics.mutation(txn, "recover")
	r.publishOnCommit(txn, pendingEvent{
		evtType: event.RegistryRecoveredEventType,
		data:    event.RecoveredEvent{ID: id, By: recovery, To: to},
	})
	r.logger.Info(
		"account recovered",
		"component", "registry",
		"id", id,
		"by", recovery.Hex(),
		"to", to.Hex(),
	)
	return nil
}

func (r *Registry) transferTxn(
	txn *database.Txn,
	id uint64,
	rec accountRecord,
	to common.Address,
	clearRecovery bool,
) error {
	if to == (common.Address{}) {
		return ErrInvalidAddress
	}
	existing, err := r.IDOfTxn(txn, to)
	if err != nil {
		return err
	}
	if existing != 0 {
		return ErrAddressAlreadyRegistered
	}
	from := rec.Custody
	if err := r.setIDOf(txn, from, 0); err != nil {
		return err
	}
	if err := r.setIDOf(txn, to, id); err != nil {
		return err
	}
	rec.Custody = to
	evts := []pendingEvent{
		{
			evtType: event.RegistryTransferEventType,
			data:    event.TransferEvent{ID: id, From: from, To: to},
		},
	}
	if clearRecovery && rec.Recovery != (common.Address{}) {
		rec.Recovery = common.Address{}
		evts = append(evts, pendingEvent{
			evtType: event.RegistryRecoveryChangedEventType,
			data:    event.RecoveryChangedEvent{ID: id},
		})
	}
	if err := r.storeAccount(txn, id, rec); err != nil {
		return err
	}
	r.metrics.mutation(txn, "transfer")
	r.publishOnCommit(txn, evts...)
	r.logger.Info(
		"account transferred",
		"component", "registry",
		"id", id,
		"from", from.Hex(),
		"to", to.Hex(),
	)
	return nil
}
