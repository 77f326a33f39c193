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

// ChangeOperator replaces the operator of the account held by caller. A zero
// operator removes it
func (r *Registry) ChangeOperator(caller common.Address, operator common.Address) error {
	return r.mutate(func(txn *database.Txn) error {
		id, rec, err := r.custodyID(txn, caller)
		if err != nil {
			return err
		}
		return r.changeOperatorTxn(txn, id, rec, operator)
	})
}

func (r *Registry) ChangeOperatorFor(
	id uint64,
	operator common.Address,
	auth typeddata.Authorization,
) error {
	return r.mutate(func(txn *database.Txn) error {
		rec, err := r.loadAccount(txn, id)
		if err != nil {
			return err
		}
		if err := r.verifier.Verify(
			txn,
			rec.Custody,
			ChangeOperatorSchema,
			ChangeOperatorMessage(id, operator),
			auth,
		); err != nil {
			return err
		}
		return r.changeOperatorTxn(txn, id, rec, operator)
	})
}

func (r *Registry) changeOperatorTxn(
	txn *database.Txn,
	id uint64,
	rec accountRecord,
	operator common.Address,
) error {
	if operator == rec.Custody {
		return ErrOperatorCannotBeCustody
	}
	if operator != (common.Address{}) {
		existing, err := r.IDOfTxn(txn, operator)
		if err != nil {
			return err
		}
		if existing != 0 {
			return ErrOperatorAlreadyRegistered
		}
	}
	if err := r.setIDOf(txn, rec.Operator, 0); err != nil {
		return err
	}
	if err := r.setIDOf(txn, operator, id); err != nil {
		return err
	}
	rec.Operator = operator
	if err := r.storeAccount(txn, id, rec); err != nil {
		return err
	}
	r.metrics.mutation(txn, "change_operator")
	r.publishOnCommit(txn, pendingEvent{
		evtType: event.RegistryOperatorChangedEventType,
		data:    event.OperatorChangedEvent{ID: id, Operator: operator},
	})
	return nil
}

// ChangeRecovery replaces the recovery address of the account held by
// caller. A zero recovery disables recovery
func (r *Registry) ChangeRecovery(caller common.Address, recovery common.Address) error {
	return r.mutate(func(txn *database.Txn) error {
		id, rec, err := r.custodyID(txn, caller)
		if err != nil {
			return err
		}
		return r.changeRecoveryTxn(txn, id, rec, recovery)
	})
}

func (r *Registry) ChangeRecoveryFor(
	id uint64,
	recovery common.Address,
	auth typeddata.Authorization,
) error {
	return r.mutate(func(txn *database.Txn) error {
		rec, err := r.loadAccount(txn, id)
		if err != nil {
			return err
		}
		if err := r.verifier.Verify(
			txn,
			rec.Custody,
			ChangeRecoverySchema,
			ChangeRecoveryMessage(id, recovery),
			auth,
		); err != nil {
			return err
		}
		return r.changeRecoveryTxn(txn, id, rec, recovery)
	})
}

func (r *Registry) changeRecoveryTxn(
	txn *database.Txn,
	id uint64,
	rec accountRecord,
	recovery common.Address,
) error {
	rec.Recovery = recovery
	if err := r.storeAccount(txn, id, rec); err != nil {
		return err
	}
	r.metrics.mutation(txn, "change_recovery")
	r.publishOnCommit(txn, pendingEvent{
		evtType: event.RegistryRecoveryChangedEventType,
		data:    event.RecoveryChangedEvent{ID: id, Recovery: recovery},
	})
	return nil
}

// ChangeUsername renames the account held by caller. Changing only the
// case of the current username is allowed
func (r *Registry) ChangeUsername(caller common.Address, username string) error {
	return r.mutate(func(txn *database.Txn) error {
		id, _, err := r.custodyID(txn, caller)
		if err != nil {
			return err
		}
		return r.changeUsernameTxn(txn, id, username)
	})
}

func (r *Registry) ChangeUsernameFor(
	id uint64,
	username string,
	auth typeddata.Authorization,
) error {
	return r.mutate(func(txn *database.Txn) error {
		rec, err := r.loadAccount(txn, id)
		if err != nil {
			return err
		}
		if err := r.verifier.Verify(
			txn,
			rec.Custody,
			ChangeUsernameSchema,
			ChangeUsernameMessage(id, username),
			auth,
		); err != nil {
			return err
		}
		return r.changeUsernameTxn(txn, id, username)
	})
}

// TransferUsername hands the username of the account held by caller to
// toID, whose custody consents with toAuth. The caller's account takes
// newFromUsername instead and the previous username of toID is released
func (r *Registry) TransferUsername(
	caller common.Address,
	toID uint64,
	newFromUsername string,
	toAuth typeddata.Authorization,
) error {
	return r.mutate(func(txn *database.Txn) error {
		fromID, fromRec, err := r.custodyID(txn, caller)
		if err != nil {
			return err
		}
		if err := r.verifyUsernameReceiver(txn, fromID, fromRec, toID, toAuth); err != nil {
			return err
		}
		return r.transferUsernameTxn(txn, fromID, toID, newFromUsername)
	})
}

// TransferUsernameFor is the relayed form of TransferUsername. The custody
// of fromID signs over newFromUsername
func (r *Registry) TransferUsernameFor(
	fromID uint64,
	toID uint64,
	newFromUsername string,
	fromAuth typeddata.Authorization,
	toAuth typeddata.Authorization,
) error {
	return r.mutate(func(txn *database.Txn) error {
		fromRec, err := r.loadAccount(txn, fromID)
		if err != nil {
			return err
		}
		if err := r.verifier.Verify(
			txn,
			fromRec.Custody,
			TransferUsernameSchema,
			TransferUsernameMessage(fromID, toID, newFromUsername),
			fromAuth,
		); err != nil {
			return err
		}
		if err := r.verifyUsernameReceiver(txn, fromID, fromRec, toID, toAuth); err != nil {
			return err
		}
		return r.transferUsernameTxn(txn, fromID, toID, newFromUsername)
	})
}

func (r *Registry) verifyUsernameReceiver(
	txn *database.Txn,
	fromID uint64,
	fromRec accountRecord,
	toID uint64,
	toAuth typeddata.Authorization,
) error {
	if fromID == toID {
		return ErrSameAccount
	}
	toRec, err := r.loadAccount(txn, toID)
	if err != nil {
		return err
	}
	return r.verifier.Verify(
		txn,
		toRec.Custody,
		TransferUsernameSchema,
		TransferUsernameMessage(fromID, toID, fromRec.Username),
		toAuth,
	)
}
