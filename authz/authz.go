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

// Package authz answers whether an address may act for an account, either
// directly or through a CONTRACT delegation.
package authz

import (
	"io"
	"log/slog"

	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Accounts is the registry surface used by the bridge
type Accounts interface {
	IDOfTxn(txn *database.Txn, addr common.Address) (uint64, error)
	AccountTxn(txn *database.Txn, id uint64) (registry.Account, error)
}

// ContractChecker is the delegation surface used by the bridge
type ContractChecker interface {
	CheckDelegateForContractTxn(
		txn *database.Txn,
		to uint64,
		from uint64,
		contract common.Address,
		rights common.Hash,
	) (bool, error)
}

type Bridge struct {
	db          *database.Database
	accounts    Accounts
	delegations ContractChecker
	logger      *slog.Logger
}

func New(
	db *database.Database,
	accounts Accounts,
	delegations ContractChecker,
	logger *slog.Logger,
) *Bridge {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Bridge{
		db:          db,
		accounts:    accounts,
		delegations: delegations,
		logger:      logger,
	}
}

// RightsTag turns a rights name into the tag stored in delegations. Names
// of up to 32 bytes are right padded and longer names are hashed. An empty
// name is the zero tag, meaning all rights
func RightsTag(name string) common.Hash {
	switch {
	case name == "":
		return common.Hash{}
	case len(name) > common.HashLength:
		return crypto.Keccak256Hash([]byte(name))
	default:
		return common.BytesToHash(common.RightPadBytes([]byte(name), common.HashLength))
	}
}

// CanAct reports whether actor may act for account id within scopeContract.
// Lookup failures are logged and reported as false
func (b *Bridge) CanAct(
	id uint64,
	actor common.Address,
	scopeContract common.Address,
	rights common.Hash,
) bool {
	var ret bool
	err := b.db.View(func(txn *database.Txn) error {
		ret = b.CanActTxn(txn, id, actor, scopeContract, rights)
		return nil
	})
	if err != nil {
		b.logger.Warn(
			"authorization lookup failed",
			"component", "authz",
			"id", id,
			"error", err,
		)
		return false
	}
	return ret
}

// CanActTxn is CanAct within an existing transaction
func (b *Bridge) CanActTxn(
	txn *database.Txn,
	id uint64,
	actor common.Address,
	scopeContract common.Address,
	rights common.Hash,
) bool {
	actorID, err := b.accounts.IDOfTxn(txn, actor)
	if err != nil {
		b.logFailure(id, actor, err)
		return false
	}
	if actorID == 0 {
		return false
	}
	acct, err := b.accounts.AccountTxn(txn, id)
	if err != nil {
		b.logFailure(id, actor, err)
		return false
	}
	if actor == acct.Custody || (acct.Operator != (common.Address{}) && actor == acct.Operator) {
		return true
	}
	// Grants made from the account of the custody and of the operator both count
	for _, grantor := range []common.Address{acct.Custody, acct.Operator} {
		if grantor == (common.Address{}) {
			continue
		}
		fromID, err := b.accounts.IDOfTxn(txn, grantor)
		if err != nil {
			b.logFailure(id, actor, err)
			return false
		}
		ok, err := b.delegations.CheckDelegateForContractTxn(txn, actorID, fromID, scopeContract, rights)
		if err != nil {
			b.logFailure(id, actor, err)
			return false
		}
		if ok {
			return true
		}
	}
	return false
}

func (b *Bridge) logFailure(id uint64, actor common.Address, err error) {
	b.logger.Warn(
		"authorization lookup failed",
		"component", "authz",
		"id", id,
		"actor", actor.Hex(),
		"error", err,
	)
}
