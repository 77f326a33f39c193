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
	"math/big"

	"github.com/blinklabs-io/lineage/database"
	"github.com/ethereum/go-ethereum/common"
)

// probes lists the delegations that satisfy a check of kind, broadest scope first
func probes(
	kind Kind,
	from uint64,
	to uint64,
	contract common.Address,
	tokenID *big.Int,
	rights common.Hash,
) []Delegation {
	ret := []Delegation{{Kind: KindAll, From: from, To: to, Rights: rights}}
	if kind == KindAll {
		return ret
	}
	ret = append(ret, Delegation{Kind: KindContract, From: from, To: to, Contract: contract, Rights: rights})
	if kind == KindContract {
		return ret
	}
	return append(ret, Delegation{
		Kind:     kind,
		From:     from,
		To:       to,
		Contract: contract,
		TokenID:  tokenID,
		Rights:   rights,
	})
}

// rightsPasses returns the full rights tag, followed by rights when it is a narrower tag
func rightsPasses(rights common.Hash) []common.Hash {
	if rights == (common.Hash{}) {
		return []common.Hash{{}}
	}
	return []common.Hash{{}, rights}
}

func (e *Engine) lookup(txn *database.Txn, d Delegation) (record, bool, error) {
	rec, err := e.loadRecord(txn, Location(d.Hash()))
	if err != nil {
		return rec, false, err
	}
	return rec, rec.status() == StatusActive, nil
}

func (e *Engine) checkBoolTxn(
	txn *database.Txn,
	kind Kind,
	to uint64,
	from uint64,
	contract common.Address,
	tokenID *big.Int,
	rights common.Hash,
) (bool, error) {
	valid, err := e.validAccount(txn, from)
	if err != nil || !valid {
		e.metrics.check(kind, false)
		return false, err
	}
	for _, pass := range rightsPasses(rights) {
		for _, d := range probes(kind, from, to, contract, tokenID, pass) {
			_, ok, err := e.lookup(txn, d)
			if err != nil {
				return false, err
			}
			if ok {
				e.metrics.check(kind, true)
				return true, nil
			}
		}
	}
	e.metrics.check(kind, false)
	return false, nil
}

// checkAmountTxn returns MaxAmount when an ALL or CONTRACT grant matches,
// otherwise the larger of the full rights and tagged rights amounts
func (e *Engine) checkAmountTxn(
	txn *database.Txn,
	kind Kind,
	to uint64,
	from uint64,
	contract common.Address,
	tokenID *big.Int,
	rights common.Hash,
) (*big.Int, error) {
	valid, err := e.validAccount(txn, from)
	if err != nil || !valid {
		e.metrics.check(kind, false)
		return new(big.Int), err
	}
	best := new(big.Int)
	for _, pass := range rightsPasses(rights) {
		candidates := probes(kind, from, to, contract, tokenID, pass)
		for i, d := range candidates {
			rec, ok, err := e.lookup(txn, d)
			if err != nil {
				return new(big.Int), err
			}
			if !ok {
				continue
			}
			if i < len(candidates)-1 {
				e.metrics.check(kind, true)
				return new(big.Int).Set(MaxAmount), nil
			}
			if rec.Amount != nil && rec.Amount.Cmp(best) > 0 {
				best.Set(rec.Amount)
			}
		}
	}
	e.metrics.check(kind, best.Sign() > 0)
	return best, nil
}

func (e *Engine) viewBool(fn func(txn *database.Txn) (bool, error)) (bool, error) {
	var ret bool
	err := e.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = fn(txn)
		return err
	})
	return ret, err
}

func (e *Engine) viewAmount(fn func(txn *database.Txn) (*big.Int, error)) (*big.Int, error) {
	var ret *big.Int
	err := e.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = fn(txn)
		return err
	})
	return ret, err
}

// CheckDelegateForAll reports whether from grants to all rights, or the rights tag
func (e *Engine) CheckDelegateForAll(to uint64, from uint64, rights common.Hash) (bool, error) {
	return e.viewBool(func(txn *database.Txn) (bool, error) {
		return e.CheckDelegateForAllTxn(txn, to, from, rights)
	})
}

func (e *Engine) CheckDelegateForAllTxn(
	txn *database.Txn,
	to uint64,
	from uint64,
	rights common.Hash,
) (bool, error) {
	return e.checkBoolTxn(txn, KindAll, to, from, common.Address{}, nil, rights)
}

func (e *Engine) CheckDelegateForContract(
	to uint64,
	from uint64,
	contract common.Address,
	rights common.Hash,
) (bool, error) {
	return e.viewBool(func(txn *database.Txn) (bool, error) {
		return e.CheckDelegateForContractTxn(txn, to, from, contract, rights)
	})
}

func (e *Engine) CheckDelegateForContractTxn(
	txn *database.Txn,
	to uint64,
	from uint64,
	contract common.Address,
	rights common.Hash,
) (bool, error) {
	return e.checkBoolTxn(txn, KindContract, to, from, contract, nil, rights)
}

func (e *Engine) CheckDelegateForERC721(
	to uint64,
	from uint64,
	contract common.Address,
	tokenID *big.Int,
	rights common.Hash,
) (bool, error) {
	return e.viewBool(func(txn *database.Txn) (bool, error) {
		return e.checkBoolTxn(txn, KindERC721, to, from, contract, tokenID, rights)
	})
}

// CheckDelegateForERC20 returns the amount of contract that to may move for from
func (e *Engine) CheckDelegateForERC20(
	to uint64,
	from uint64,
	contract common.Address,
	rights common.Hash,
) (*big.Int, error) {
	return e.viewAmount(func(txn *database.Txn) (*big.Int, error) {
		return e.checkAmountTxn(txn, KindERC20, to, from, contract, nil, rights)
	})
}

func (e *Engine) CheckDelegateForERC1155(
	to uint64,
	from uint64,
	contract common.Address,
	tokenID *big.Int,
	rights common.Hash,
) (*big.Int, error) {
	return e.viewAmount(func(txn *database.Txn) (*big.Int, error) {
		return e.checkAmountTxn(txn, KindERC1155, to, from, contract, tokenID, rights)
	})
}
