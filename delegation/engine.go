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
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/blinklabs-io/lineage/admin"
	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/database/types"
	"github.com/blinklabs-io/lineage/event"
	"github.com/blinklabs-io/lineage/nonce"
	"github.com/blinklabs-io/lineage/registry"
	"github.com/blinklabs-io/lineage/typeddata"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DomainName     = "LineageDelegationRegistry"
	DomainVersion  = "1"
	NonceNamespace = "delegation"
)

// AccountReader is the part of the registry the engine reads
type AccountReader interface {
	IDOfTxn(txn *database.Txn, addr common.Address) (uint64, error)
	AccountTxn(txn *database.Txn, id uint64) (registry.Account, error)
	IDCounterTxn(txn *database.Txn) (uint64, error)
}

type Config struct {
	DB           *database.Database
	Admin        *admin.Admin
	Accounts     AccountReader
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	ChainID      *big.Int
	Now          func() time.Time
	// Gateway is the only address allowed to make bootstrap grants
	Gateway common.Address
}

type Engine struct {
	db       *database.Database
	admin    *admin.Admin
	accounts AccountReader
	eventBus *event.EventBus
	logger   *slog.Logger
	verifier *typeddata.Verifier
	metrics  *delegationMetrics
	gateway  common.Address
}

func New(cfg Config) (*Engine, error) {
	if cfg.DB == nil {
		return nil, errors.New("delegation: database is required")
	}
	if cfg.Admin == nil {
		return nil, errors.New("delegation: admin is required")
	}
	if cfg.Accounts == nil {
		return nil, errors.New("delegation: account reader is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &Engine{
		db:       cfg.DB,
		admin:    cfg.Admin,
		accounts: cfg.Accounts,
		eventBus: cfg.EventBus,
		logger:   cfg.Logger,
		gateway:  cfg.Gateway,
		verifier: typeddata.NewVerifier(
			typeddata.NewDomain(DomainName, DomainVersion, cfg.ChainID),
			nonce.NewAuthority(NonceNamespace),
			cfg.Now,
		),
	}
	e.initMetrics(cfg.PromRegistry)
	return e, nil
}

func (e *Engine) Address() common.Address {
	return e.verifier.Domain().VerifyingContract
}

func (e *Engine) Verifier() *typeddata.Verifier {
	return e.verifier
}

// Request grants or revokes a delegation. From may be left zero on the
// direct path, where it defaults to the caller's account. Enable is used by
// the boolean kinds, Amount by ERC20 and ERC1155 where zero revokes
type Request struct {
	TokenID  *big.Int
	Amount   *big.Int
	Kind     Kind
	From     uint64
	To       uint64
	Contract common.Address
	Rights   common.Hash
	Enable   bool
}

func (r Request) delegation() Delegation {
	return Delegation{
		Kind:     r.Kind,
		From:     r.From,
		To:       r.To,
		Contract: r.Contract,
		TokenID:  r.TokenID,
		Amount:   r.Amount,
		Rights:   r.Rights,
	}
}

// Delegate applies req on behalf of the account whose custody or operator is caller
func (e *Engine) Delegate(caller common.Address, req Request) error {
	return e.mutate(func(txn *database.Txn) error {
		return e.delegateTxn(txn, caller, req)
	})
}

// DelegateFor applies req authorized by a signature of the custody of req.From
func (e *Engine) DelegateFor(req Request, auth typeddata.Authorization) error {
	return e.mutate(func(txn *database.Txn) error {
		return e.delegateForTxn(txn, req, auth)
	})
}

func (e *Engine) DelegateAll(caller common.Address, to uint64, rights common.Hash, enable bool) error {
	return e.Delegate(caller, Request{Kind: KindAll, To: to, Rights: rights, Enable: enable})
}

func (e *Engine) DelegateContract(
	caller common.Address,
	to uint64,
	contract common.Address,
	rights common.Hash,
	enable bool,
) error {
	return e.Delegate(caller, Request{
		Kind:     KindContract,
		To:       to,
		Contract: contract,
		Rights:   rights,
		Enable:   enable,
	})
}

func (e *Engine) DelegateERC721(
	caller common.Address,
	to uint64,
	contract common.Address,
	tokenID *big.Int,
	rights common.Hash,
	enable bool,
) error {
	return e.Delegate(caller, Request{
		Kind:     KindERC721,
		To:       to,
		Contract: contract,
		TokenID:  tokenID,
		Rights:   rights,
		Enable:   enable,
	})
}

func (e *Engine) DelegateERC20(
	caller common.Address,
	to uint64,
	contract common.Address,
	rights common.Hash,
	amount *big.Int,
) error {
	return e.Delegate(caller, Request{
		Kind:     KindERC20,
		To:       to,
		Contract: contract,
		Rights:   rights,
		Amount:   amount,
	})
}

func (e *Engine) DelegateERC1155(
	caller common.Address,
	to uint64,
	contract common.Address,
	tokenID *big.Int,
	rights common.Hash,
	amount *big.Int,
) error {
	return e.Delegate(caller, Request{
		Kind:     KindERC1155,
		To:       to,
		Contract: contract,
		TokenID:  tokenID,
		Rights:   rights,
		Amount:   amount,
	})
}

// BootstrapDelegateAll grants an ALL delegation without a signature. Only
// the gateway address may call it
func (e *Engine) BootstrapDelegateAll(caller common.Address, fromID uint64, toID uint64) error {
	return e.mutate(func(txn *database.Txn) error {
		return e.BootstrapDelegateAllTxn(txn, caller, fromID, toID)
	})
}

// BootstrapDelegateAllTxn is BootstrapDelegateAll within a transaction owned
// by the caller. The registry calls it while registering an account
func (e *Engine) BootstrapDelegateAllTxn(
	txn *database.Txn,
	caller common.Address,
	fromID uint64,
	toID uint64,
) error {
	if e.gateway == (common.Address{}) || caller != e.gateway {
		return ErrNotGateway
	}
	e.logger.Debug(
		"bootstrap delegation",
		"component", "delegation",
		"from", fromID,
		"to", toID,
	)
	return e.applyTxn(txn, Request{Kind: KindAll, From: fromID, To: toID, Enable: true})
}

func (e *Engine) Nonce(addr common.Address) (uint64, error) {
	var ret uint64
	err := e.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = e.verifier.Nonces().Nonce(txn, addr)
		return err
	})
	return ret, err
}

// IncrementNonce consumes the current delegation nonce of caller and returns the new one
func (e *Engine) IncrementNonce(caller common.Address) (uint64, error) {
	var ret uint64
	err := e.mutate(func(txn *database.Txn) error {
		var err error
		ret, err = e.incrementNonceTxn(txn, caller)
		return err
	})
	return ret, err
}

func (e *Engine) incrementNonceTxn(txn *database.Txn, caller common.Address) (uint64, error) {
	used, err := e.verifier.Nonces().Use(txn, caller)
	if err != nil {
		return 0, err
	}
	return used + 1, nil
}

func (e *Engine) delegateTxn(txn *database.Txn, caller common.Address, req Request) error {
	callerID, err := e.accounts.IDOfTxn(txn, caller)
	if err != nil {
		return err
	}
	if callerID == 0 {
		return ErrHasNoID
	}
	if req.From != 0 && req.From != callerID {
		return ErrUnauthorized
	}
	req.From = callerID
	return e.applyTxn(txn, req)
}

func (e *Engine) delegateForTxn(txn *database.Txn, req Request, auth typeddata.Authorization) error {
	acct, err := e.accounts.AccountTxn(txn, req.From)
	if err != nil {
		if errors.Is(err, registry.ErrAccountNotFound) {
			return ErrInvalidAccount
		}
		return err
	}
	if err := e.verifier.Verify(txn, acct.Custody, DelegateSchema, DelegateMessage(req), auth); err != nil {
		return err
	}
	return e.applyTxn(txn, req)
}

// applyTxn runs the grant/revoke state machine for one request
func (e *Engine) applyTxn(txn *database.Txn, req Request) error {
	d, err := req.delegation().normalize()
	if err != nil {
		return err
	}
	for _, id := range []uint64{d.From, d.To} {
		valid, err := e.validAccount(txn, id)
		if err != nil {
			return err
		}
		if !valid {
			return fmt.Errorf("%w: %d", ErrInvalidAccount, id)
		}
	}
	enable := req.Enable
	if d.Kind.HasAmount() {
		enable = d.Amount.Sign() > 0
	}
	hash := d.Hash()
	loc := Location(hash)
	rec, err := e.loadRecord(txn, loc)
	if err != nil {
		return err
	}
	changed := true
	switch status := rec.status(); {
	case enable && status == StatusAbsent:
		if err := e.appendLog(txn, true, d.From, hash); err != nil {
			return err
		}
		if err := e.appendLog(txn, false, d.To, hash); err != nil {
			return err
		}
		rec = newRecord(d)
		txn.OnCommit(e.metrics.grants.WithLabelValues(d.Kind.String()).Inc)
	case enable && status == StatusRevoked:
		rec.Status = uint8(StatusActive)
		rec.From = d.From
		if d.Kind.HasAmount() {
			rec.Amount = d.Amount
		}
		txn.OnCommit(e.metrics.grants.WithLabelValues(d.Kind.String()).Inc)
	case enable && status == StatusActive && d.Kind.HasAmount():
		rec.Amount = d.Amount
	case !enable && status == StatusActive:
		rec.Status = uint8(StatusRevoked)
		if d.Kind.HasAmount() {
			rec.Amount = new(big.Int)
		}
		txn.OnCommit(e.metrics.revocations.WithLabelValues(d.Kind.String()).Inc)
	default:
		changed = false
	}
	if changed {
		if err := e.storeRecord(txn, loc, rec); err != nil {
			return err
		}
	}
	evt := event.DelegateEvent{
		Kind:     d.Kind.String(),
		From:     d.From,
		To:       d.To,
		Contract: d.Contract,
		TokenID:  d.TokenID,
		Amount:   d.Amount,
		Rights:   d.Rights,
		Enable:   enable,
	}
	if e.eventBus != nil {
		txn.OnCommit(func() {
			e.eventBus.Publish(
				event.DelegationDelegateEventType,
				event.NewEvent(event.DelegationDelegateEventType, evt),
			)
		})
	}
	e.logger.Debug(
		"delegation applied",
		"component", "delegation",
		"kind", d.Kind.String(),
		"from", d.From,
		"to", d.To,
		"enable", enable,
		"changed", changed,
	)
	return nil
}

// validAccount reports whether id has been issued by the registry
func (e *Engine) validAccount(txn *database.Txn, id uint64) (bool, error) {
	if id == 0 {
		return false, nil
	}
	counter, err := e.accounts.IDCounterTxn(txn)
	if err != nil {
		return false, err
	}
	return id <= counter, nil
}

func (e *Engine) loadRecord(txn *database.Txn, loc common.Hash) (record, error) {
	var rec record
	val, err := txn.Get(types.DelegationRecordKey(loc.Bytes()))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return rec, nil
		}
		return rec, fmt.Errorf("read delegation record: %w", err)
	}
	if err := rlp.DecodeBytes(val, &rec); err != nil {
		return rec, fmt.Errorf("decode delegation record %s: %w", loc.Hex(), err)
	}
	return rec, nil
}

func (e *Engine) storeRecord(txn *database.Txn, loc common.Hash, rec record) error {
	val, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return fmt.Errorf("encode delegation record: %w", err)
	}
	return txn.Set(types.DelegationRecordKey(loc.Bytes()), val)
}

func (e *Engine) mutate(fn func(txn *database.Txn) error) error {
	return e.db.Update(func(txn *database.Txn) error {
		if err := e.admin.RequireNotPaused(txn); err != nil {
			return err
		}
		return fn(txn)
	})
}

var _ registry.Bootstrapper = (*Engine)(nil)
