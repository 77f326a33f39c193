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

// Package registry issues account ids and tracks the custody, operator and
// recovery addresses and the username bound to each of them.
package registry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/blinklabs-io/lineage/admin"
	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/database/types"
	"github.com/blinklabs-io/lineage/event"
	"github.com/blinklabs-io/lineage/nonce"
	"github.com/blinklabs-io/lineage/typeddata"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DomainName     = "LineageIdRegistry"
	DomainVersion  = "1"
	NonceNamespace = "registry"
)

// Account is the public view of a registered account
type Account struct {
	Username string
	ID       uint64
	Custody  common.Address
	Operator common.Address
	Recovery common.Address
}

// accountRecord is the stored form of an account, keyed by id
type accountRecord struct {
	Custody  common.Address
	Operator common.Address
	Recovery common.Address
	Username string
}

// Bootstrapper grants the initial delegation made by RegisterAndDelegate.
// It is implemented by the delegation engine
type Bootstrapper interface {
	BootstrapDelegateAllTxn(
		txn *database.Txn,
		caller common.Address,
		fromID uint64,
		toID uint64,
	) error
}

type Config struct {
	DB           *database.Database
	Admin        *admin.Admin
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	ChainID      *big.Int
	// Now returns the time used for signature deadlines. It defaults to time.Now
	Now func() time.Time
}

type Registry struct {
	db           *database.Database
	admin        *admin.Admin
	eventBus     *event.EventBus
	logger       *slog.Logger
	verifier     *typeddata.Verifier
	metrics      *registryMetrics
	bootstrapper Bootstrapper
	mu           sync.RWMutex
}

func New(cfg Config) (*Registry, error) {
	if cfg.DB == nil {
		return nil, errors.New("registry: database is required")
	}
	if cfg.Admin == nil {
		return nil, errors.New("registry: admin is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	r := &Registry{
		db:       cfg.DB,
		admin:    cfg.Admin,
		eventBus: cfg.EventBus,
		logger:   cfg.Logger,
		verifier: typeddata.NewVerifier(
			typeddata.NewDomain(DomainName, DomainVersion, cfg.ChainID),
			nonce.NewAuthority(NonceNamespace),
			cfg.Now,
		),
	}
	r.initMetrics(cfg.PromRegistry)
	return r, nil
}

// Address returns the component address of the registry. The delegation
// engine only accepts bootstrap grants from this address
func (r *Registry) Address() common.Address {
	return r.verifier.Domain().VerifyingContract
}

// Verifier returns the signature verifier for the registry domain. Clients
// use it to sign registry messages
func (r *Registry) Verifier() *typeddata.Verifier {
	return r.verifier
}

func (r *Registry) SetBootstrapper(b Bootstrapper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bootstrapper = b
}

// Account returns the account with the given id
func (r *Registry) Account(id uint64) (Account, error) {
	var ret Account
	err := r.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = r.AccountTxn(txn, id)
		return err
	})
	return ret, err
}

func (r *Registry) AccountTxn(txn *database.Txn, id uint64) (Account, error) {
	rec, err := r.loadAccount(txn, id)
	if err != nil {
		return Account{}, err
	}
	return rec.toAccount(id), nil
}

// IDOf returns the id bound to addr as custody or operator, or 0 if none
func (r *Registry) IDOf(addr common.Address) (uint64, error) {
	var ret uint64
	err := r.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = r.IDOfTxn(txn, addr)
		return err
	})
	return ret, err
}

func (r *Registry) IDOfTxn(txn *database.Txn, addr common.Address) (uint64, error) {
	if addr == (common.Address{}) {
		return 0, nil
	}
	val, err := txn.Get(types.RegistryAddressIndexKey(addr.Bytes()))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read address index: %w", err)
	}
	return types.BytesToUint64(val), nil
}

// IDByUsername returns the id holding username, compared case-insensitively, or 0 if none
func (r *Registry) IDByUsername(username string) (uint64, error) {
	var ret uint64
	err := r.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = r.usernameOwner(txn, FoldUsername(username))
		return err
	})
	return ret, err
}

// UsernameAvailable reports whether username is valid and not held by any account
func (r *Registry) UsernameAvailable(username string) (bool, error) {
	if err := ValidateUsername(username); err != nil {
		return false, err
	}
	id, err := r.IDByUsername(username)
	if err != nil {
		return false, err
	}
	return id == 0, nil
}

// IDCounter returns the highest id issued so far
func (r *Registry) IDCounter() (uint64, error) {
	var ret uint64
	err := r.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = r.IDCounterTxn(txn)
		return err
	})
	return ret, err
}

func (r *Registry) IDCounterTxn(txn *database.Txn) (uint64, error) {
	val, err := txn.Get([]byte(types.RegistryIdCounterKey))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read id counter: %w", err)
	}
	return types.BytesToUint64(val), nil
}

// Nonce returns the next registry nonce of addr
func (r *Registry) Nonce(addr common.Address) (uint64, error) {
	var ret uint64
	err := r.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = r.verifier.Nonces().Nonce(txn, addr)
		return err
	})
	return ret, err
}

// IncrementNonce consumes the current nonce of caller, invalidating any
// outstanding signature made with it. It returns the new nonce
func (r *Registry) IncrementNonce(caller common.Address) (uint64, error) {
	var ret uint64
	err := r.mutate(func(txn *database.Txn) error {
		used, err := r.verifier.Nonces().Use(txn, caller)
		if err != nil {
			return err
		}
		ret = used + 1
		return nil
	})
	return ret, err
}

func (rec accountRecord) toAccount(id uint64) Account {
	return Account{
		ID:       id,
		Custody:  rec.Custody,
		Operator: rec.Operator,
		Recovery: rec.Recovery,
		Username: rec.Username,
	}
}

func (r *Registry) loadAccount(txn *database.Txn, id uint64) (accountRecord, error) {
	var rec accountRecord
	if id == 0 {
		return rec, ErrAccountNotFound
	}
	val, err := txn.Get(types.RegistryAccountKey(id))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return rec, ErrAccountNotFound
		}
		return rec, fmt.Errorf("read account: %w", err)
	}
	if err := rlp.DecodeBytes(val, &rec); err != nil {
		return rec, fmt.Errorf("decode account %d: %w", id, err)
	}
	return rec, nil
}

func (r *Registry) storeAccount(txn *database.Txn, id uint64, rec accountRecord) error {
	val, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return fmt.Errorf("encode account %d: %w", id, err)
	}
	return txn.Set(types.RegistryAccountKey(id), val)
}

// setIDOf binds addr to id. An id of 0 removes the binding
func (r *Registry) setIDOf(txn *database.Txn, addr common.Address, id uint64) error {
	if addr == (common.Address{}) {
		return nil
	}
	key := types.RegistryAddressIndexKey(addr.Bytes())
	if id == 0 {
		return txn.Delete(key)
	}
	return txn.Set(key, types.Uint64ToBytes(id))
}

// custodyID returns the id held by caller as custody address
func (r *Registry) custodyID(txn *database.Txn, caller common.Address) (uint64, accountRecord, error) {
	id, err := r.IDOfTxn(txn, caller)
	if err != nil {
		return 0, accountRecord{}, err
	}
	if id == 0 {
		return 0, accountRecord{}, ErrHasNoID
	}
	rec, err := r.loadAccount(txn, id)
	if err != nil {
		return 0, accountRecord{}, err
	}
	if rec.Custody != caller {
		return 0, accountRecord{}, ErrUnauthorized
	}
	return id, rec, nil
}

// mutate runs fn in a write transaction after checking the pause flag
func (r *Registry) mutate(fn func(txn *database.Txn) error) error {
	return r.db.Update(func(txn *database.Txn) error {
		if err := r.admin.RequireNotPaused(txn); err != nil {
			return err
		}
		return fn(txn)
	})
}

type pendingEvent struct {
	data    any
	evtType event.EventType
}

func (r *Registry) publishOnCommit(txn *database.Txn, evts ...pendingEvent) {
	if r.eventBus == nil {
		return
	}
	txn.OnCommit(func() {
		for _, evt := range evts {
			r.eventBus.Publish(evt.evtType, event.NewEvent(evt.evtType, evt.data))
		}
	})
}

func eventUsernameChanged(id uint64, username string) pendingEvent {
	return pendingEvent{
		evtType: event.RegistryUsernameChangedEventType,
		data:    event.UsernameChangedEvent{ID: id, Username: username},
	}
}

func eventUsernameTransferred(fromID uint64, toID uint64, username string) pendingEvent {
	return pendingEvent{
		evtType: event.RegistryUsernameTransferredEventType,
		data: event.UsernameTransferredEvent{
			FromID:   fromID,
			ToID:     toID,
			Username: username,
		},
	}
}
