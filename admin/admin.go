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

// Package admin holds the owner role and the system-wide pause flag.
package admin

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/database/types"
	"github.com/blinklabs-io/lineage/event"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotOwner     = errors.New("caller is not the owner")
	ErrPaused       = errors.New("paused")
	ErrNotPaused    = errors.New("not paused")
	ErrInvalidOwner = errors.New("invalid owner")
)

// Admin guards privileged entry points. State lives in the blob store so
// that it is covered by the same transactions as the registry data
type Admin struct {
	db       *database.Database
	eventBus *event.EventBus
	logger   *slog.Logger
}

// New returns an Admin. eventBus and logger may be nil
func New(
	db *database.Database,
	eventBus *event.EventBus,
	logger *slog.Logger,
) *Admin {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Admin{
		db:       db,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Init sets the owner if none is stored yet. An existing owner is kept
func (a *Admin) Init(owner common.Address) error {
	return a.db.Update(func(txn *database.Txn) error {
		current, err := a.OwnerTxn(txn)
		if err != nil {
			return err
		}
		if current != (common.Address{}) {
			if current != owner {
				a.logger.Debug(
					"keeping stored owner",
					"component", "admin",
					"owner", current.Hex(),
					"configured", owner.Hex(),
				)
			}
			return nil
		}
		if owner == (common.Address{}) {
			return nil
		}
		if err := txn.Set([]byte(types.AdminOwnerKey), owner.Bytes()); err != nil {
			return err
		}
		a.publishOnCommit(
			txn,
			event.AdminOwnershipTransferredEventType,
			event.OwnershipTransferredEvent{NewOwner: owner},
		)
		return nil
	})
}

func (a *Admin) Owner() (common.Address, error) {
	var ret common.Address
	err := a.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = a.OwnerTxn(txn)
		return err
	})
	return ret, err
}

func (a *Admin) OwnerTxn(txn *database.Txn) (common.Address, error) {
	val, err := txn.Get([]byte(types.AdminOwnerKey))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return common.Address{}, nil
		}
		return common.Address{}, fmt.Errorf("read owner: %w", err)
	}
	return common.BytesToAddress(val), nil
}

func (a *Admin) Paused() (bool, error) {
	var ret bool
	err := a.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = a.PausedTxn(txn)
		return err
	})
	return ret, err
}

func (a *Admin) PausedTxn(txn *database.Txn) (bool, error) {
	val, err := txn.Get([]byte(types.AdminPausedKey))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("read pause flag: %w", err)
	}
	return len(val) == 1 && val[0] == 1, nil
}

// RequireNotPaused returns ErrPaused while the system is paused
func (a *Admin) RequireNotPaused(txn *database.Txn) error {
	paused, err := a.PausedTxn(txn)
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	return nil
}

// RequireOwner returns ErrNotOwner unless caller is the current owner
func (a *Admin) RequireOwner(txn *database.Txn, caller common.Address) error {
	owner, err := a.OwnerTxn(txn)
	if err != nil {
		return err
	}
	if owner == (common.Address{}) || owner != caller {
		return ErrNotOwner
	}
	return nil
}

func (a *Admin) Pause(caller common.Address) error {
	return a.setPaused(caller, true)
}

func (a *Admin) Unpause(caller common.Address) error {
	return a.setPaused(caller, false)
}

func (a *Admin) setPaused(caller common.Address, paused bool) error {
	return a.db.Update(func(txn *database.Txn) error {
		if err := a.RequireOwner(txn, caller); err != nil {
			return err
		}
		current, err := a.PausedTxn(txn)
		if err != nil {
			return err
		}
		if current == paused {
			if paused {
				return ErrPaused
			}
			return ErrNotPaused
		}
		var val byte
		evtType := event.AdminUnpausedEventType
		if paused {
			val = 1
			evtType = event.AdminPausedEventType
		}
		if err := txn.Set([]byte(types.AdminPausedKey), []byte{val}); err != nil {
			return err
		}
		a.logger.Info(
			"pause flag changed",
			"component", "admin",
			"paused", paused,
			"by", caller.Hex(),
		)
		a.publishOnCommit(txn, evtType, event.PauseEvent{Account: caller})
		return nil
	})
}

// TransferOwnership hands the owner role to newOwner, which must not be zero
func (a *Admin) TransferOwnership(caller common.Address, newOwner common.Address) error {
	if newOwner == (common.Address{}) {
		return ErrInvalidOwner
	}
	return a.db.Update(func(txn *database.Txn) error {
		if err := a.RequireOwner(txn, caller); err != nil {
			return err
		}
		if err := txn.Set([]byte(types.AdminOwnerKey), newOwner.Bytes()); err != nil {
			return err
		}
		a.publishOnCommit(
			txn,
			event.AdminOwnershipTransferredEventType,
			event.OwnershipTransferredEvent{
				PreviousOwner: caller,
				NewOwner:      newOwner,
			},
		)
		return nil
	})
}

func (a *Admin) publishOnCommit(txn *database.Txn, evtType event.EventType, data any) {
	if a.eventBus == nil {
		return
	}
	txn.OnCommit(func() {
		a.eventBus.Publish(evtType, event.NewEvent(evtType, data))
	})
}
