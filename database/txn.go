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

package database

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/lineage/database/types"
)

// Txn is a wrapper that coordinates both metadata and blob transactions.
// The blob transaction starts immediately. The metadata transaction of a
// read-write Txn starts on first use, and read-only Txns read metadata
// outside of a transaction
type Txn struct {
	db          *Database
	blobTxn     types.Txn
	metadataTxn types.Txn
	onCommit    []func()
	lock        sync.Mutex
	finished    bool
	readWrite   bool
}

func NewTxn(db *Database, readWrite bool) *Txn {
	t := &Txn{db: db, readWrite: readWrite}
	if bs := db.Blob(); bs != nil {
		t.blobTxn = bs.NewTransaction(readWrite)
	}
	return t
}

func (t *Txn) DB() *Database {
	return t.db
}

// ReadWrite reports whether the transaction may write
func (t *Txn) ReadWrite() bool {
	return t.readWrite
}

// Metadata returns the metadata transaction handle, starting it if needed.
// It returns nil for read-only transactions, which metadata stores treat as
// a plain read
func (t *Txn) Metadata() types.Txn {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.metadata()
}

func (t *Txn) metadata() types.Txn {
	if !t.readWrite || t.finished {
		return nil
	}
	if t.metadataTxn == nil {
		if ms := t.db.Metadata(); ms != nil {
			t.metadataTxn = ms.Transaction()
		}
	}
	return t.metadataTxn
}

// Blob returns the blob transaction handle
func (t *Txn) Blob() types.Txn {
	return t.blobTxn
}

// OnCommit registers fn to run after the transaction commits successfully.
// Hooks never run for a rolled back transaction
func (t *Txn) OnCommit(fn func()) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.onCommit = append(t.onCommit, fn)
}

// Get returns the value stored at key, or types.ErrBlobKeyNotFound
func (t *Txn) Get(key []byte) ([]byte, error) {
	if t.blobTxn == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	return t.db.Blob().Get(t.blobTxn, key)
}

// Set stores value at key
func (t *Txn) Set(key []byte, value []byte) error {
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	return t.db.Blob().Set(t.blobTxn, key, value)
}

// Delete removes key
func (t *Txn) Delete(key []byte) error {
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	return t.db.Blob().Delete(t.blobTxn, key)
}

// Do executes the specified function in the context of the transaction. Any errors returned will result
// in the transaction being rolled back
func (t *Txn) Do(fn func(*Txn) error) error {
	if err := fn(t); err != nil {
		if err2 := t.Rollback(); err2 != nil {
			return fmt.Errorf(
				"rollback failed: %w: original error: %w",
				err2,
				err,
			)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (t *Txn) Commit() error {
	t.lock.Lock()
	if t.finished {
		t.lock.Unlock()
		return nil
	}
	// No need to commit for read-only, but we do want to free up resources
	if !t.readWrite {
		err := t.rollback()
		t.lock.Unlock()
		return err
	}
	if t.blobTxn == nil {
		t.finished = true
		t.lock.Unlock()
		return types.ErrNoStoreAvailable
	}
	if err := t.commit(); err != nil {
		t.lock.Unlock()
		return err
	}
	hooks := t.onCommit
	t.onCommit = nil
	t.lock.Unlock()
	for _, hook := range hooks {
		hook()
	}
	return nil
}

// commit must be called with t.lock held
func (t *Txn) commit() error {
	// Keep the commit timestamps of both stores in step
	metadataTxn := t.metadata()
	if metadataTxn != nil {
		commitTimestamp := time.Now().UnixMilli()
		if err := t.db.updateCommitTimestamp(t, commitTimestamp); err != nil {
			_ = t.rollback()
			return fmt.Errorf("failed to update commit timestamp: %w", err)
		}
	}
	// Commit blob transaction first (so if this fails, metadata never commits)
	if err := t.blobTxn.Commit(); err != nil {
		if metadataTxn != nil {
			_ = metadataTxn.Rollback()
		}
		t.finished = true
		return fmt.Errorf("blob commit failed: %w", err)
	}
	if metadataTxn != nil {
		if err := metadataTxn.Commit(); err != nil {
			t.db.logger.Error(
				"partial commit: blob committed, metadata failed",
				"component", "database",
				"error", err,
			)
			_ = metadataTxn.Rollback()
			t.finished = true
			return fmt.Errorf(
				"partial commit: metadata commit failed after blob commit: %w",
				err,
			)
		}
	}
	t.finished = true
	return nil
}

func (t *Txn) Rollback() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.rollback()
}

func (t *Txn) rollback() error {
	if t.finished {
		return nil
	}
	var errs []error
	if t.blobTxn != nil {
		if err := t.blobTxn.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("blob rollback: %w", err))
		}
	}
	if t.metadataTxn != nil {
		if err := t.metadataTxn.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("metadata rollback: %w", err))
		}
	}
	t.finished = true
	t.onCommit = nil
	return errors.Join(errs...)
}

// Release releases transaction resources. For read-only transactions, this
// releases locks and resources. For read-write transactions, this is equivalent
// to Rollback. Use this in defer statements for clean resource cleanup.
// Errors are logged but not returned, making this safe for deferred calls.
func (t *Txn) Release() {
	if err := t.Rollback(); err != nil {
		t.db.logger.Debug(
			"transaction release failed",
			"component", "database",
			"error", err,
			"read_write", t.readWrite,
		)
	}
}
