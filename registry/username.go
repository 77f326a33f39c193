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
	"errors"
	"fmt"
	"strings"

	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/database/types"
)

const MaxUsernameLength = 16

// ValidateUsername checks the length and character set of a username.
// It does not check availability
func ValidateUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameTooShort
	}
	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for i := range len(username) {
		c := username[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return ErrUsernameContainsInvalidChar
		}
	}
	return nil
}

// FoldUsername returns the case-folded form used for uniqueness
func FoldUsername(username string) string {
	return strings.ToLower(username)
}

func (r *Registry) usernameOwner(txn *database.Txn, folded string) (uint64, error) {
	val, err := txn.Get(types.RegistryUsernameIndexKey(folded))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read username index: %w", err)
	}
	return types.BytesToUint64(val), nil
}

func (r *Registry) setUsernameOwner(txn *database.Txn, folded string, id uint64) error {
	key := types.RegistryUsernameIndexKey(folded)
	if id == 0 {
		return txn.Delete(key)
	}
	return txn.Set(key, types.Uint64ToBytes(id))
}

// claimUsername validates username and binds it to id. A username already
// bound to id itself, differing only in case, may be reclaimed
func (r *Registry) claimUsername(txn *database.Txn, username string, id uint64) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	folded := FoldUsername(username)
	owner, err := r.usernameOwner(txn, folded)
	if err != nil {
		return err
	}
	if owner != 0 && owner != id {
		return ErrUsernameAlreadyRegistered
	}
	return r.setUsernameOwner(txn, folded, id)
}

// releaseUsername drops the index entry for username if it still points at id
func (r *Registry) releaseUsername(txn *database.Txn, username string, id uint64) error {
	if username == "" {
		return nil
	}
	folded := FoldUsername(username)
	owner, err := r.usernameOwner(txn, folded)
	if err != nil {
		return err
	}
	if owner != id {
		return nil
	}
	return r.setUsernameOwner(txn, folded, 0)
}

// changeUsernameTxn replaces the username of an existing account
func (r *Registry) changeUsernameTxn(txn *database.Txn, id uint64, username string) error {
	rec, err := r.loadAccount(txn, id)
	if err != nil {
		return err
	}
	if err := ValidateUsername(username); err != nil {
		return err
	}
	oldFolded := FoldUsername(rec.Username)
	if oldFolded != FoldUsername(username) {
		if err := r.releaseUsername(txn, rec.Username, id); err != nil {
			return err
		}
	}
	if err := r.claimUsername(txn, username, id); err != nil {
		return err
	}
	rec.Username = username
	if err := r.storeAccount(txn, id, rec); err != nil {
		return err
	}
	r.metrics.mutation(txn, "change_username")
	r.publishOnCommit(
		txn,
		eventUsernameChanged(id, username),
	)
	return nil
}

// transferUsernameTxn gives fromID the name newFromUsername and hands the
// previous name of fromID to toID. The previous name of toID is released
func (r *Registry) transferUsernameTxn(
	txn *database.Txn,
	fromID uint64,
	toID uint64,
	newFromUsername string,
) error {
	if fromID == toID {
		return ErrSameAccount
	}
	fromRec, err := r.loadAccount(txn, fromID)
	if err != nil {
		return err
	}
	toRec, err := r.loadAccount(txn, toID)
	if err != nil {
		return err
	}
	if err := ValidateUsername(newFromUsername); err != nil {
		return err
	}
	oldFromUsername := fromRec.Username
	if FoldUsername(newFromUsername) == FoldUsername(oldFromUsername) {
		return ErrUsernameAlreadyRegistered
	}
	if err := r.releaseUsername(txn, toRec.Username, toID); err != nil {
		return err
	}
	if err := r.releaseUsername(txn, oldFromUsername, fromID); err != nil {
		return err
	}
	if err := r.claimUsername(txn, newFromUsername, fromID); err != nil {
		return err
	}
	// The transferred name was valid when it was registered
	if err := r.setUsernameOwner(txn, FoldUsername(oldFromUsername), toID); err != nil {
		return err
	}
	fromRec.Username = newFromUsername
	toRec.Username = oldFromUsername
	if err := r.storeAccount(txn, fromID, fromRec); err != nil {
		return err
	}
	if err := r.storeAccount(txn, toID, toRec); err != nil {
		return err
	}
	r.metrics.mutation(txn, "transfer_username")
	r.publishOnCommit(
		txn,
		eventUsernameChanged(fromID, newFromUsername),
		eventUsernameChanged(toID, oldFromUsername),
		eventUsernameTransferred(fromID, toID, oldFromUsername),
	)
	r.logger.Info(
		"username transferred",
		"component", "registry",
		"from_id", fromID,
		"to_id", toID,
		"username", oldFromUsername,
	)
	return nil
}
