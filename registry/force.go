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
	"github.com/ethereum/go-ethereum/common"
)

// ForceChangeUsername renames an account without its consent. Only the
// owner may call it, and it is allowed while paused
func (r *Registry) ForceChangeUsername(caller common.Address, id uint64, username string) error {
	return r.db.Update(func(txn *database.Txn) error {
		if err := r.admin.RequireOwner(txn, caller); err != nil {
			return err
		}
		r.logger.Warn(
			"forcing username change",
			"component", "registry",
			"id", id,
			"username", username,
		)
		return r.changeUsernameTxn(txn, id, username)
	})
}

// ForceTransferUsername performs TransferUsername without signatures. Only
// the owner may call it, and it is allowed while paused
func (r *Registry) ForceTransferUsername(
	caller common.Address,
	fromID uint64,
	toID uint64,
	newFromUsername string,
) error {
	return r.db.Update(func(txn *database.Txn) error {
		if err := r.admin.RequireOwner(txn, caller); err != nil {
			return err
		}
		return r.transferUsernameTxn(txn, fromID, toID, newFromUsername)
	})
}
