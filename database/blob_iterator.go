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

	"github.com/blinklabs-io/lineage/database/types"
)

// ErrStopIteration can be returned from an Iterate callback to end the walk without error
var ErrStopIteration = errors.New("stop iteration")

// Iterate calls fn for every key starting with prefix, in ascending key
// order. The key and value passed to fn are copies owned by the caller
func (t *Txn) Iterate(
	prefix []byte,
	fn func(key []byte, value []byte) error,
) error {
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	blobIter := t.db.Blob().NewIterator(
		t.blobTxn,
		types.BlobIteratorOptions{Prefix: prefix},
	)
	if blobIter == nil {
		return errors.New("blob iterator is nil")
	}
	defer blobIter.Close()
	if err := blobIter.Err(); err != nil {
		return err
	}
	for blobIter.Rewind(); blobIter.ValidForPrefix(prefix); blobIter.Next() {
		item := blobIter.Item()
		if item == nil {
			continue
		}
		key := item.Key()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("read value for key %x: %w", key, err)
		}
		if err := fn(key, val); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return nil
			}
			return err
		}
	}
	return blobIter.Err()
}
