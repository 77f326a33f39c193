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

package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"
)

// Txn is the common handle shared by the blob and metadata stores
type Txn interface {
	Commit() error
	Rollback() error
}

// BlobItem is a single key/value pair yielded by a BlobIterator
type BlobItem interface {
	Key() []byte
	ValueCopy([]byte) ([]byte, error)
}

// BlobIterator walks keys in a blob store transaction
type BlobIterator interface {
	Rewind()
	Seek([]byte)
	Valid() bool
	ValidForPrefix([]byte) bool
	Next()
	Item() BlobItem
	Close()
	Err() error
}

// BlobIteratorOptions controls iteration over a blob store
type BlobIteratorOptions struct {
	Prefix  []byte
	Reverse bool
}

// BigInt stores an arbitrary precision unsigned integer as a decimal string
//
//nolint:recvcheck
type BigInt struct {
	*big.Int
}

func (b BigInt) Value() (driver.Value, error) {
	if b.Int == nil {
		return "0", nil
	}
	return b.String(), nil
}

func (b *BigInt) Scan(val any) error {
	v, ok := val.(string)
	if !ok {
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	tmp, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return fmt.Errorf("failed to set big.Int value from string: %s", v)
	}
	b.Int = tmp
	return nil
}

// ErrBlobKeyNotFound is returned by blob operations when a key is missing
var ErrBlobKeyNotFound = errors.New("blob key not found")

// ErrTxnWrongType is returned when a transaction has the wrong type
var ErrTxnWrongType = errors.New("invalid transaction type")

// ErrNilTxn is returned when a nil transaction is provided where a valid transaction is required
var ErrNilTxn = errors.New("nil transaction")

// ErrBlobStoreUnavailable is returned when the blob store has been closed or never opened
var ErrBlobStoreUnavailable = errors.New("blob store unavailable")

// ErrNoStoreAvailable is returned when a read-write transaction has no backing store
var ErrNoStoreAvailable = errors.New("no store available")

// ErrReadOnlyTxn is returned when a write is attempted in a read-only transaction
var ErrReadOnlyTxn = errors.New("read-only transaction")

// ErrTxnFinished is returned when a committed or rolled back transaction is used again
var ErrTxnFinished = errors.New("transaction already finished")
