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

package badger_test

import (
	"errors"
	"testing"

	"github.com/blinklabs-io/lineage/database/plugin/blob/badger"
	"github.com/blinklabs-io/lineage/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionFuncs(t *testing.T) {
	b := &badger.BlobStoreBadger{GcEnabled: true, SyncWrites: true}
	badger.WithDataDir("/tmp/test")(b)
	badger.WithBlockCacheSize(123456789)(b)
	badger.WithIndexCacheSize(987654321)(b)
	badger.WithGc(false)(b)
	badger.WithSyncWrites(false)(b)
	assert.Equal(t, "/tmp/test", b.DataDir)
	assert.Equal(t, uint64(123456789), b.BlockCacheSize)
	assert.Equal(t, uint64(987654321), b.IndexCacheSize)
	assert.False(t, b.GcEnabled)
	assert.False(t, b.SyncWrites)
}

func TestOnDiskReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := badger.New(badger.WithDataDir(dir), badger.WithGc(false))
	require.NoError(t, err)
	assert.True(t, store.SyncWrites)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("ra1"), []byte("account")))
	require.NoError(t, txn.Commit())
	require.NoError(t, store.Close())

	store, err = badger.New(badger.WithDataDir(dir), badger.WithGc(false))
	require.NoError(t, err)
	defer store.Close()
	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	val, err := store.Get(txn, []byte("ra1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("account"), val)
}

func TestInMemoryGetSetDelete(t *testing.T) {
	store, err := badger.New()
	require.NoError(t, err)
	defer store.Close()

	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k1"), []byte("v1")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(true)
	val, err := store.Get(txn, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), val)
	require.NoError(t, store.Delete(txn, []byte("k1")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err = store.Get(txn, []byte("k1"))
	assert.True(t, errors.Is(err, types.ErrBlobKeyNotFound))
}

func TestReadOnlyTxnRejectsWrites(t *testing.T) {
	store, err := badger.New()
	require.NoError(t, err)
	defer store.Close()

	txn := store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	err = store.Set(txn, []byte("k"), []byte("v"))
	assert.ErrorIs(t, err, types.ErrReadOnlyTxn)
}

func TestFinishedTxnRejected(t *testing.T) {
	store, err := badger.New()
	require.NoError(t, err)
	defer store.Close()

	txn := store.NewTransaction(true)
	require.NoError(t, txn.Rollback())
	_, err = store.Get(txn, []byte("k"))
	assert.Error(t, err)
}

func TestPrefixIterator(t *testing.T) {
	store, err := badger.New()
	require.NoError(t, err)
	defer store.Close()

	txn := store.NewTransaction(true)
	for _, k := range []string{"a1", "b1", "b2", "b3", "c1"} {
		require.NoError(t, store.Set(txn, []byte(k), []byte(k)))
	}
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	iter := store.NewIterator(txn, types.BlobIteratorOptions{Prefix: []byte("b")})
	defer iter.Close()
	var keys []string
	for iter.Rewind(); iter.ValidForPrefix([]byte("b")); iter.Next() {
		keys = append(keys, string(iter.Item().Key()))
	}
	require.NoError(t, iter.Err())
	assert.Equal(t, []string{"b1", "b2", "b3"}, keys)
}

func TestCommitTimestamp(t *testing.T) {
	store, err := badger.New()
	require.NoError(t, err)
	defer store.Close()

	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)

	txn := store.NewTransaction(true)
	require.NoError(t, store.SetCommitTimestamp(txn, 1712345678901))
	require.NoError(t, txn.Commit())

	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1712345678901), ts)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	store, err := badger.New(badger.WithPromRegistry(reg))
	require.NoError(t, err)
	defer store.Close()

	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k"), []byte("v")))
	_, err = store.Get(txn, []byte("k"))
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	count, err := testutil.GatherAndCount(reg, "lineage_blob_writes_total", "lineage_blob_reads_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
