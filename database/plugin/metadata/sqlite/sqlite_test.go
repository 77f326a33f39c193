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

package sqlite

import (
	"bytes"
	"log/slog"
	"math/big"
	"testing"

	"github.com/blinklabs-io/lineage/database/models"
	"github.com/blinklabs-io/lineage/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDataDir(t *testing.T) {
	m := &MetadataStoreSqlite{}
	WithDataDir("/tmp/test")(m)
	assert.Equal(t, "/tmp/test", m.dataDir)
}

func TestWithLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	m := &MetadataStoreSqlite{}
	WithLogger(logger)(m)
	assert.Same(t, logger, m.logger)
}

func TestWithPromRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := &MetadataStoreSqlite{}
	WithPromRegistry(reg)(m)
	assert.Equal(t, reg, m.promRegistry)
}

func newTestStore(t *testing.T) *MetadataStoreSqlite {
	t.Helper()
	store, err := New()
	require.NoError(t, err)
	require.NoError(t, store.Start())
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func testClaim(hashByte byte, originator uint64) *models.ProvenanceClaim {
	return &models.ProvenanceClaim{
		ContentHash:  bytes.Repeat([]byte{hashByte}, 32),
		OriginatorId: originator,
		RegistrarId:  originator,
		NftContract:  bytes.Repeat([]byte{0xaa}, 20),
		NftTokenId:   types.BigInt{Int: big.NewInt(int64(hashByte))},
	}
}

func TestInMemoryStoresAreIsolated(t *testing.T) {
	store1 := newTestStore(t)
	store2 := newTestStore(t)
	require.NoError(t, store1.AddProvenanceClaim(nil, testClaim(1, 1)))
	count, err := store2.CountProvenanceClaims(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
	count, err = store1.CountProvenanceClaims(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestProvenanceClaimRoundTrip(t *testing.T) {
	store := newTestStore(t)
	txn := store.Transaction()
	require.NoError(t, store.AddProvenanceClaim(txn, testClaim(7, 3)))
	require.NoError(t, txn.Commit())

	claim, err := store.GetProvenanceClaim(nil, bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, uint64(3), claim.OriginatorId)
	assert.Equal(t, 0, claim.NftTokenId.Cmp(big.NewInt(7)))
	assert.Equal(t, bytes.Repeat([]byte{0xaa}, 20), claim.NftContract)

	missing, err := store.GetProvenanceClaim(nil, bytes.Repeat([]byte{8}, 32))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProvenanceClaimRollback(t *testing.T) {
	store := newTestStore(t)
	txn := store.Transaction()
	require.NoError(t, store.AddProvenanceClaim(txn, testClaim(9, 1)))
	require.NoError(t, txn.Rollback())
	claim, err := store.GetProvenanceClaim(nil, bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	assert.Nil(t, claim)
}

func TestProvenanceClaimUniqueContentHash(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.AddProvenanceClaim(nil, testClaim(1, 1)))
	assert.Error(t, store.AddProvenanceClaim(nil, testClaim(1, 2)))
}

func TestProvenanceClaimsByOriginator(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.AddProvenanceClaim(nil, testClaim(1, 5)))
	require.NoError(t, store.AddProvenanceClaim(nil, testClaim(2, 6)))
	require.NoError(t, store.AddProvenanceClaim(nil, testClaim(3, 5)))
	claims, err := store.GetProvenanceClaimsByOriginator(nil, 5)
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, byte(1), claims[0].ContentHash[0])
	assert.Equal(t, byte(3), claims[1].ContentHash[0])
}

func TestCommitTimestamp(t *testing.T) {
	store := newTestStore(t)
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)
	txn := store.Transaction()
	require.NoError(t, store.SetCommitTimestamp(txn, 1234))
	require.NoError(t, txn.Commit())
	require.NoError(t, store.SetCommitTimestamp(nil, 5678))
	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(5678), ts)
}

func TestFinishedTxnRejected(t *testing.T) {
	store := newTestStore(t)
	txn := store.Transaction()
	require.NoError(t, txn.Commit())
	require.NoError(t, txn.Commit())
	err := store.AddProvenanceClaim(txn, testClaim(1, 1))
	assert.ErrorIs(t, err, types.ErrTxnFinished)
}

type otherTxn struct{}

func (otherTxn) Commit() error   { return nil }
func (otherTxn) Rollback() error { return nil }

func TestWrongTxnType(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetProvenanceClaim(otherTxn{}, make([]byte, 32))
	assert.ErrorIs(t, err, types.ErrTxnWrongType)
}

func TestOnDiskStore(t *testing.T) {
	dir := t.TempDir()
	store, err := New(WithDataDir(dir))
	require.NoError(t, err)
	require.NoError(t, store.AddProvenanceClaim(nil, testClaim(4, 4)))
	require.NoError(t, store.Close())
	// Closing twice is harmless
	require.NoError(t, store.Close())

	store, err = New(WithDataDir(dir))
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck
	claim, err := store.GetProvenanceClaim(nil, bytes.Repeat([]byte{4}, 32))
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, uint64(4), claim.OriginatorId)
}
