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

package lineage

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/lineage/authz"
	"github.com/blinklabs-io/lineage/event"
	"github.com/blinklabs-io/lineage/provenance"
	"github.com/blinklabs-io/lineage/registry"
)

func testAddress(t *testing.T) common.Address {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return crypto.PubkeyToAddress(key.PublicKey)
}

func TestNodeLifecycle(t *testing.T) {
	owner := testAddress(t)
	n, err := New(NewConfig(
		WithOwner(owner),
		WithChainID(big.NewInt(31337)),
		WithPrometheusRegistry(prometheus.NewRegistry()),
		WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }),
	))
	require.NoError(t, err)

	_, err = n.CanAct(1, owner, common.Address{}, "")
	require.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, n.Start())
	require.ErrorIs(t, n.Start(), ErrAlreadyStarted)

	gotOwner, err := n.Admin().Owner()
	require.NoError(t, err)
	assert.Equal(t, owner, gotOwner)

	assert.Equal(t, big.NewInt(31337), n.Registry().Verifier().Domain().ChainID)

	require.NoError(t, n.Stop())
	require.NoError(t, n.Stop())
	assert.Nil(t, n.DB())
}

func TestNodeRestart(t *testing.T) {
	n, err := New(NewConfig(
		WithDataDir(t.TempDir()),
		WithPrometheusRegistry(prometheus.NewRegistry()),
	))
	require.NoError(t, err)
	alice := testAddress(t)

	require.NoError(t, n.Start())
	id, err := n.Registry().Register(alice, registry.RegisterParams{Username: "alice"})
	require.NoError(t, err)
	require.NoError(t, n.Stop())
	assert.Nil(t, n.DB())
	_, err = n.CanAct(id, alice, common.Address{}, "")
	require.ErrorIs(t, err, ErrNotStarted)

	// Reopening the same data dir only works if the first Stop released it
	require.NoError(t, n.Start())
	require.NotNil(t, n.DB())
	got, err := n.Registry().IDOf(alice)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	require.NoError(t, n.Stop())
	assert.Nil(t, n.DB())
	assert.Nil(t, n.EventBus())
}

func TestNodeEndToEnd(t *testing.T) {
	n, err := New(NewConfig())
	require.NoError(t, err)
	require.NoError(t, n.Start())
	t.Cleanup(func() { _ = n.Stop() })

	_, registered := n.EventBus().Subscribe(event.RegistryRegisteredEventType)

	alice := testAddress(t)
	relayer := testAddress(t)
	relayerID, err := n.Registry().Register(relayer, registry.RegisterParams{Username: "relayer"})
	require.NoError(t, err)

	// Bootstrap grant from the new account to the relayer
	aliceID, err := n.Registry().RegisterAndDelegate(
		alice,
		registry.RegisterParams{Username: "alice"},
		relayerID,
	)
	require.NoError(t, err)

	select {
	case evt := <-registered:
		assert.Equal(t, event.RegistryRegisteredEventType, evt.Type)
	case <-time.After(time.Second):
		t.Fatal("no registration event")
	}

	scope := n.Provenance().Address()
	ok, err := n.CanAct(aliceID, relayer, scope, provenance.RegisterRights)
	require.NoError(t, err)
	assert.True(t, ok)

	claim, err := n.Provenance().RegisterProvenance(
		context.Background(),
		relayer,
		provenance.Claim{
			OriginatorID: aliceID,
			ContentHash:  crypto.Keccak256Hash([]byte("first post")),
		},
	)
	require.NoError(t, err)
	assert.Equal(t, relayerID, claim.RegistrarID)

	// A stranger has no grant
	stranger := testAddress(t)
	_, err = n.Registry().Register(stranger, registry.RegisterParams{Username: "stranger"})
	require.NoError(t, err)
	assert.False(t, n.Bridge().CanAct(aliceID, stranger, scope, authz.RightsTag(provenance.RegisterRights)))
}
