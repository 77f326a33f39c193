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

package provenance_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/blinklabs-io/lineage/admin"
	"github.com/blinklabs-io/lineage/authz"
	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/delegation"
	"github.com/blinklabs-io/lineage/event"
	"github.com/blinklabs-io/lineage/internal/test/testutil"
	"github.com/blinklabs-io/lineage/provenance"
	"github.com/blinklabs-io/lineage/registry"
	"github.com/blinklabs-io/lineage/typeddata"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ownerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	nftContract = common.HexToAddress("0x00000000000000000000000000000000000000a7")
)

type fixture struct {
	adm    *admin.Admin
	reg    *registry.Registry
	eng    *delegation.Engine
	ledger *provenance.Ledger
	bus    *event.EventBus
	clock  *testutil.Clock
	nfts   map[string]common.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(bus.Stop)
	adm := admin.New(db, bus, nil)
	require.NoError(t, adm.Init(ownerAddr))
	clock := testutil.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	reg, err := registry.New(registry.Config{DB: db, Admin: adm, Now: clock.Now})
	require.NoError(t, err)
	eng, err := delegation.New(delegation.Config{DB: db, Admin: adm, Accounts: reg, Now: clock.Now})
	require.NoError(t, err)
	f := &fixture{
		adm:   adm,
		reg:   reg,
		eng:   eng,
		bus:   bus,
		clock: clock,
		nfts:  make(map[string]common.Address),
	}
	resolver := provenance.NFTOwnerResolverFunc(
		func(_ context.Context, contract common.Address, tokenID *big.Int) (common.Address, error) {
			owner, ok := f.nfts[contract.Hex()+tokenID.String()]
			if !ok {
				return common.Address{}, errors.New("unknown token")
			}
			return owner, nil
		},
	)
	f.ledger, err = provenance.New(provenance.Config{
		DB:               db,
		Admin:            adm,
		Accounts:         reg,
		Bridge:           authz.New(db, reg, eng, nil),
		EventBus:         bus,
		Now:              clock.Now,
		NFTOwnerResolver: resolver,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) account(t *testing.T, username string) (testutil.TestKey, uint64) {
	t.Helper()
	k := testutil.NewTestKey(t)
	id, err := f.reg.Register(k.Address, registry.RegisterParams{Username: username})
	require.NoError(t, err)
	return k, id
}

func contentHash(s string) common.Hash {
	return crypto.Keccak256Hash([]byte(s))
}

func TestRegisterByOriginator(t *testing.T) {
	f := newFixture(t)
	_, evtCh := f.bus.Subscribe(event.ProvenanceRegisteredEventType)
	artist, artistID := f.account(t, "artist")

	claim, err := f.ledger.RegisterProvenance(
		context.Background(),
		artist.Address,
		provenance.Claim{OriginatorID: artistID, ContentHash: contentHash("song")},
	)
	require.NoError(t, err)
	assert.Equal(t, artistID, claim.RegistrarID)
	evt := testutil.RequireReceive(t, evtCh, time.Second, "provenance event")
	data, ok := evt.Data.(event.ProvenanceRegisteredEvent)
	require.True(t, ok)
	assert.Equal(t, contentHash("song"), data.ContentHash)

	got, err := f.ledger.ClaimByContentHash(contentHash("song"))
	require.NoError(t, err)
	assert.Equal(t, artistID, got.OriginatorID)
	assert.True(t, got.CreatedAt.Equal(f.clock.Now()))
	assert.Nil(t, got.NFTTokenID)

	_, err = f.ledger.RegisterProvenance(
		context.Background(),
		artist.Address,
		provenance.Claim{OriginatorID: artistID, ContentHash: contentHash("song")},
	)
	assert.ErrorIs(t, err, provenance.ErrContentAlreadyRegistered)

	_, err = f.ledger.ClaimByContentHash(contentHash("missing"))
	assert.ErrorIs(t, err, provenance.ErrClaimNotFound)
}

func TestRegistrarNeedsDelegation(t *testing.T) {
	f := newFixture(t)
	artist, artistID := f.account(t, "artist")
	label, labelID := f.account(t, "label")
	claim := provenance.Claim{OriginatorID: artistID, ContentHash: contentHash("album")}

	_, err := f.ledger.RegisterProvenance(context.Background(), label.Address, claim)
	require.ErrorIs(t, err, provenance.ErrUnauthorized)

	require.NoError(t, f.eng.DelegateContract(
		artist.Address,
		labelID,
		f.ledger.Address(),
		authz.RightsTag(provenance.RegisterRights),
		true,
	))
	stored, err := f.ledger.RegisterProvenance(context.Background(), label.Address, claim)
	require.NoError(t, err)
	assert.Equal(t, labelID, stored.RegistrarID)

	claims, err := f.ledger.ClaimsByOriginator(artistID)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, labelID, claims[0].RegistrarID)
	count, err := f.ledger.ClaimCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestNFTOwnership(t *testing.T) {
	f := newFixture(t)
	artist, artistID := f.account(t, "artist")
	other := testutil.NewTestKey(t)
	f.nfts[nftContract.Hex()+"1"] = artist.Address
	f.nfts[nftContract.Hex()+"2"] = other.Address

	testDefs := []struct {
		name    string
		tokenID int64
		err     error
	}{
		{name: "owned", tokenID: 1},
		{name: "held by someone else", tokenID: 2, err: provenance.ErrNFTNotOwned},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := f.ledger.RegisterProvenance(context.Background(), artist.Address, provenance.Claim{
				OriginatorID: artistID,
				ContentHash:  contentHash(testDef.name),
				NFTContract:  nftContract,
				NFTTokenID:   big.NewInt(testDef.tokenID),
			})
			if testDef.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, testDef.err)
		})
	}
	_, err := f.ledger.RegisterProvenance(context.Background(), artist.Address, provenance.Claim{
		OriginatorID: artistID,
		ContentHash:  contentHash("unknown"),
		NFTContract:  nftContract,
		NFTTokenID:   big.NewInt(3),
	})
	require.Error(t, err)

	got, err := f.ledger.ClaimByContentHash(contentHash("owned"))
	require.NoError(t, err)
	assert.Equal(t, nftContract, got.NFTContract)
	assert.Equal(t, int64(1), got.NFTTokenID.Int64())
}

func TestRegisterProvenanceFor(t *testing.T) {
	f := newFixture(t)
	artist, artistID := f.account(t, "artist")
	claim := provenance.Claim{OriginatorID: artistID, ContentHash: contentHash("poem")}
	auth, err := f.ledger.Verifier().Sign(
		artist.Key,
		provenance.RegisterProvenanceSchema,
		provenance.RegisterProvenanceMessage(claim),
		0,
		f.clock.Unix()+60,
	)
	require.NoError(t, err)

	other := claim
	other.ContentHash = contentHash("other poem")
	_, err = f.ledger.RegisterProvenanceFor(context.Background(), other, auth)
	require.ErrorIs(t, err, typeddata.ErrInvalidSignature)

	stored, err := f.ledger.RegisterProvenanceFor(context.Background(), claim, auth)
	require.NoError(t, err)
	assert.Equal(t, artistID, stored.RegistrarID)
	n, err := f.ledger.Nonce(artist.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestRegisterRollsBackOnPause(t *testing.T) {
	f := newFixture(t)
	artist, artistID := f.account(t, "artist")
	require.NoError(t, f.adm.Pause(ownerAddr))
	_, err := f.ledger.RegisterProvenance(
		context.Background(),
		artist.Address,
		provenance.Claim{OriginatorID: artistID, ContentHash: contentHash("x")},
	)
	require.ErrorIs(t, err, admin.ErrPaused)
	_, err = f.ledger.RegisterProvenance(
		context.Background(),
		artist.Address,
		provenance.Claim{OriginatorID: artistID},
	)
	require.ErrorIs(t, err, admin.ErrPaused)

	require.NoError(t, f.adm.Unpause(ownerAddr))
	_, err = f.ledger.RegisterProvenance(
		context.Background(),
		artist.Address,
		provenance.Claim{OriginatorID: artistID},
	)
	require.ErrorIs(t, err, provenance.ErrInvalidContentHash)
	count, err := f.ledger.ClaimCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}
