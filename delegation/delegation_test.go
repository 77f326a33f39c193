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

package delegation_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/blinklabs-io/lineage/admin"
	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/delegation"
	"github.com/blinklabs-io/lineage/event"
	"github.com/blinklabs-io/lineage/internal/test/testutil"
	"github.com/blinklabs-io/lineage/registry"
	"github.com/blinklabs-io/lineage/typeddata"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ownerAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	contract1 = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	contract2 = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	rightsTag = common.HexToHash("0x72656769737465723a766f7465")
)

type fixture struct {
	adm   *admin.Admin
	reg   *registry.Registry
	eng   *delegation.Engine
	bus   *event.EventBus
	clock *testutil.Clock
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
	clock := testutil.NewClock(time.Unix(1_700_000_000, 0))
	reg, err := registry.New(registry.Config{DB: db, Admin: adm, EventBus: bus, Now: clock.Now})
	require.NoError(t, err)
	eng, err := delegation.New(delegation.Config{
		DB:       db,
		Admin:    adm,
		Accounts: reg,
		EventBus: bus,
		Now:      clock.Now,
		Gateway:  reg.Address(),
	})
	require.NoError(t, err)
	reg.SetBootstrapper(eng)
	return &fixture{adm: adm, reg: reg, eng: eng, bus: bus, clock: clock}
}

func (f *fixture) account(t *testing.T, username string) (testutil.TestKey, uint64) {
	t.Helper()
	k := testutil.NewTestKey(t)
	id, err := f.reg.Register(k.Address, registry.RegisterParams{Username: username})
	require.NoError(t, err)
	return k, id
}

func TestParseKind(t *testing.T) {
	for _, k := range []delegation.Kind{
		delegation.KindAll,
		delegation.KindContract,
		delegation.KindERC721,
		delegation.KindERC20,
		delegation.KindERC1155,
	} {
		got, err := delegation.ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := delegation.ParseKind("erc20")
	require.NoError(t, err)
	assert.Equal(t, delegation.KindERC20, got)
	_, err = delegation.ParseKind("ERC777")
	assert.ErrorIs(t, err, delegation.ErrInvalidKind)
}

func TestHashIgnoresUnusedScope(t *testing.T) {
	base := delegation.Delegation{Kind: delegation.KindAll, From: 1, To: 2}
	withScope := base
	withScope.Contract = contract1
	withScope.TokenID = big.NewInt(5)
	assert.Equal(t, base.Hash(), withScope.Hash())

	erc20 := delegation.Delegation{Kind: delegation.KindERC20, From: 1, To: 2, Contract: contract1}
	withAmount := erc20
	withAmount.Amount = big.NewInt(100)
	assert.Equal(t, erc20.Hash(), withAmount.Hash(), "amount is not part of the hash")

	other := erc20
	other.Kind = delegation.KindERC1155
	assert.NotEqual(t, erc20.Hash(), other.Hash())
	assert.NotEqual(t, erc20.Hash(), delegation.Location(erc20.Hash()))
}

func TestDelegateRevokeCheck(t *testing.T) {
	f := newFixture(t)
	a, aID := f.account(t, "alice")
	_, bID := f.account(t, "bob")

	require.NoError(t, f.eng.DelegateAll(a.Address, bID, common.Hash{}, true))
	ok, err := f.eng.CheckDelegateForAll(bID, aID, common.Hash{})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.eng.CheckDelegateForAll(aID, bID, common.Hash{})
	require.NoError(t, err)
	assert.False(t, ok, "delegations are directed")

	hashes, err := f.eng.OutgoingDelegationHashes(aID)
	require.NoError(t, err)
	require.Len(t, hashes, 1)
	expected := delegation.Delegation{Kind: delegation.KindAll, From: aID, To: bID}
	assert.Equal(t, expected.Hash(), hashes[0])

	require.NoError(t, f.eng.DelegateAll(a.Address, bID, common.Hash{}, false))
	ok, err = f.eng.CheckDelegateForAll(bID, aID, common.Hash{})
	require.NoError(t, err)
	assert.False(t, ok)
	hashes, err = f.eng.OutgoingDelegationHashes(aID)
	require.NoError(t, err)
	assert.Empty(t, hashes)
	status, err := f.eng.Status(expected.Hash())
	require.NoError(t, err)
	assert.Equal(t, delegation.StatusRevoked, status)

	found, err := f.eng.DelegationsFromHashes([]common.Hash{expected.Hash()})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, delegation.Delegation{}, found[0])
}

func TestDelegateIdempotentAndRoundtrip(t *testing.T) {
	f := newFixture(t)
	a, aID := f.account(t, "alice")
	_, bID := f.account(t, "bob")

	for range 3 {
		require.NoError(t, f.eng.DelegateContract(a.Address, bID, contract1, common.Hash{}, true))
	}
	out, err := f.eng.OutgoingDelegations(aID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, contract1, out[0].Contract)

	// Revoke twice, then re-grant
	require.NoError(t, f.eng.DelegateContract(a.Address, bID, contract1, common.Hash{}, false))
	require.NoError(t, f.eng.DelegateContract(a.Address, bID, contract1, common.Hash{}, false))
	require.NoError(t, f.eng.DelegateContract(a.Address, bID, contract1, common.Hash{}, true))

	in, err := f.eng.IncomingDelegationHashes(bID)
	require.NoError(t, err)
	require.Len(t, in, 1, "re-grant reuses the logged hash")
	ok, err := f.eng.CheckDelegateForContract(bID, aID, contract1, common.Hash{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestERC20Amounts(t *testing.T) {
	f := newFixture(t)
	a, aID := f.account(t, "alice")
	_, bID := f.account(t, "bob")

	require.NoError(t, f.eng.DelegateERC20(a.Address, bID, contract1, common.Hash{}, big.NewInt(100)))
	amount, err := f.eng.CheckDelegateForERC20(bID, aID, contract1, common.Hash{})
	require.NoError(t, err)
	assert.Equal(t, int64(100), amount.Int64())

	amount, err = f.eng.CheckDelegateForERC20(bID, aID, contract2, common.Hash{})
	require.NoError(t, err)
	assert.Zero(t, amount.Sign())

	// A larger tagged grant counts only when checking with that tag
	require.NoError(t, f.eng.DelegateERC20(a.Address, bID, contract1, rightsTag, big.NewInt(500)))
	amount, err = f.eng.CheckDelegateForERC20(bID, aID, contract1, rightsTag)
	require.NoError(t, err)
	assert.Equal(t, int64(500), amount.Int64())
	amount, err = f.eng.CheckDelegateForERC20(bID, aID, contract1, common.Hash{})
	require.NoError(t, err)
	assert.Equal(t, int64(100), amount.Int64())

	require.NoError(t, f.eng.DelegateAll(a.Address, bID, common.Hash{}, true))
	for _, rights := range []common.Hash{{}, rightsTag} {
		amount, err = f.eng.CheckDelegateForERC20(bID, aID, contract1, rights)
		require.NoError(t, err)
		assert.Equal(t, 0, amount.Cmp(delegation.MaxAmount))
	}
}

func TestERC1155AmountUpdate(t *testing.T) {
	f := newFixture(t)
	a, aID := f.account(t, "alice")
	_, bID := f.account(t, "bob")
	token := big.NewInt(7)

	require.NoError(t, f.eng.DelegateERC1155(a.Address, bID, contract1, token, common.Hash{}, big.NewInt(10)))
	require.NoError(t, f.eng.DelegateERC1155(a.Address, bID, contract1, token, common.Hash{}, big.NewInt(20)))
	amount, err := f.eng.CheckDelegateForERC1155(bID, aID, contract1, token, common.Hash{})
	require.NoError(t, err)
	assert.Equal(t, int64(20), amount.Int64())

	out, err := f.eng.OutgoingDelegations(aID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(20), out[0].Amount.Int64())
	assert.Equal(t, int64(7), out[0].TokenID.Int64())

	amount, err = f.eng.CheckDelegateForERC1155(bID, aID, contract1, big.NewInt(8), common.Hash{})
	require.NoError(t, err)
	assert.Zero(t, amount.Sign())

	require.NoError(t, f.eng.DelegateERC1155(a.Address, bID, contract1, token, common.Hash{}, big.NewInt(0)))
	amount, err = f.eng.CheckDelegateForERC1155(bID, aID, contract1, token, common.Hash{})
	require.NoError(t, err)
	assert.Zero(t, amount.Sign())
	out, err = f.eng.OutgoingDelegations(aID)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestScopeOrdering(t *testing.T) {
	f := newFixture(t)
	a, aID := f.account(t, "alice")
	_, bID := f.account(t, "bob")
	token := big.NewInt(1)

	require.NoError(t, f.eng.DelegateContract(a.Address, bID, contract1, common.Hash{}, true))
	ok, err := f.eng.CheckDelegateForERC721(bID, aID, contract1, token, common.Hash{})
	require.NoError(t, err)
	assert.True(t, ok, "contract grant covers its tokens")
	ok, err = f.eng.CheckDelegateForERC721(bID, aID, contract2, token, common.Hash{})
	require.NoError(t, err)
	assert.False(t, ok)
	amount, err := f.eng.CheckDelegateForERC1155(bID, aID, contract1, token, rightsTag)
	require.NoError(t, err)
	assert.Equal(t, 0, amount.Cmp(delegation.MaxAmount))

	require.NoError(t, f.eng.DelegateERC721(a.Address, bID, contract2, token, rightsTag, true))
	testDefs := []struct {
		name    string
		tokenID *big.Int
		rights  common.Hash
		want    bool
	}{
		{name: "tagged check matches tagged grant", tokenID: token, rights: rightsTag, want: true},
		{name: "full rights check ignores tagged grant", tokenID: token, rights: common.Hash{}, want: false},
		{name: "other tag", tokenID: token, rights: common.HexToHash("0x01"), want: false},
		{name: "other token", tokenID: big.NewInt(2), rights: rightsTag, want: false},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			ok, err := f.eng.CheckDelegateForERC721(bID, aID, contract2, testDef.tokenID, testDef.rights)
			require.NoError(t, err)
			assert.Equal(t, testDef.want, ok)
		})
	}
}

func TestInvalidFrom(t *testing.T) {
	f := newFixture(t)
	_, aID := f.account(t, "alice")
	for _, from := range []uint64{0, aID + 1, ^uint64(0)} {
		ok, err := f.eng.CheckDelegateForAll(aID, from, common.Hash{})
		require.NoError(t, err)
		assert.False(t, ok)
		amount, err := f.eng.CheckDelegateForERC20(aID, from, contract1, common.Hash{})
		require.NoError(t, err)
		assert.Zero(t, amount.Sign())
	}
}

func TestDelegateAuthorization(t *testing.T) {
	f := newFixture(t)
	a, aID := f.account(t, "alice")
	_, bID := f.account(t, "bob")
	op := testutil.NewTestKey(t)
	stranger := testutil.NewTestKey(t)
	require.NoError(t, f.reg.ChangeOperator(a.Address, op.Address))

	assert.ErrorIs(t, f.eng.DelegateAll(stranger.Address, bID, common.Hash{}, true), delegation.ErrHasNoID)
	assert.ErrorIs(
		t,
		f.eng.Delegate(a.Address, delegation.Request{Kind: delegation.KindAll, From: bID, To: aID, Enable: true}),
		delegation.ErrUnauthorized,
	)
	assert.ErrorIs(t, f.eng.DelegateAll(a.Address, 99, common.Hash{}, true), delegation.ErrInvalidAccount)
	assert.ErrorIs(
		t,
		f.eng.Delegate(a.Address, delegation.Request{Kind: delegation.KindNone, To: bID}),
		delegation.ErrInvalidKind,
	)
	assert.ErrorIs(
		t,
		f.eng.DelegateERC20(a.Address, bID, contract1, common.Hash{}, new(big.Int).Lsh(big.NewInt(1), 256)),
		delegation.ErrValueTooLarge,
	)

	// The operator acts for the account it is bound to
	require.NoError(t, f.eng.DelegateAll(op.Address, bID, common.Hash{}, true))
	ok, err := f.eng.CheckDelegateForAll(bID, aID, common.Hash{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDelegateFor(t *testing.T) {
	f := newFixture(t)
	a, aID := f.account(t, "alice")
	_, bID := f.account(t, "bob")
	op := testutil.NewTestKey(t)
	require.NoError(t, f.reg.ChangeOperator(a.Address, op.Address))
	deadline := f.clock.Unix() + 60
	req := delegation.Request{
		Kind:     delegation.KindERC20,
		From:     aID,
		To:       bID,
		Contract: contract1,
		Amount:   big.NewInt(42),
	}

	opAuth, err := f.eng.Verifier().Sign(op.Key, delegation.DelegateSchema, delegation.DelegateMessage(req), 0, deadline)
	require.NoError(t, err)
	assert.ErrorIs(t, f.eng.DelegateFor(req, opAuth), typeddata.ErrInvalidSignature, "only custody signs")

	auth, err := f.eng.Verifier().Sign(a.Key, delegation.DelegateSchema, delegation.DelegateMessage(req), 0, deadline)
	require.NoError(t, err)
	require.NoError(t, f.eng.DelegateFor(req, auth))
	amount, err := f.eng.CheckDelegateForERC20(bID, aID, contract1, common.Hash{})
	require.NoError(t, err)
	assert.Equal(t, int64(42), amount.Int64())

	n, err := f.eng.Nonce(a.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	n, err = f.reg.Nonce(a.Address)
	require.NoError(t, err)
	assert.Zero(t, n, "registry nonces are separate")

	req.From = 99
	assert.ErrorIs(t, f.eng.DelegateFor(req, auth), delegation.ErrInvalidAccount)
}

func TestMulticall(t *testing.T) {
	f := newFixture(t)
	a, aID := f.account(t, "alice")
	_, bID := f.account(t, "bob")

	err := f.eng.Multicall(
		a.Address,
		delegation.DelegateCall{Request: delegation.Request{Kind: delegation.KindAll, To: bID, Enable: true}},
		delegation.IncrementNonceCall{},
		delegation.DelegateCall{Request: delegation.Request{Kind: delegation.KindAll, To: 99, Enable: true}},
	)
	require.ErrorIs(t, err, delegation.ErrInvalidAccount)
	out, err := f.eng.OutgoingDelegations(aID)
	require.NoError(t, err)
	assert.Empty(t, out, "failed batch stores nothing")
	n, err := f.eng.Nonce(a.Address)
	require.NoError(t, err)
	assert.Zero(t, n)

	err = f.eng.Multicall(
		a.Address,
		delegation.DelegateCall{Request: delegation.Request{Kind: delegation.KindAll, To: bID, Enable: true}},
		delegation.DelegateCall{Request: delegation.Request{
			Kind:     delegation.KindContract,
			To:       bID,
			Contract: contract1,
			Enable:   true,
		}},
		delegation.IncrementNonceCall{},
	)
	require.NoError(t, err)
	out, err = f.eng.OutgoingDelegations(aID)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	n, err = f.eng.Nonce(a.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestBootstrap(t *testing.T) {
	f := newFixture(t)
	legacy, legacyID := f.account(t, "legacy")
	fresh := testutil.NewTestKey(t)

	assert.ErrorIs(t, f.eng.BootstrapDelegateAll(legacy.Address, legacyID, legacyID), delegation.ErrNotGateway)

	freshID, err := f.reg.RegisterAndDelegate(fresh.Address, registry.RegisterParams{Username: "fresh"}, legacyID)
	require.NoError(t, err)
	ok, err := f.eng.CheckDelegateForAll(legacyID, freshID, common.Hash{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPausedAndEvents(t *testing.T) {
	f := newFixture(t)
	_, evtCh := f.bus.Subscribe(event.DelegationDelegateEventType)
	a, aID := f.account(t, "alice")
	_, bID := f.account(t, "bob")

	// Revoking an absent delegation changes nothing but is still reported
	require.NoError(t, f.eng.DelegateAll(a.Address, bID, common.Hash{}, false))
	evt := testutil.RequireReceive(t, evtCh, time.Second, "delegate event")
	data, ok := evt.Data.(event.DelegateEvent)
	require.True(t, ok)
	assert.Equal(t, "ALL", data.Kind)
	assert.Equal(t, aID, data.From)
	assert.Equal(t, bID, data.To)
	assert.False(t, data.Enable)

	require.NoError(t, f.adm.Pause(ownerAddr))
	assert.ErrorIs(t, f.eng.DelegateAll(a.Address, bID, common.Hash{}, true), admin.ErrPaused)
	before, err := f.eng.Nonce(a.Address)
	require.NoError(t, err)
	_, err = f.eng.IncrementNonce(a.Address)
	assert.ErrorIs(t, err, admin.ErrPaused)
	after, err := f.eng.Nonce(a.Address)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	testutil.RequireNoReceive(t, evtCh, 50*time.Millisecond, "no event for a failed call")
}
