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

package authz_test

import (
	"errors"
	"testing"

	"github.com/blinklabs-io/lineage/admin"
	"github.com/blinklabs-io/lineage/authz"
	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/delegation"
	"github.com/blinklabs-io/lineage/internal/test/testutil"
	"github.com/blinklabs-io/lineage/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	scope      = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	otherScope = common.HexToAddress("0x00000000000000000000000000000000000000c2")
)

type fixture struct {
	db  *database.Database
	reg *registry.Registry
	eng *delegation.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	adm := admin.New(db, nil, nil)
	reg, err := registry.New(registry.Config{DB: db, Admin: adm})
	require.NoError(t, err)
	eng, err := delegation.New(delegation.Config{DB: db, Admin: adm, Accounts: reg})
	require.NoError(t, err)
	return &fixture{db: db, reg: reg, eng: eng}
}

func TestRightsTag(t *testing.T) {
	assert.Equal(t, common.Hash{}, authz.RightsTag(""))
	tag := authz.RightsTag("registerProvenance")
	assert.Equal(t, []byte("registerProvenance"), tag.Bytes()[:len("registerProvenance")])
	assert.NotEqual(
		t,
		authz.RightsTag("a_rights_name_longer_than_32_bytes_1"),
		authz.RightsTag("a_rights_name_longer_than_32_bytes_2"),
	)
}

func TestCanAct(t *testing.T) {
	f := newFixture(t)
	bridge := authz.New(f.db, f.reg, f.eng, nil)
	rights := authz.RightsTag("registerProvenance")

	owner := testutil.NewTestKey(t)
	op := testutil.NewTestKey(t)
	registrar := testutil.NewTestKey(t)
	stranger := testutil.NewTestKey(t)
	ownerID, err := f.reg.Register(owner.Address, registry.RegisterParams{Username: "owner", Operator: op.Address})
	require.NoError(t, err)
	registrarID, err := f.reg.Register(registrar.Address, registry.RegisterParams{Username: "registrar"})
	require.NoError(t, err)

	assert.True(t, bridge.CanAct(ownerID, owner.Address, scope, rights), "custody")
	assert.True(t, bridge.CanAct(ownerID, op.Address, scope, rights), "operator")
	assert.False(t, bridge.CanAct(ownerID, stranger.Address, scope, rights), "no account")
	assert.False(t, bridge.CanAct(ownerID, registrar.Address, scope, rights), "no delegation")
	assert.False(t, bridge.CanAct(99, registrar.Address, scope, rights), "unknown account")

	require.NoError(t, f.eng.DelegateContract(owner.Address, registrarID, scope, rights, true))
	assert.True(t, bridge.CanAct(ownerID, registrar.Address, scope, rights))
	assert.False(t, bridge.CanAct(ownerID, registrar.Address, otherScope, rights))
	assert.False(t, bridge.CanAct(ownerID, registrar.Address, scope, common.Hash{}), "tagged grant is not full rights")

	require.NoError(t, f.eng.DelegateContract(owner.Address, registrarID, scope, rights, false))
	require.NoError(t, f.eng.DelegateAll(op.Address, registrarID, common.Hash{}, true))
	assert.True(t, bridge.CanAct(ownerID, registrar.Address, otherScope, rights), "operator-made ALL grant")
}

type recordingAccounts struct {
	ids  map[common.Address]uint64
	acct registry.Account
}

func (r *recordingAccounts) IDOfTxn(_ *database.Txn, addr common.Address) (uint64, error) {
	return r.ids[addr], nil
}

func (r *recordingAccounts) AccountTxn(_ *database.Txn, id uint64) (registry.Account, error) {
	if id != r.acct.ID {
		return registry.Account{}, registry.ErrAccountNotFound
	}
	return r.acct, nil
}

type recordingChecker struct {
	err   error
	allow uint64
	froms []uint64
}

func (r *recordingChecker) CheckDelegateForContractTxn(
	_ *database.Txn,
	_ uint64,
	from uint64,
	_ common.Address,
	_ common.Hash,
) (bool, error) {
	r.froms = append(r.froms, from)
	if r.err != nil {
		return false, r.err
	}
	return from == r.allow, nil
}

func TestCanActChecksBothGrantors(t *testing.T) {
	f := newFixture(t)
	custody := common.HexToAddress("0x0a")
	operator := common.HexToAddress("0x0b")
	actor := common.HexToAddress("0x0c")
	accounts := &recordingAccounts{
		ids: map[common.Address]uint64{custody: 1, operator: 2, actor: 3},
		acct: registry.Account{
			ID:       1,
			Custody:  custody,
			Operator: operator,
		},
	}

	checker := &recordingChecker{allow: 2}
	bridge := authz.New(f.db, accounts, checker, nil)
	assert.True(t, bridge.CanAct(1, actor, scope, common.Hash{}))
	assert.Equal(t, []uint64{1, 2}, checker.froms)

	failing := &recordingChecker{err: errors.New("storage failure")}
	bridge = authz.New(f.db, accounts, failing, nil)
	assert.False(t, bridge.CanAct(1, actor, scope, common.Hash{}), "errors fail closed")
}
