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

package delegation

import (
	"testing"

	"github.com/blinklabs-io/lineage/admin"
	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/internal/test/testutil"
	"github.com/blinklabs-io/lineage/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	adm := admin.New(db, nil, nil)
	reg, err := registry.New(registry.Config{DB: db, Admin: adm})
	require.NoError(t, err)
	e, err := New(Config{
		DB:           db,
		Admin:        adm,
		Accounts:     reg,
		PromRegistry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	a := testutil.NewTestKey(t)
	b := testutil.NewTestKey(t)
	aID, err := reg.Register(a.Address, registry.RegisterParams{Username: "alice"})
	require.NoError(t, err)
	bID, err := reg.Register(b.Address, registry.RegisterParams{Username: "bob"})
	require.NoError(t, err)

	require.NoError(t, e.DelegateAll(a.Address, bID, common.Hash{}, true))
	require.NoError(t, e.DelegateAll(a.Address, bID, common.Hash{}, true))
	require.NoError(t, e.DelegateAll(a.Address, bID, common.Hash{}, false))
	_, err = e.CheckDelegateForAll(bID, aID, common.Hash{})
	require.NoError(t, err)

	assert.InDelta(t, 1, promtestutil.ToFloat64(e.metrics.grants.WithLabelValues("ALL")), 0)
	assert.InDelta(t, 1, promtestutil.ToFloat64(e.metrics.revocations.WithLabelValues("ALL")), 0)
	assert.InDelta(t, 1, promtestutil.ToFloat64(e.metrics.checks.WithLabelValues("ALL", "denied")), 0)
}
