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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blinklabs-io/lineage/database"
)

type registryMetrics struct {
	registered prometheus.Counter
	mutations  *prometheus.CounterVec
}

func (r *Registry) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	r.metrics = &registryMetrics{
		registered: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "lineage_registry_accounts_registered_total",
				Help: "total number of account ids issued",
			},
		),
		mutations: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_registry_mutations_total",
				Help: "account mutations, by operation",
			},
			[]string{"op"},
		),
	}
}

// mutation counts op once txn commits
func (m *registryMetrics) mutation(txn *database.Txn, op string) {
	txn.OnCommit(m.mutations.WithLabelValues(op).Inc)
}
