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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type delegationMetrics struct {
	grants      *prometheus.CounterVec
	revocations *prometheus.CounterVec
	checks      *prometheus.CounterVec
}

func (e *Engine) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	e.metrics = &delegationMetrics{
		grants: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_delegation_grants_total",
				Help: "delegations moved to the active state, by kind",
			},
			[]string{"kind"},
		),
		revocations: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_delegation_revocations_total",
				Help: "delegations moved to the revoked state, by kind",
			},
			[]string{"kind"},
		),
		checks: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_delegation_checks_total",
				Help: "delegation checks, by kind and result",
			},
			[]string{"kind", "result"},
		),
	}
}

func (m *delegationMetrics) check(kind Kind, granted bool) {
	result := "denied"
	if granted {
		result = "granted"
	}
	m.checks.WithLabelValues(kind.String(), result).Inc()
}
