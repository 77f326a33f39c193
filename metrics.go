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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// nodeRegisterer records the collectors registered during one run of the
// node so shutdown can remove them and a later Start can register again
type nodeRegisterer struct {
	prometheus.Registerer
	collectors []prometheus.Collector
	mu         sync.Mutex
}

func newNodeRegisterer(reg prometheus.Registerer) *nodeRegisterer {
	return &nodeRegisterer{Registerer: reg}
}

func (r *nodeRegisterer) Register(c prometheus.Collector) error {
	if err := r.Registerer.Register(c); err != nil {
		return err
	}
	r.mu.Lock()
	r.collectors = append(r.collectors, c)
	r.mu.Unlock()
	return nil
}

func (r *nodeRegisterer) MustRegister(cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

func (r *nodeRegisterer) Unregister(c prometheus.Collector) bool {
	r.mu.Lock()
	for i, tmp := range r.collectors {
		if tmp == c {
			r.collectors = append(r.collectors[:i], r.collectors[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	return r.Registerer.Unregister(c)
}

func (r *nodeRegisterer) unregisterAll() {
	r.mu.Lock()
	collectors := r.collectors
	r.collectors = nil
	r.mu.Unlock()
	for _, c := range collectors {
		r.Registerer.Unregister(c)
	}
}
