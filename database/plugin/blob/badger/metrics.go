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

package badger

import (
	"github.com/prometheus/client_golang/prometheus"
)

type blobMetrics struct {
	reads  prometheus.Counter
	writes prometheus.Counter
	lsm    prometheus.GaugeFunc
	vlog   prometheus.GaugeFunc
}

func (d *BlobStoreBadger) registerBlobMetrics() {
	m := &blobMetrics{
		reads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lineage_blob_reads_total",
			Help: "total number of key reads from the blob store",
		}),
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lineage_blob_writes_total",
			Help: "total number of key writes to the blob store",
		}),
		lsm: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "lineage_blob_lsm_size_bytes",
				Help: "size of the badger LSM tree",
			},
			func() float64 {
				lsm, _ := d.db.Size()
				return float64(lsm)
			},
		),
		vlog: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "lineage_blob_vlog_size_bytes",
				Help: "size of the badger value log",
			},
			func() float64 {
				_, vlog := d.db.Size()
				return float64(vlog)
			},
		),
	}
	for _, c := range []prometheus.Collector{m.reads, m.writes, m.lsm, m.vlog} {
		if err := d.promRegistry.Register(c); err != nil {
			d.logger.Warn(
				"failed to register blob metric",
				"component", "database",
				"error", err,
			)
		}
	}
	d.metrics = m
}

func (d *BlobStoreBadger) unregisterBlobMetrics() {
	for _, c := range []prometheus.Collector{d.metrics.reads, d.metrics.writes, d.metrics.lsm, d.metrics.vlog} {
		d.promRegistry.Unregister(c)
	}
}
