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

package node

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/lineage"
	"github.com/blinklabs-io/lineage/internal/config"
)

// Open builds and starts a node from the loaded config. The caller stops it
func Open(
	cfg *config.Config,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*lineage.Node, error) {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return nil, err
	}
	n, err := lineage.New(
		lineage.NewConfig(
			lineage.WithLogger(logger),
			lineage.WithDataDir(cfg.DataDir),
			lineage.WithBlobPlugin(cfg.BlobPlugin),
			lineage.WithMetadataPlugin(cfg.MetadataPlugin),
			lineage.WithChainID(new(big.Int).SetUint64(cfg.ChainID)),
			lineage.WithOwner(cfg.OwnerAddress()),
			lineage.WithPrometheusRegistry(promRegistry),
			lineage.WithTracing(cfg.Tracing),
			lineage.WithTracingStdout(cfg.TracingStdout),
			lineage.WithShutdownTimeout(shutdownTimeout),
		),
	)
	if err != nil {
		return nil, err
	}
	if err := n.Start(); err != nil {
		return nil, err
	}
	return n, nil
}
