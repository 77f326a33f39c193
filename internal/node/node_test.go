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
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/lineage/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		BlobPlugin:      config.DefaultBlobPlugin,
		MetadataPlugin:  config.DefaultMetadataPlugin,
		ShutdownTimeout: config.DefaultShutdownTimeout,
		SignatureTTL:    config.DefaultSignatureTTL,
		ChainID:         31337,
		Owner:           "0x00000000000000000000000000000000000000f1",
	}
}

func TestOpen(t *testing.T) {
	n, err := Open(testConfig(), slog.New(slog.DiscardHandler), prometheus.NewRegistry())
	require.NoError(t, err)
	defer n.Stop()

	owner, err := n.Admin().Owner()
	require.NoError(t, err)
	assert.Equal(t, testConfig().OwnerAddress(), owner)
	assert.Equal(t, uint64(31337), n.Registry().Verifier().Domain().ChainID.Uint64())
}

func TestOpenBadTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ShutdownTimeout = "later"
	_, err := Open(cfg, slog.New(slog.DiscardHandler), nil)
	require.Error(t, err)
}
