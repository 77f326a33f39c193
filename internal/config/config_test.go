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

package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lineage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// isolateEnv points HOME at an empty directory so no user config is found
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{
		"LINEAGE_DATA_DIR",
		"LINEAGE_KEY_DIR",
		"LINEAGE_OWNER",
		"LINEAGE_CHAIN_ID",
		"LINEAGE_SIGNATURE_TTL",
		"LINEAGE_DATABASE_BLOB_PLUGIN",
		"LINEAGE_DATABASE_METADATA_PLUGIN",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	isolateEnv(t)
	if _, err := os.Stat("/etc/lineage/lineage.yaml"); err == nil {
		t.Skip("system config file present")
	}

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	expected := defaultConfig()
	assert.Equal(t, expected, cfg)
	assert.Equal(t, uint64(DefaultChainID), cfg.ChainID)
	assert.Equal(t, ".lineage", cfg.DataDir)
}

func TestLoadConfigFile(t *testing.T) {
	isolateEnv(t)
	path := writeConfigFile(t, `
dataDir: /var/lib/lineage
owner: "0x00000000000000000000000000000000000000f1"
chainId: 31337
signatureTtl: 10m
tracing: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/lineage", cfg.DataDir)
	assert.Equal(t, uint64(31337), cfg.ChainID)
	assert.True(t, cfg.Tracing)
	assert.Equal(
		t,
		common.HexToAddress("0x00000000000000000000000000000000000000f1"),
		cfg.OwnerAddress(),
	)
	ttl, err := cfg.SignatureTTLDuration()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, ttl)
	// Unset values keep their defaults
	assert.Equal(t, DefaultBlobPlugin, cfg.BlobPlugin)
}

func TestLoadConfigSection(t *testing.T) {
	isolateEnv(t)
	path := writeConfigFile(t, `
config:
  chainId: 5
database:
  blob:
    plugin: badger
  metadata:
    plugin: sqlite
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), cfg.ChainID)
	assert.Equal(t, "badger", cfg.BlobPlugin)
	assert.Equal(t, "sqlite", cfg.MetadataPlugin)
}

func TestLoadConfigPluginOptionType(t *testing.T) {
	isolateEnv(t)
	path := writeConfigFile(t, `
database:
  blob:
    badger:
      block-cache-size: "large"
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block-cache-size")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	isolateEnv(t)
	path := writeConfigFile(t, "chainId: 5\n")
	t.Setenv("LINEAGE_CHAIN_ID", "10")
	t.Setenv("LINEAGE_DATA_DIR", "/tmp/lineage-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), cfg.ChainID)
	assert.Equal(t, "/tmp/lineage-env", cfg.DataDir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "zero chain", modify: func(c *Config) { c.ChainID = 0 }},
		{name: "bad owner", modify: func(c *Config) { c.Owner = "alice" }},
		{name: "bad timeout", modify: func(c *Config) { c.ShutdownTimeout = "soon" }},
		{name: "zero ttl", modify: func(c *Config) { c.SignatureTTL = "0s" }},
		{name: "unknown blob plugin", modify: func(c *Config) { c.BlobPlugin = "s3" }},
		{name: "unknown metadata plugin", modify: func(c *Config) { c.MetadataPlugin = "mysql" }},
	}
	require.NoError(t, defaultConfig().Validate())
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := defaultConfig()
			test.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestListPlugins(t *testing.T) {
	cfg := defaultConfig()
	var buf bytes.Buffer
	require.NoError(t, cfg.ListPlugins(&buf))
	assert.Empty(t, buf.String())

	cfg.BlobPlugin = "list"
	require.NoError(t, cfg.Validate())
	require.ErrorIs(t, cfg.ListPlugins(&buf), ErrPluginListRequested)
	assert.Contains(t, buf.String(), "badger")
}

func TestContext(t *testing.T) {
	cfg := defaultConfig()
	ctx := WithContext(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
