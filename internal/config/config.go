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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/lineage/database/plugin"
	// Register the storage plugins
	_ "github.com/blinklabs-io/lineage/database/plugin/blob"
	_ "github.com/blinklabs-io/lineage/database/plugin/metadata"
)

type ctxKey string

const configContextKey ctxKey = "lineage.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultSignatureTTL    = "1h"
	DefaultChainID         = 1
	DefaultBlobPlugin      = "badger"
	DefaultMetadataPlugin  = "sqlite"

	envPrefix = "lineage"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// ErrPluginListRequested is returned when the user requests to list available plugins
// This is not an error condition but a successful operation that displays plugin information
var ErrPluginListRequested = errors.New("plugin list requested")

type tempConfig struct {
	Config   *Config         `yaml:"config,omitempty"`
	Database *databaseConfig `yaml:"database,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	DataDir         string `yaml:"dataDir"         split_words:"true"`
	KeyDir          string `yaml:"keyDir"          split_words:"true"`
	Owner           string `yaml:"owner"`
	BlobPlugin      string `yaml:"blobPlugin"      envconfig:"DATABASE_BLOB_PLUGIN"`
	MetadataPlugin  string `yaml:"metadataPlugin"  envconfig:"DATABASE_METADATA_PLUGIN"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`
	// SignatureTTL is how long signatures produced by the CLI stay valid
	SignatureTTL  string `yaml:"signatureTtl"  envconfig:"SIGNATURE_TTL"`
	ChainID       uint64 `yaml:"chainId"       envconfig:"CHAIN_ID"`
	EncryptKeys   bool   `yaml:"encryptKeys"   split_words:"true"`
	Tracing       bool   `yaml:"tracing"`
	TracingStdout bool   `yaml:"tracingStdout" split_words:"true"`
}

func defaultConfig() *Config {
	return &Config{
		DataDir:         ".lineage",
		KeyDir:          defaultKeyDir(),
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		ShutdownTimeout: DefaultShutdownTimeout,
		SignatureTTL:    DefaultSignatureTTL,
		ChainID:         DefaultChainID,
	}
}

func defaultKeyDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".lineage", "keys")
	}
	return filepath.Join(".lineage", "keys")
}

// findConfigFile returns the first of ~/.lineage/lineage.yaml and
// /etc/lineage/lineage.yaml that exists
func findConfigFile() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".lineage", "lineage.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := "/etc/lineage/lineage.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

// LoadConfig builds the config from defaults, the YAML file and LINEAGE_*
// environment variables, in that order
func LoadConfig(configFile string) (*Config, error) {
	cfg := defaultConfig()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := cfg.loadYAML(buf); err != nil {
			return nil, err
		}
	}
	// Process environment variables
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(buf []byte) error {
	// First unmarshal into temp config to handle plugin sections
	var tempCfg tempConfig
	if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if tempCfg.Config != nil {
		// Overlay config values onto existing defaults
		configBytes, err := yaml.Marshal(tempCfg.Config)
		if err != nil {
			return fmt.Errorf("error re-marshalling config: %w", err)
		}
		if err := yaml.Unmarshal(configBytes, c); err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else if err := yaml.Unmarshal(buf, c); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if tempCfg.Database == nil {
		return nil
	}
	if name, err := applyPluginSection(
		plugin.PluginTypeBlob,
		tempCfg.Database.Blob,
	); err != nil {
		return err
	} else if name != "" {
		c.BlobPlugin = name
	}
	if name, err := applyPluginSection(
		plugin.PluginTypeMetadata,
		tempCfg.Database.Metadata,
	); err != nil {
		return err
	} else if name != "" {
		c.MetadataPlugin = name
	}
	return nil
}

// applyPluginSection handles a database section of the form
//
//	blob:
//	  plugin: badger
//	  badger:
//	    block-cache-size: 1024
//
// and returns the selected plugin name, if any
func applyPluginSection(
	pluginType plugin.PluginType,
	section map[string]any,
) (string, error) {
	var pluginName string
	if pluginVal, ok := section["plugin"]; ok {
		name, ok := pluginVal.(string)
		if !ok {
			return "", fmt.Errorf(
				"%s plugin name must be a string",
				plugin.PluginTypeName(pluginType),
			)
		}
		pluginName = name
	}
	for key, val := range section {
		if key == "plugin" {
			continue
		}
		opts, ok := val.(map[string]any)
		if !ok {
			fmt.Fprintf(
				os.Stderr,
				"warning: skipping %s config entry %q: expected map, got %T\n",
				plugin.PluginTypeName(pluginType),
				key,
				val,
			)
			continue
		}
		for optName, optVal := range opts {
			if err := plugin.SetPluginOption(pluginType, key, optName, optVal); err != nil {
				return "", fmt.Errorf("error processing plugin config: %w", err)
			}
		}
	}
	return pluginName, nil
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	if c.ChainID == 0 {
		return errors.New("invalid chainId: must be positive")
	}
	if c.Owner != "" && !common.IsHexAddress(c.Owner) {
		return fmt.Errorf("invalid owner address: %q", c.Owner)
	}
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.SignatureTTLDuration(); err != nil {
		return err
	}
	// "list" is handled by ListPlugins
	if c.BlobPlugin != "list" && !pluginExists(plugin.PluginTypeBlob, c.BlobPlugin) {
		return fmt.Errorf("unknown blob plugin: %q", c.BlobPlugin)
	}
	if c.MetadataPlugin != "list" && !pluginExists(plugin.PluginTypeMetadata, c.MetadataPlugin) {
		return fmt.Errorf("unknown metadata plugin: %q", c.MetadataPlugin)
	}
	return nil
}

func pluginExists(pluginType plugin.PluginType, name string) bool {
	for _, entry := range plugin.GetPlugins(pluginType) {
		if entry.Name == name {
			return true
		}
	}
	return false
}

func (c *Config) OwnerAddress() common.Address {
	if c.Owner == "" {
		return common.Address{}
	}
	return common.HexToAddress(c.Owner)
}

func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid shutdownTimeout: %q", c.ShutdownTimeout)
	}
	return d, nil
}

func (c *Config) SignatureTTLDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.SignatureTTL)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid signatureTtl: %q", c.SignatureTTL)
	}
	return d, nil
}

// ListPlugins prints the available plugins when a plugin name of "list" was
// given and returns ErrPluginListRequested
func (c *Config) ListPlugins(w io.Writer) error {
	var pluginType plugin.PluginType
	switch {
	case c.BlobPlugin == "list":
		pluginType = plugin.PluginTypeBlob
	case c.MetadataPlugin == "list":
		pluginType = plugin.PluginTypeMetadata
	default:
		return nil
	}
	fmt.Fprintf(w, "Available %s plugins:\n", plugin.PluginTypeName(pluginType))
	for _, p := range plugin.GetPlugins(pluginType) {
		fmt.Fprintf(w, "  %s: %s\n", p.Name, p.Description)
	}
	return ErrPluginListRequested
}
