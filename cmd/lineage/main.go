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

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/blinklabs-io/lineage/database/plugin"
	"github.com/blinklabs-io/lineage/internal/config"
	"github.com/blinklabs-io/lineage/internal/version"
)

const (
	programName = "lineage"
)

type globalFlags struct {
	configFile     string
	dataDir        string
	keyDir         string
	blobPlugin     string
	metadataPlugin string
	chainID        uint64
	debug          bool
}

func slogPrintf(format string, v ...any) {
	slog.Debug(fmt.Sprintf(format, v...),
		"component", programName,
	)
}

// commonRun configures logging on stderr, leaving stdout for command output
func commonRun(debug bool, w io.Writer) *slog.Logger {
	// Configure logger
	logLevel := slog.LevelInfo
	addSource := false
	if debug {
		logLevel = slog.LevelDebug
		addSource = true
	}
	logger := slog.New(
		slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: addSource,
			Level:     logLevel,
		}),
	)
	slog.SetDefault(logger)
	// Configure max processes with our logger wrapper, toss undo func
	if _, err := maxprocs.Set(maxprocs.Logger(slogPrintf)); err != nil {
		logger.Warn("failed to set GOMAXPROCS", "error", err)
	}
	logger.Debug(
		"version: "+version.GetVersionString(),
		"component", programName,
	)
	return logger
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Identity, delegation and provenance registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	pflags := rootCmd.PersistentFlags()
	pflags.BoolVarP(&flags.debug, "debug", "D", false, "enable debug logging")
	pflags.StringVar(&flags.configFile, "config", "", "path to config file")
	pflags.StringVar(&flags.dataDir, "data-dir", "", "data directory (overrides config)")
	pflags.StringVar(&flags.keyDir, "key-dir", "", "signer key directory (overrides config)")
	pflags.Uint64Var(&flags.chainID, "chain-id", 0, "chain ID for signatures (overrides config)")
	pflags.StringVarP(&flags.blobPlugin, "blob", "b", "", "blob store plugin to use, 'list' to show available")
	pflags.StringVarP(&flags.metadataPlugin, "metadata", "m", "", "metadata store plugin to use, 'list' to show available")

	// Add plugin-specific flags
	if err := plugin.PopulateCmdlineOptions(pflags); err != nil {
		fmt.Fprintf(os.Stderr, "Error adding plugin flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(flags.configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		// Override config with command line flags
		if flags.dataDir != "" {
			cfg.DataDir = flags.dataDir
		}
		if flags.keyDir != "" {
			cfg.KeyDir = flags.keyDir
		}
		if flags.chainID != 0 {
			cfg.ChainID = flags.chainID
		}
		if flags.blobPlugin != "" {
			cfg.BlobPlugin = flags.blobPlugin
		}
		if flags.metadataPlugin != "" {
			cfg.MetadataPlugin = flags.metadataPlugin
		}
		if err := cfg.ListPlugins(cmd.OutOrStdout()); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger := commonRun(flags.debug, cmd.ErrOrStderr())
		ctx := config.WithContext(cmd.Context(), cfg)
		ctx = withLogger(ctx, logger)
		cmd.SetContext(ctx)
		return nil
	}

	// Subcommands
	rootCmd.AddCommand(
		keysCommand(),
		accountCommand(),
		delegateCommand(),
		provenanceCommand(),
		authzCommand(),
		adminCommand(),
		listCommand(),
		versionCommand(),
	)
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if errors.Is(err, config.ErrPluginListRequested) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
