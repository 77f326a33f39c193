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
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/lineage/admin"
	"github.com/blinklabs-io/lineage/authz"
	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/delegation"
	"github.com/blinklabs-io/lineage/event"
	"github.com/blinklabs-io/lineage/provenance"
	"github.com/blinklabs-io/lineage/registry"
)

var (
	ErrNotStarted     = errors.New("node not started")
	ErrAlreadyStarted = errors.New("node already started")
)

// Node wires the storage, event bus and protocol components together
type Node struct {
	db            *database.Database
	eventBus      *event.EventBus
	admin         *admin.Admin
	registry      *registry.Registry
	delegations   *delegation.Engine
	bridge        *authz.Bridge
	provenance    *provenance.Ledger
	shutdownFuncs []func(context.Context) error
	promRegistry  *nodeRegisterer
	config        Config
	mu            sync.Mutex
	started       bool
}

func New(cfg Config) (*Node, error) {
	n := &Node{
		config: cfg,
	}
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

// Start opens the database and builds every component. On failure the
// partially started node is shut down
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return ErrAlreadyStarted
	}
	if err := n.start(); err != nil {
		return errors.Join(err, n.shutdown())
	}
	n.started = true
	return nil
}

func (n *Node) start() error {
	logger := n.config.logger
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	// Metrics registered by this run are removed again on shutdown
	var promRegistry prometheus.Registerer
	if n.config.promRegistry != nil {
		n.promRegistry = newNodeRegisterer(n.config.promRegistry)
		promRegistry = n.promRegistry
	}
	n.eventBus = event.NewEventBus(promRegistry, logger)
	// Load database
	db, err := database.New(&database.Config{
		DataDir:        n.config.dataDir,
		BlobPlugin:     n.config.blobPlugin,
		MetadataPlugin: n.config.metadataPlugin,
		Logger:         logger,
		PromRegistry:   promRegistry,
	})
	if db != nil {
		n.db = db
	}
	if err != nil {
		var tsErr database.CommitTimestampError
		if errors.As(err, &tsErr) {
			logger.Error(
				"blob and metadata stores are out of sync",
				"component", "node",
				"metadata_timestamp", tsErr.MetadataTimestamp,
				"blob_timestamp", tsErr.BlobTimestamp,
			)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	// Admin
	n.admin = admin.New(n.db, n.eventBus, logger)
	if err := n.admin.Init(n.config.owner); err != nil {
		return fmt.Errorf("failed to initialize admin: %w", err)
	}
	// Registry
	n.registry, err = registry.New(registry.Config{
		DB:           n.db,
		Admin:        n.admin,
		EventBus:     n.eventBus,
		Logger:       logger,
		PromRegistry: promRegistry,
		ChainID:      n.config.chainID,
		Now:          n.config.now,
	})
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	// Delegation engine, with the registry as its bootstrap gateway
	n.delegations, err = delegation.New(delegation.Config{
		DB:           n.db,
		Admin:        n.admin,
		Accounts:     n.registry,
		EventBus:     n.eventBus,
		Logger:       logger,
		PromRegistry: promRegistry,
		ChainID:      n.config.chainID,
		Now:          n.config.now,
		Gateway:      n.registry.Address(),
	})
	if err != nil {
		return fmt.Errorf("failed to load delegation engine: %w", err)
	}
	n.registry.SetBootstrapper(n.delegations)
	// Authorization bridge
	n.bridge = authz.New(n.db, n.registry, n.delegations, logger)
	// Provenance
	n.provenance, err = provenance.New(provenance.Config{
		DB:               n.db,
		Admin:            n.admin,
		Accounts:         n.registry,
		Bridge:           n.bridge,
		EventBus:         n.eventBus,
		Logger:           logger,
		PromRegistry:     promRegistry,
		ChainID:          n.config.chainID,
		Now:              n.config.now,
		NFTOwnerResolver: n.config.nftOwnerResolver,
	})
	if err != nil {
		return fmt.Errorf("failed to load provenance ledger: %w", err)
	}
	logger.Info(
		"node started",
		"component", "node",
		"chain_id", n.config.chainID.String(),
		"data_dir", n.config.dataDir,
		"registry", n.registry.Address().Hex(),
		"delegation", n.delegations.Address().Hex(),
		"provenance", n.provenance.Address().Hex(),
	)
	return nil
}

// Stop shuts down a started node. A stopped node may be started again
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started {
		return nil
	}
	n.started = false
	return n.shutdown()
}

func (n *Node) shutdown() error {
	ctx, cancel := context.WithTimeout(
		context.Background(),
		n.config.shutdownTimeout,
	)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown", "component", "node")

	// Stop event delivery before the stores go away
	if n.eventBus != nil {
		n.eventBus.Stop()
		n.eventBus = nil
	}

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
		n.db = nil
	}

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	if n.promRegistry != nil {
		n.promRegistry.unregisterAll()
		n.promRegistry = nil
	}

	n.admin = nil
	n.registry = nil
	n.delegations = nil
	n.bridge = nil
	n.provenance = nil

	n.config.logger.Debug("graceful shutdown complete", "component", "node")
	return err
}

func (n *Node) DB() *database.Database {
	return n.db
}

func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

func (n *Node) Admin() *admin.Admin {
	return n.admin
}

func (n *Node) Registry() *registry.Registry {
	return n.registry
}

func (n *Node) Delegations() *delegation.Engine {
	return n.delegations
}

func (n *Node) Bridge() *authz.Bridge {
	return n.bridge
}

func (n *Node) Provenance() *provenance.Ledger {
	return n.provenance
}

// CanAct reports whether actor may act for account id within scope
func (n *Node) CanAct(
	id uint64,
	actor common.Address,
	scope common.Address,
	rights string,
) (bool, error) {
	if n.bridge == nil {
		return false, ErrNotStarted
	}
	return n.bridge.CanAct(id, actor, scope, authz.RightsTag(rights)), nil
}
