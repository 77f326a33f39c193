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

package database

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/lineage/database/plugin"
	"github.com/blinklabs-io/lineage/database/plugin/blob"
	"github.com/blinklabs-io/lineage/database/plugin/metadata"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
)

// Config holds the storage configuration. An empty DataDir keeps both
// stores in memory
type Config struct {
	PromRegistry   prometheus.Registerer
	Logger         *slog.Logger
	DataDir        string
	BlobPlugin     string
	MetadataPlugin string
}

// Database couples the blob store holding registry state with the
// metadata store holding relational records. Writes are serialized
type Database struct {
	logger     *slog.Logger
	blob       blob.BlobStore
	metadata   metadata.MetadataStore
	config     Config
	writeMutex sync.Mutex
}

// Blob returns the underling blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.config.DataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// Transaction starts a new database transaction and returns a handle to it.
// Most callers want Update or View instead
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Update runs fn in a read-write transaction. Only one Update runs at a time.
// The transaction commits if fn returns nil and is rolled back otherwise.
// Update must not be called from within fn
func (d *Database) Update(fn func(*Txn) error) error {
	d.writeMutex.Lock()
	defer d.writeMutex.Unlock()
	return NewTxn(d, true).Do(fn)
}

// View runs fn in a read-only transaction
func (d *Database) View(fn func(*Txn) error) error {
	txn := NewTxn(d, false)
	defer txn.Release()
	return fn(txn)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		err = errors.Join(err, d.metadata.Close())
	}
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	return err
}

func (d *Database) init() error {
	// Check commit timestamp
	if err := d.checkCommitTimestamp(); err != nil {
		return err
	}
	return nil
}

// New creates a new database instance with optional persistence using the provided data directory
func New(config *Config) (*Database, error) {
	if config == nil {
		config = &Config{}
	}
	db := &Database{
		config: *config,
		logger: config.Logger,
	}
	if db.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if db.config.BlobPlugin == "" {
		db.config.BlobPlugin = DefaultBlobPlugin
	}
	if db.config.MetadataPlugin == "" {
		db.config.MetadataPlugin = DefaultMetadataPlugin
	}
	pctx := plugin.PluginContext{
		Logger:       db.logger,
		PromRegistry: config.PromRegistry,
	}
	blobDb, err := blob.New(db.config.BlobPlugin, db.config.DataDir, pctx)
	if err != nil {
		return nil, err
	}
	db.blob = blobDb
	metadataDb, err := metadata.New(db.config.MetadataPlugin, db.config.DataDir, pctx)
	if err != nil {
		_ = blobDb.Close()
		return nil, err
	}
	db.metadata = metadataDb
	if err := db.init(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	return db, nil
}
