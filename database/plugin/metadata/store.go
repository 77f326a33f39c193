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

package metadata

import (
	"fmt"

	"github.com/blinklabs-io/lineage/database/models"
	"github.com/blinklabs-io/lineage/database/plugin"
	"github.com/blinklabs-io/lineage/database/types"
	"gorm.io/gorm"

	// Register the built-in metadata plugin
	_ "github.com/blinklabs-io/lineage/database/plugin/metadata/sqlite"
)

type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(types.Txn, int64) error
	Transaction() types.Txn

	// Provenance
	AddProvenanceClaim(
		types.Txn,
		*models.ProvenanceClaim,
	) error
	GetProvenanceClaim(
		types.Txn,
		[]byte, // contentHash
	) (*models.ProvenanceClaim, error)
	GetProvenanceClaimsByOriginator(
		types.Txn,
		uint64, // originatorId
	) ([]models.ProvenanceClaim, error)
	CountProvenanceClaims(types.Txn) (uint64, error)
}

// New returns the started metadata plugin selected by name
func New(
	pluginName string,
	dataDir string,
	pctx plugin.PluginContext,
) (MetadataStore, error) {
	if err := plugin.SetPluginOption(plugin.PluginTypeMetadata, pluginName, "data-dir", dataDir); err != nil {
		return nil, err
	}
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName, pctx)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
