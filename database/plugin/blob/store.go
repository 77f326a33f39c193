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

package blob

import (
	"fmt"

	"github.com/blinklabs-io/lineage/database/plugin"
	"github.com/blinklabs-io/lineage/database/types"

	// Register the built-in blob plugin
	_ "github.com/blinklabs-io/lineage/database/plugin/blob/badger"
)

type BlobStore interface {
	Close() error
	NewTransaction(readWrite bool) types.Txn
	Get(types.Txn, []byte) ([]byte, error)
	Set(types.Txn, []byte, []byte) error
	Delete(types.Txn, []byte) error
	NewIterator(types.Txn, types.BlobIteratorOptions) types.BlobIterator

	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(types.Txn, int64) error
}

// New returns the started blob plugin selected by name
func New(
	pluginName string,
	dataDir string,
	pctx plugin.PluginContext,
) (BlobStore, error) {
	if err := plugin.SetPluginOption(plugin.PluginTypeBlob, pluginName, "data-dir", dataDir); err != nil {
		return nil, err
	}
	p, err := plugin.StartPlugin(plugin.PluginTypeBlob, pluginName, pctx)
	if err != nil {
		return nil, err
	}
	blobStore, ok := p.(BlobStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement BlobStore interface",
			pluginName,
		)
	}
	return blobStore, nil
}
