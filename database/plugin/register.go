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

package plugin

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

type PluginType int

const (
	PluginTypeBlob PluginType = iota + 1
	PluginTypeMetadata
)

func PluginTypeName(pluginType PluginType) string {
	switch pluginType {
	case PluginTypeBlob:
		return "blob"
	case PluginTypeMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = iota + 1
	PluginOptionTypeBool
	PluginOptionTypeInt
	PluginOptionTypeUint
)

type PluginOption struct {
	DefaultValue any
	Dest         any
	Name         string
	Description  string
	Type         PluginOptionType
}

// PluginContext carries the runtime dependencies handed to a plugin when it is created
type PluginContext struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
}

type PluginEntry struct {
	NewFromOptionsFunc func(PluginContext) Plugin
	Name               string
	Description        string
	Options            []PluginOption
	Type               PluginType
}

var (
	pluginEntries      []PluginEntry
	pluginEntriesMutex sync.RWMutex
)

// Register adds a plugin entry to the registry. Plugins call this from init()
func Register(pluginEntry PluginEntry) {
	pluginEntriesMutex.Lock()
	defer pluginEntriesMutex.Unlock()
	pluginEntries = append(pluginEntries, pluginEntry)
}

// GetPlugins returns all registered plugin entries of the given type
func GetPlugins(pluginType PluginType) []PluginEntry {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	ret := []PluginEntry{}
	for _, entry := range pluginEntries {
		if entry.Type == pluginType {
			ret = append(ret, entry)
		}
	}
	return ret
}

// GetPlugin returns a new instance of the named plugin, or nil if it isn't registered
func GetPlugin(
	pluginType PluginType,
	pluginName string,
	pctx PluginContext,
) Plugin {
	pluginEntriesMutex.RLock()
	var newFunc func(PluginContext) Plugin
	for _, entry := range pluginEntries {
		if entry.Type == pluginType && entry.Name == pluginName {
			newFunc = entry.NewFromOptionsFunc
			break
		}
	}
	pluginEntriesMutex.RUnlock()
	if newFunc == nil {
		return nil
	}
	return newFunc(pctx)
}

// PopulateCmdlineOptions adds a flag for every plugin option, named
// <type>-<plugin>-<option>
func PopulateCmdlineOptions(fs *pflag.FlagSet) error {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	for _, entry := range pluginEntries {
		for _, opt := range entry.Options {
			flagName := strings.Join(
				[]string{
					PluginTypeName(entry.Type),
					entry.Name,
					opt.Name,
				},
				"-",
			)
			if err := opt.addFlag(fs, flagName); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o PluginOption) addFlag(fs *pflag.FlagSet, flagName string) error {
	switch o.Type {
	case PluginOptionTypeString:
		dest, ok := o.Dest.(*string)
		def, ok2 := o.DefaultValue.(string)
		if !ok || !ok2 {
			return fmt.Errorf("invalid string option definition: %s", flagName)
		}
		fs.StringVar(dest, flagName, def, o.Description)
	case PluginOptionTypeBool:
		dest, ok := o.Dest.(*bool)
		def, ok2 := o.DefaultValue.(bool)
		if !ok || !ok2 {
			return fmt.Errorf("invalid bool option definition: %s", flagName)
		}
		fs.BoolVar(dest, flagName, def, o.Description)
	case PluginOptionTypeInt:
		dest, ok := o.Dest.(*int)
		def, ok2 := o.DefaultValue.(int)
		if !ok || !ok2 {
			return fmt.Errorf("invalid int option definition: %s", flagName)
		}
		fs.IntVar(dest, flagName, def, o.Description)
	case PluginOptionTypeUint:
		dest, ok := o.Dest.(*uint64)
		def, ok2 := o.DefaultValue.(uint64)
		if !ok || !ok2 {
			return fmt.Errorf("invalid uint option definition: %s", flagName)
		}
		fs.Uint64Var(dest, flagName, def, o.Description)
	default:
		return fmt.Errorf("unknown plugin option type %d for %s", o.Type, flagName)
	}
	return nil
}
