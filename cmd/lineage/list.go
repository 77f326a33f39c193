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
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/lineage/database/plugin"
)

func listAllPlugins(w io.Writer) {
	var buf strings.Builder
	buf.WriteString("Available plugins:\n")
	for _, pluginType := range []plugin.PluginType{
		plugin.PluginTypeBlob,
		plugin.PluginTypeMetadata,
	} {
		fmt.Fprintf(&buf, "\n%s storage plugins:\n", plugin.PluginTypeName(pluginType))
		for _, p := range plugin.GetPlugins(pluginType) {
			fmt.Fprintf(&buf, "  %s: %s\n", p.Name, p.Description)
			for _, opt := range p.Options {
				fmt.Fprintf(
					&buf,
					"    --%s-%s-%s: %s (default %v)\n",
					plugin.PluginTypeName(pluginType),
					p.Name,
					opt.Name,
					opt.Description,
					opt.DefaultValue,
				)
			}
		}
	}
	_, _ = io.WriteString(w, buf.String())
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all available storage plugins",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			listAllPlugins(cmd.OutOrStdout())
		},
	}
}
