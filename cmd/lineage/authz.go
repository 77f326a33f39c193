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
	"github.com/spf13/cobra"
)

func authzCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authz",
		Short: "Authorization queries",
	}
	cmd.AddCommand(canActCommand())
	return cmd
}

func canActCommand() *cobra.Command {
	var account, actor, scope, rights string
	cmd := &cobra.Command{
		Use:   "can-act",
		Short: "Check whether an address may act for an account within a contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actorAddr, err := parseAddress(actor)
			if err != nil {
				return err
			}
			scopeAddr, err := parseAddress(scope)
			if err != nil {
				return err
			}
			return runWithNode(cmd, func(s *session) error {
				id, err := s.resolveAccount(account)
				if err != nil {
					return err
				}
				if scope == "" {
					scopeAddr = s.node.Provenance().Address()
				}
				ok, err := s.node.CanAct(id, actorAddr, scopeAddr, rights)
				if err != nil {
					return err
				}
				return s.printJSON(map[string]any{
					"account": id,
					"actor":   actorAddr.Hex(),
					"scope":   scopeAddr.Hex(),
					"rights":  rights,
					"allowed": ok,
				})
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "account acted for")
	cmd.Flags().StringVar(&actor, "actor", "", "acting address")
	cmd.Flags().StringVar(&scope, "scope", "", "contract scope, defaults to the provenance registry")
	cmd.Flags().StringVar(&rights, "rights", "", "rights name")
	return cmd
}
