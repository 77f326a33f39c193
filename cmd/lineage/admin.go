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

func adminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Owner-only administration",
	}
	cmd.AddCommand(
		adminStatusCommand(),
		adminPauseCommand("pause", "Pause all mutations", true),
		adminPauseCommand("unpause", "Resume mutations", false),
		adminTransferOwnershipCommand(),
		adminForceUsernameCommand(),
		adminForceTransferUsernameCommand(),
	)
	return cmd
}

func adminStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the owner and pause state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(s *session) error {
				owner, err := s.node.Admin().Owner()
				if err != nil {
					return err
				}
				paused, err := s.node.Admin().Paused()
				if err != nil {
					return err
				}
				counter, err := s.node.Registry().IDCounter()
				if err != nil {
					return err
				}
				claims, err := s.node.Provenance().ClaimCount()
				if err != nil {
					return err
				}
				return s.printJSON(map[string]any{
					"owner":    owner.Hex(),
					"paused":   paused,
					"accounts": counter,
					"claims":   claims,
				})
			})
		},
	}
}

func adminPauseCommand(use string, short string, pause bool) *cobra.Command {
	var keyName string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(s *session) error {
				key, err := s.key(keyName)
				if err != nil {
					return err
				}
				if pause {
					err = s.node.Admin().Pause(key.Address)
				} else {
					err = s.node.Admin().Unpause(key.Address)
				}
				if err != nil {
					return err
				}
				return s.printJSON(map[string]any{"paused": pause})
			})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "owner key")
	return cmd
}

func adminTransferOwnershipCommand() *cobra.Command {
	var keyName, newOwner string
	cmd := &cobra.Command{
		Use:   "transfer-ownership",
		Short: "Hand ownership to another address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := parseAddress(newOwner)
			if err != nil {
				return err
			}
			return runWithNode(cmd, func(s *session) error {
				key, err := s.key(keyName)
				if err != nil {
					return err
				}
				if err := s.node.Admin().TransferOwnership(key.Address, owner); err != nil {
					return err
				}
				return s.printJSON(map[string]any{"owner": owner.Hex()})
			})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "current owner key")
	cmd.Flags().StringVar(&newOwner, "new-owner", "", "new owner address")
	return cmd
}

func adminForceUsernameCommand() *cobra.Command {
	var keyName, account, username string
	cmd := &cobra.Command{
		Use:   "force-username",
		Short: "Set an account's username without its consent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(s *session) error {
				key, err := s.key(keyName)
				if err != nil {
					return err
				}
				id, err := s.resolveAccount(account)
				if err != nil {
					return err
				}
				if err := s.node.Registry().ForceChangeUsername(key.Address, id, username); err != nil {
					return err
				}
				return printAccount(s, id)
			})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "owner key")
	cmd.Flags().StringVar(&account, "account", "", "account to rename")
	cmd.Flags().StringVar(&username, "username", "", "new username, empty to clear")
	return cmd
}

func adminForceTransferUsernameCommand() *cobra.Command {
	var keyName, from, to, newFromUsername string
	cmd := &cobra.Command{
		Use:   "force-transfer-username",
		Short: "Move a username between accounts without signatures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(s *session) error {
				key, err := s.key(keyName)
				if err != nil {
					return err
				}
				fromID, err := s.resolveAccount(from)
				if err != nil {
					return err
				}
				toID, err := s.resolveAccount(to)
				if err != nil {
					return err
				}
				if err := s.node.Registry().ForceTransferUsername(
					key.Address,
					fromID,
					toID,
					newFromUsername,
				); err != nil {
					return err
				}
				return printAccount(s, toID)
			})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "owner key")
	cmd.Flags().StringVar(&from, "from", "", "account giving up its username")
	cmd.Flags().StringVar(&to, "to", "", "account receiving the username")
	cmd.Flags().StringVar(&newFromUsername, "new-from-username", "", "replacement username for the sender")
	return cmd
}
