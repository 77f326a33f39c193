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
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/blinklabs-io/lineage/registry"
)

type accountOutput struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Custody  string `json:"custody"`
	Operator string `json:"operator,omitempty"`
	Recovery string `json:"recovery,omitempty"`
}

func newAccountOutput(acct registry.Account) accountOutput {
	ret := accountOutput{
		ID:       acct.ID,
		Username: acct.Username,
		Custody:  acct.Custody.Hex(),
	}
	if acct.Operator != (common.Address{}) {
		ret.Operator = acct.Operator.Hex()
	}
	if acct.Recovery != (common.Address{}) {
		ret.Recovery = acct.Recovery.Hex()
	}
	return ret
}

func printAccount(s *session, id uint64) error {
	acct, err := s.node.Registry().Account(id)
	if err != nil {
		return err
	}
	return s.printJSON(newAccountOutput(acct))
}

func accountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Register and manage accounts",
	}
	cmd.AddCommand(
		accountRegisterCommand(),
		accountShowCommand(),
		accountTransferCommand(),
		accountRecoverCommand(),
		accountSetOperatorCommand(),
		accountSetRecoveryCommand(),
		accountSetUsernameCommand(),
		accountTransferUsernameCommand(),
		accountNonceCommand(),
	)
	return cmd
}

func accountRegisterCommand() *cobra.Command {
	var keyName, username, operator, recovery, delegateTo string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account with the signer key as custody",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(s *session) error {
				key, err := s.key(keyName)
				if err != nil {
					return err
				}
				params := registry.RegisterParams{Username: username}
				if params.Operator, err = parseAddress(operator); err != nil {
					return err
				}
				if params.Recovery, err = parseAddress(recovery); err != nil {
					return err
				}
				reg := s.node.Registry()
				var id uint64
				if delegateTo != "" {
					toID, err := s.resolveAccount(delegateTo)
					if err != nil {
						return err
					}
					id, err = reg.RegisterAndDelegate(key.Address, params, toID)
					if err != nil {
						return err
					}
				} else {
					id, err = reg.Register(key.Address, params)
					if err != nil {
						return err
					}
				}
				acct, err := reg.Account(id)
				if err != nil {
					return err
				}
				return s.printJSON(newAccountOutput(acct))
			})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "custody signer key")
	cmd.Flags().StringVar(&username, "username", "", "username to claim")
	cmd.Flags().StringVar(&operator, "operator", "", "operator address")
	cmd.Flags().StringVar(&recovery, "recovery", "", "recovery address")
	cmd.Flags().StringVar(&delegateTo, "delegate-to", "", "account granted ALL rights on registration")
	return cmd
}

func accountShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|address|username|@username>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(s *session) error {
				id, err := s.resolveAccount(args[0])
				if err != nil {
					return err
				}
				return printAccount(s, id)
			})
		},
	}
}

func accountTransferCommand() *cobra.Command {
	var keyName, toKeyName string
	var clearRecovery bool
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move the signer's account to the address of another key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(s *session) error {
				key, err := s.key(keyName)
				if err != nil {
					return err
				}
				toKey, err := s.key(toKeyName)
				if err != nil {
					return err
				}
				reg := s.node.Registry()
				id, err := reg.IDOf(key.Address)
				if err != nil {
					return err
				}
				schema := registry.TransferSchema
				if clearRecovery {
					schema = registry.TransferAndClearRecoverySchema
				}
				toAuth, err := s.sign(
					reg.Verifier(),
					toKey,
					schema,
					registry.TransferMessage(id, toKey.Address),
				)
				if err != nil {
					return err
				}
				if clearRecovery {
					err = reg.TransferAndClearRecovery(key.Address, toKey.Address, toAuth)
				} else {
					err = reg.Transfer(key.Address, toKey.Address, toAuth)
				}
				if err != nil {
					return err
				}
				acct, err := reg.Account(id)
				if err != nil {
					return err
				}
				return s.printJSON(newAccountOutput(acct))
			})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "current custody signer key")
	cmd.Flags().StringVar(&toKeyName, "to-key", "", "signer key of the new custody")
	cmd.Flags().BoolVar(&clearRecovery, "clear-recovery", false, "also clear the recovery address")
	return cmd
}

func accountRecoverCommand() *cobra.Command {
	var keyName, toKeyName, account string
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Recover an account to a new custody key as its recovery address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(s *session) error {
				key, err := s.key(keyName)
				if err != nil {
					return err
				}
				toKey, err := s.key(toKeyName)
				if err != nil {
					return err
				}
				id, err := s.resolveAccount(account)
				if err != nil {
					return err
				}
				reg := s.node.Registry()
				toAuth, err := s.sign(
					reg.Verifier(),
					toKey,
					registry.RecoverSchema,
					registry.RecoverMessage(id, toKey.Address),
				)
				if err != nil {
					return err
				}
				if err := reg.Recover(key.Address, id, toKey.Address, toAuth); err != nil {
					return err
				}
				acct, err := reg.Account(id)
				if err != nil {
					return err
				}
				return s.printJSON(newAccountOutput(acct))
			})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "recovery signer key")
	cmd.Flags().StringVar(&toKeyName, "to-key", "", "signer key of the new custody")
	cmd.Flags().StringVar(&account, "account", "", "account to recover")
	return cmd
}

// accountSettingCommand builds a command that changes one field of the
// signer's own account
func accountSettingCommand(
	use string,
	short string,
	flagName string,
	apply func(reg *registry.Registry, caller common.Address, value string) error,
) *cobra.Command {
	var keyName, value string
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
				reg := s.node.Registry()
				if err := apply(reg, key.Address, value); err != nil {
					return err
				}
				id, err := reg.IDOf(key.Address)
				if err != nil {
					return err
				}
				acct, err := reg.Account(id)
				if err != nil {
					return err
				}
				return s.printJSON(newAccountOutput(acct))
			})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "custody signer key")
	cmd.Flags().StringVar(&value, flagName, "", flagName+" value")
	return cmd
}

func accountSetOperatorCommand() *cobra.Command {
	return accountSettingCommand(
		"set-operator",
		"Change the operator address",
		"operator",
		func(reg *registry.Registry, caller common.Address, value string) error {
			addr, err := parseAddress(value)
			if err != nil {
				return err
			}
			return reg.ChangeOperator(caller, addr)
		},
	)
}

func accountSetRecoveryCommand() *cobra.Command {
	return accountSettingCommand(
		"set-recovery",
		"Change the recovery address",
		"recovery",
		func(reg *registry.Registry, caller common.Address, value string) error {
			addr, err := parseAddress(value)
			if err != nil {
				return err
			}
			return reg.ChangeRecovery(caller, addr)
		},
	)
}

func accountSetUsernameCommand() *cobra.Command {
	return accountSettingCommand(
		"set-username",
		"Change the username",
		"username",
		func(reg *registry.Registry, caller common.Address, value string) error {
			return reg.ChangeUsername(caller, value)
		},
	)
}

func accountTransferUsernameCommand() *cobra.Command {
	var keyName, toKeyName, newUsername string
	cmd := &cobra.Command{
		Use:   "transfer-username",
		Short: "Give the signer's username to another account and take a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(s *session) error {
				key, err := s.key(keyName)
				if err != nil {
					return err
				}
				toKey, err := s.key(toKeyName)
				if err != nil {
					return err
				}
				reg := s.node.Registry()
				fromID, err := reg.IDOf(key.Address)
				if err != nil {
					return err
				}
				toID, err := reg.IDOf(toKey.Address)
				if err != nil {
					return err
				}
				fromAcct, err := reg.Account(fromID)
				if err != nil {
					return err
				}
				toAuth, err := s.sign(
					reg.Verifier(),
					toKey,
					registry.TransferUsernameSchema,
					registry.TransferUsernameMessage(fromID, toID, fromAcct.Username),
				)
				if err != nil {
					return err
				}
				if err := reg.TransferUsername(key.Address, toID, newUsername, toAuth); err != nil {
					return err
				}
				var ret []accountOutput
				for _, id := range []uint64{fromID, toID} {
					acct, err := reg.Account(id)
					if err != nil {
						return err
					}
					ret = append(ret, newAccountOutput(acct))
				}
				return s.printJSON(ret)
			})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "custody signer key of the giving account")
	cmd.Flags().StringVar(&toKeyName, "to-key", "", "custody signer key of the receiving account")
	cmd.Flags().StringVar(&newUsername, "new-username", "", "username the giving account takes")
	return cmd
}

func accountNonceCommand() *cobra.Command {
	var keyName string
	var increment bool
	cmd := &cobra.Command{
		Use:   "nonce",
		Short: "Show or increment the registry nonce of a signer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(s *session) error {
				key, err := s.key(keyName)
				if err != nil {
					return err
				}
				reg := s.node.Registry()
				var nonce uint64
				if increment {
					nonce, err = reg.IncrementNonce(key.Address)
				} else {
					nonce, err = reg.Nonce(key.Address)
				}
				if err != nil {
					return err
				}
				return s.printJSON(map[string]any{
					"address": key.Address.Hex(),
					"nonce":   nonce,
				})
			})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "signer key")
	cmd.Flags().BoolVar(&increment, "increment", false, "invalidate outstanding signatures")
	return cmd
}
