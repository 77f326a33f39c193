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

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/blinklabs-io/lineage/authz"
	"github.com/blinklabs-io/lineage/delegation"
)

type delegationOutput struct {
	Hash     string `json:"hash"`
	Kind     string `json:"kind"`
	From     uint64 `json:"from"`
	To       uint64 `json:"to"`
	Contract string `json:"contract,omitempty"`
	TokenID  string `json:"tokenId,omitempty"`
	Rights   string `json:"rights,omitempty"`
	Amount   string `json:"amount,omitempty"`
}

func newDelegationOutput(d delegation.Delegation) delegationOutput {
	ret := delegationOutput{
		Hash: d.Hash().Hex(),
		Kind: d.Kind.String(),
		From: d.From,
		To:   d.To,
	}
	if d.Kind != delegation.KindAll {
		ret.Contract = d.Contract.Hex()
	}
	if d.TokenID != nil && (d.Kind == delegation.KindERC721 || d.Kind == delegation.KindERC1155) {
		ret.TokenID = d.TokenID.String()
	}
	if d.Rights != (common.Hash{}) {
		ret.Rights = d.Rights.Hex()
	}
	if d.Amount != nil && d.Kind.HasAmount() {
		ret.Amount = d.Amount.String()
	}
	return ret
}

// scopeFlags are shared by grant, revoke and check
type scopeFlags struct {
	kind     string
	contract string
	tokenID  string
	rights   string
	amount   string
}

func (f *scopeFlags) register(cmd *cobra.Command, withAmount bool) {
	cmd.Flags().StringVar(&f.kind, "kind", "all", "delegation kind: all, contract, erc721, erc20, erc1155")
	cmd.Flags().StringVar(&f.contract, "contract", "", "contract address")
	cmd.Flags().StringVar(&f.tokenID, "token-id", "", "token ID")
	cmd.Flags().StringVar(&f.rights, "rights", "", "rights name, empty for all rights")
	if withAmount {
		cmd.Flags().StringVar(&f.amount, "amount", "", "amount for erc20 and erc1155")
	}
}

func (f *scopeFlags) request() (delegation.Request, error) {
	var req delegation.Request
	var err error
	if req.Kind, err = delegation.ParseKind(f.kind); err != nil {
		return req, err
	}
	if req.Contract, err = parseAddress(f.contract); err != nil {
		return req, err
	}
	if req.TokenID, err = parseBig(f.tokenID); err != nil {
		return req, err
	}
	if req.Amount, err = parseBig(f.amount); err != nil {
		return req, err
	}
	req.Rights = authz.RightsTag(f.rights)
	return req, nil
}

func delegateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delegate",
		Short: "Grant, revoke and inspect delegations",
	}
	cmd.AddCommand(
		delegateSetCommand("grant", "Grant a delegation from the signer's account", true),
		delegateSetCommand("revoke", "Revoke a delegation from the signer's account", false),
		delegateCheckCommand(),
		delegateListCommand(),
	)
	return cmd
}

func delegateSetCommand(use string, short string, enable bool) *cobra.Command {
	var keyName, to string
	var scope scopeFlags
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
				req, err := scope.request()
				if err != nil {
					return err
				}
				if req.To, err = s.resolveAccount(to); err != nil {
					return err
				}
				req.Enable = enable
				engine := s.node.Delegations()
				if err := engine.Delegate(key.Address, req); err != nil {
					return err
				}
				if req.From, err = s.node.Registry().IDOf(key.Address); err != nil {
					return err
				}
				d := delegation.Delegation{
					TokenID:  req.TokenID,
					Amount:   req.Amount,
					Kind:     req.Kind,
					From:     req.From,
					To:       req.To,
					Contract: req.Contract,
					Rights:   req.Rights,
				}
				status, err := engine.Status(d.Hash())
				if err != nil {
					return err
				}
				return s.printJSON(map[string]any{
					"delegation": newDelegationOutput(d),
					"status":     status.String(),
				})
			})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "custody or operator signer key of the granting account")
	cmd.Flags().StringVar(&to, "to", "", "receiving account")
	scope.register(cmd, enable)
	return cmd
}

func delegateCheckCommand() *cobra.Command {
	var from, to string
	var scope scopeFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether one account may act for another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(s *session) error {
				req, err := scope.request()
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
				engine := s.node.Delegations()
				ret := map[string]any{
					"kind": req.Kind.String(),
					"from": fromID,
					"to":   toID,
				}
				switch req.Kind {
				case delegation.KindAll:
					ret["valid"], err = engine.CheckDelegateForAll(toID, fromID, req.Rights)
				case delegation.KindContract:
					ret["valid"], err = engine.CheckDelegateForContract(toID, fromID, req.Contract, req.Rights)
				case delegation.KindERC721:
					ret["valid"], err = engine.CheckDelegateForERC721(toID, fromID, req.Contract, req.TokenID, req.Rights)
				case delegation.KindERC20:
					amount, checkErr := engine.CheckDelegateForERC20(toID, fromID, req.Contract, req.Rights)
					if checkErr == nil {
						ret["amount"] = amount.String()
					}
					err = checkErr
				case delegation.KindERC1155:
					amount, checkErr := engine.CheckDelegateForERC1155(toID, fromID, req.Contract, req.TokenID, req.Rights)
					if checkErr == nil {
						ret["amount"] = amount.String()
					}
					err = checkErr
				default:
					err = errors.New("a delegation kind is required")
				}
				if err != nil {
					return err
				}
				return s.printJSON(ret)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "granting account")
	cmd.Flags().StringVar(&to, "to", "", "acting account")
	scope.register(cmd, false)
	return cmd
}

func delegateListCommand() *cobra.Command {
	var incoming bool
	cmd := &cobra.Command{
		Use:   "list <account>",
		Short: "List active delegations of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(s *session) error {
				id, err := s.resolveAccount(args[0])
				if err != nil {
					return err
				}
				engine := s.node.Delegations()
				var delegations []delegation.Delegation
				if incoming {
					delegations, err = engine.IncomingDelegations(id)
				} else {
					delegations, err = engine.OutgoingDelegations(id)
				}
				if err != nil {
					return err
				}
				ret := make([]delegationOutput, 0, len(delegations))
				for _, d := range delegations {
					ret = append(ret, newDelegationOutput(d))
				}
				return s.printJSON(ret)
			})
		},
	}
	cmd.Flags().BoolVar(&incoming, "incoming", false, "list delegations received instead of granted")
	return cmd
}
