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
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/blinklabs-io/lineage/provenance"
)

type claimOutput struct {
	ContentHash  string    `json:"contentHash"`
	OriginatorID uint64    `json:"originatorId"`
	RegistrarID  uint64    `json:"registrarId"`
	NFTContract  string    `json:"nftContract,omitempty"`
	NFTTokenID   string    `json:"nftTokenId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newClaimOutput(claim provenance.Claim) claimOutput {
	ret := claimOutput{
		ContentHash:  claim.ContentHash.Hex(),
		OriginatorID: claim.OriginatorID,
		RegistrarID:  claim.RegistrarID,
		CreatedAt:    claim.CreatedAt,
	}
	if claim.NFTContract != (common.Address{}) {
		ret.NFTContract = claim.NFTContract.Hex()
		if claim.NFTTokenID != nil {
			ret.NFTTokenID = claim.NFTTokenID.String()
		}
	}
	return ret
}

func provenanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provenance",
		Short: "Register and look up content provenance claims",
	}
	cmd.AddCommand(
		provenanceRegisterCommand(),
		provenanceShowCommand(),
		provenanceListCommand(),
	)
	return cmd
}

// contentHash takes either a 32-byte hex hash or the keccak256 of a file
func contentHash(hashHex string, file string) (common.Hash, error) {
	switch {
	case hashHex != "" && file != "":
		return common.Hash{}, errors.New("use only one of --content-hash and --file")
	case hashHex != "":
		return parseHash(hashHex)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return common.Hash{}, fmt.Errorf("read content file: %w", err)
		}
		return crypto.Keccak256Hash(data), nil
	default:
		return common.Hash{}, errors.New("one of --content-hash and --file is required")
	}
}

func provenanceRegisterCommand() *cobra.Command {
	var keyName, originator, hashHex, file, nftContract, nftTokenID string
	var signed bool
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a provenance claim for an originator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(s *session) error {
				key, err := s.key(keyName)
				if err != nil {
					return err
				}
				var claim provenance.Claim
				if claim.ContentHash, err = contentHash(hashHex, file); err != nil {
					return err
				}
				if claim.NFTContract, err = parseAddress(nftContract); err != nil {
					return err
				}
				if claim.NFTTokenID, err = parseBig(nftTokenID); err != nil {
					return err
				}
				ledger := s.node.Provenance()
				if originator == "" {
					claim.OriginatorID, err = s.node.Registry().IDOf(key.Address)
				} else {
					claim.OriginatorID, err = s.resolveAccount(originator)
				}
				if err != nil {
					return err
				}
				if signed {
					// The key signs as originator custody
					auth, err := s.sign(
						ledger.Verifier(),
						key,
						provenance.RegisterProvenanceSchema,
						provenance.RegisterProvenanceMessage(claim),
					)
					if err != nil {
						return err
					}
					claim, err = ledger.RegisterProvenanceFor(cmd.Context(), claim, auth)
					if err != nil {
						return err
					}
				} else {
					claim, err = ledger.RegisterProvenance(cmd.Context(), key.Address, claim)
					if err != nil {
						return err
					}
				}
				return s.printJSON(newClaimOutput(claim))
			})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "signer key of the registrar")
	cmd.Flags().StringVar(&originator, "originator", "", "originator account, defaults to the signer's account")
	cmd.Flags().StringVar(&hashHex, "content-hash", "", "32-byte content hash")
	cmd.Flags().StringVar(&file, "file", "", "file whose keccak256 hash is registered")
	cmd.Flags().StringVar(&nftContract, "nft-contract", "", "NFT contract address")
	cmd.Flags().StringVar(&nftTokenID, "nft-token-id", "", "NFT token ID")
	cmd.Flags().BoolVar(&signed, "signed", false, "register with a custody signature instead of a direct call")
	return cmd
}

func provenanceShowCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "show [content-hash]",
		Short: "Show the claim for a content hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var hashHex string
			if len(args) > 0 {
				hashHex = args[0]
			}
			hash, err := contentHash(hashHex, file)
			if err != nil {
				return err
			}
			return runWithNode(cmd, func(s *session) error {
				claim, err := s.node.Provenance().ClaimByContentHash(hash)
				if err != nil {
					return err
				}
				return s.printJSON(newClaimOutput(claim))
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "look up the keccak256 hash of this file")
	return cmd
}

func provenanceListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <originator>",
		Short: "List the claims of an originator account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(s *session) error {
				id, err := s.resolveAccount(args[0])
				if err != nil {
					return err
				}
				claims, err := s.node.Provenance().ClaimsByOriginator(id)
				if err != nil {
					return err
				}
				ret := make([]claimOutput, 0, len(claims))
				for _, claim := range claims {
					ret = append(ret, newClaimOutput(claim))
				}
				return s.printJSON(ret)
			})
		},
	}
}
