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

	"github.com/blinklabs-io/lineage/keystore"
)

type keyOutput struct {
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	Path      string `json:"path,omitempty"`
	Encrypted bool   `json:"encrypted,omitempty"`
}

func keysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage signer keys",
	}
	cmd.AddCommand(
		keysGenerateCommand(),
		keysImportCommand(),
		keysListCommand(),
		keysShowCommand(),
	)
	return cmd
}

func keysGenerateCommand() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "generate <name>",
		Short: "Generate a new secp256k1 signer key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			key, err := s.keys.Generate(args[0], description)
			if err != nil {
				return err
			}
			return s.printJSON(keyOutput{
				Name:      key.Name,
				Address:   key.Address.Hex(),
				Path:      s.keys.Path(key.Name),
				Encrypted: s.cfg.EncryptKeys,
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "key description")
	return cmd
}

func keysImportCommand() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "import <name> <hex-private-key>",
		Short: "Import an existing private key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			key, err := s.keys.Import(args[0], description, args[1])
			if err != nil {
				return err
			}
			return s.printJSON(keyOutput{
				Name:    key.Name,
				Address: key.Address.Hex(),
				Path:    s.keys.Path(key.Name),
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "key description")
	return cmd
}

func keysListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List signer keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			infos, err := s.keys.List()
			if err != nil {
				return err
			}
			ret := make([]keyOutput, 0, len(infos))
			for _, info := range infos {
				ret = append(ret, keyInfoOutput(info))
			}
			return s.printJSON(ret)
		},
	}
}

func keysShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show the address of a signer key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			key, err := s.keys.Load(args[0])
			if err != nil {
				return err
			}
			return s.printJSON(keyOutput{
				Name:    key.Name,
				Address: key.Address.Hex(),
				Path:    s.keys.Path(key.Name),
			})
		},
	}
}

func keyInfoOutput(info keystore.KeyInfo) keyOutput {
	ret := keyOutput{
		Name:      info.Name,
		Path:      info.Path,
		Encrypted: info.Encrypted,
	}
	if !info.Encrypted {
		ret.Address = info.Address.Hex()
	}
	return ret
}
