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

package keystore

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blinklabs-io/lineage/keystore/sops"
)

const (
	keyFileType   = "Secp256k1SigningKey"
	keyFileSuffix = ".skey"

	// Valid key files are well under this size
	maxKeyFileSize = 1 << 20
)

// keyFileEnvelope is the on-disk JSON form of a signer key
type keyFileEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Address     string `json:"address"`
	KeyHex      string `json:"keyHex"`
}

// loadKeyFromFile loads a signer key. Permissions are checked on the open
// handle so the check and the read see the same file.
// Returns ErrInsecureFileMode if the file is readable by group or other.
func loadKeyFromFile(path string) (*Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %q: %w", path, err)
	}
	defer f.Close()

	if err := checkOpenFilePermissions(f); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	if sops.IsEncrypted(data) {
		data, err = sops.Decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt key file %q: %w", path, err)
		}
	}
	key, err := parseKeyEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	return key, nil
}

// parseKeyEnvelope decodes the envelope and checks that the stored address,
// when present, matches the private key
func parseKeyEnvelope(data []byte) (*Key, error) {
	var env keyFileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyFile, err)
	}
	if env.Type != keyFileType {
		return nil, fmt.Errorf("%w: unknown key type %q", ErrInvalidKeyFile, env.Type)
	}
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(env.KeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyFile, err)
	}
	addr := crypto.PubkeyToAddress(priv.PublicKey)
	if env.Address != "" {
		if !common.IsHexAddress(env.Address) ||
			common.HexToAddress(env.Address) != addr {
			return nil, fmt.Errorf(
				"%w: address %s does not match key",
				ErrInvalidKeyFile,
				env.Address,
			)
		}
	}
	return &Key{
		Description: env.Description,
		Address:     addr,
		PrivateKey:  priv,
	}, nil
}

func encodeKeyEnvelope(description string, priv *ecdsa.PrivateKey) ([]byte, error) {
	env := keyFileEnvelope{
		Type:        keyFileType,
		Description: description,
		Address:     crypto.PubkeyToAddress(priv.PublicKey).Hex(),
		KeyHex:      hex.EncodeToString(crypto.FromECDSA(priv)),
	}
	return json.MarshalIndent(env, "", "    ")
}

// writeKeyFile creates path with owner-only permissions. An existing file
// is never overwritten.
func writeKeyFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrKeyExists, path)
		}
		return fmt.Errorf("failed to create key file %q: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write key file %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write key file %q: %w", path, err)
	}
	return nil
}
