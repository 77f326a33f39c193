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

// Package keystore manages the secp256k1 signer keys used to authorize
// registry, delegation and provenance messages.
package keystore

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blinklabs-io/lineage/keystore/sops"
)

// Common errors returned by KeyStore operations.
var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrKeyExists        = errors.New("key already exists")
	ErrInvalidKeyName   = errors.New("invalid key name")
	ErrInvalidKeyFile   = errors.New("invalid key file")
	ErrInsecureFileMode = errors.New("insecure file permissions")
)

var keyNameRegexp = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Key is a loaded signer key
type Key struct {
	Name        string
	Description string
	Address     common.Address
	PrivateKey  *ecdsa.PrivateKey
}

// KeyInfo describes a key file without decrypting it
type KeyInfo struct {
	Name      string
	Path      string
	Encrypted bool
	// Address is zero for encrypted key files
	Address common.Address
}

// KeyStoreConfig holds configuration for the KeyStore.
type KeyStoreConfig struct {
	// Dir holds one <name>.skey file per key
	Dir string
	// Encrypt wraps newly written keys with SOPS using the KMS key from the
	// environment
	Encrypt bool
	Logger  *slog.Logger
}

// KeyStore manages signer key files in a directory.
type KeyStore struct {
	config KeyStoreConfig
	logger *slog.Logger
	mu     sync.RWMutex
	cache  map[string]*Key
}

// NewKeyStore creates a new KeyStore with the given configuration.
func NewKeyStore(config KeyStoreConfig) *KeyStore {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &KeyStore{
		config: config,
		logger: logger.With("component", "keystore"),
		cache:  make(map[string]*Key),
	}
}

// Path returns the file path used for the named key
func (ks *KeyStore) Path(name string) string {
	return filepath.Join(ks.config.Dir, name+keyFileSuffix)
}

// Generate creates a new random key and writes it to disk
func (ks *KeyStore) Generate(name, description string) (*Key, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return ks.store(name, description, priv)
}

// Import writes an existing hex encoded private key to disk
func (ks *KeyStore) Import(name, description, keyHex string) (*Key, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyFile, err)
	}
	return ks.store(name, description, priv)
}

func (ks *KeyStore) store(
	name string,
	description string,
	priv *ecdsa.PrivateKey,
) (*Key, error) {
	if !keyNameRegexp.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKeyName, name)
	}
	data, err := encodeKeyEnvelope(description, priv)
	if err != nil {
		return nil, err
	}
	if ks.config.Encrypt {
		data, err = sops.Encrypt(data)
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(ks.config.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	path := ks.Path(name)
	if err := writeKeyFile(path, data); err != nil {
		return nil, err
	}
	key := &Key{
		Name:        name,
		Description: description,
		Address:     crypto.PubkeyToAddress(priv.PublicKey),
		PrivateKey:  priv,
	}
	ks.mu.Lock()
	ks.cache[name] = key
	ks.mu.Unlock()
	ks.logger.Info(
		"stored signer key",
		"name", name,
		"address", key.Address.Hex(),
		"encrypted", ks.config.Encrypt,
	)
	return key, nil
}

// Load returns the named key, reading it from disk on first use
func (ks *KeyStore) Load(name string) (*Key, error) {
	if !keyNameRegexp.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKeyName, name)
	}
	ks.mu.RLock()
	key, ok := ks.cache[name]
	ks.mu.RUnlock()
	if ok {
		return key, nil
	}
	path := ks.Path(name)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	key, err := loadKeyFromFile(path)
	if err != nil {
		return nil, err
	}
	key.Name = name
	ks.mu.Lock()
	ks.cache[name] = key
	ks.mu.Unlock()
	ks.logger.Debug("loaded signer key", "name", name, "address", key.Address.Hex())
	return key, nil
}

// List returns the key files in the store directory, sorted by name
func (ks *KeyStore) List() ([]KeyInfo, error) {
	entries, err := os.ReadDir(ks.config.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read key directory: %w", err)
	}
	var ret []KeyInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), keyFileSuffix) {
			continue
		}
		info := KeyInfo{
			Name: strings.TrimSuffix(entry.Name(), keyFileSuffix),
			Path: filepath.Join(ks.config.Dir, entry.Name()),
		}
		data, err := os.ReadFile(info.Path)
		if err != nil {
			return nil, fmt.Errorf("read key file %q: %w", info.Path, err)
		}
		if sops.IsEncrypted(data) {
			info.Encrypted = true
		} else if key, err := parseKeyEnvelope(data); err == nil {
			info.Address = key.Address
		} else {
			ks.logger.Warn("skipping unreadable key file", "path", info.Path, "error", err)
			continue
		}
		ret = append(ret, info)
	}
	slices.SortFunc(ret, func(a, b KeyInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return ret, nil
}

// LoadKeyFile reads a single key file outside of any store directory
func LoadKeyFile(path string) (*Key, error) {
	key, err := loadKeyFromFile(path)
	if err != nil {
		return nil, err
	}
	key.Name = strings.TrimSuffix(filepath.Base(path), keyFileSuffix)
	return key, nil
}
