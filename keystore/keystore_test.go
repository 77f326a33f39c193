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
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/lineage/keystore/sops"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func isWindows() bool {
	return runtime.GOOS == "windows"
}

func testKeyAddress(t *testing.T) common.Address {
	t.Helper()
	priv, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	return crypto.PubkeyToAddress(priv.PublicKey)
}

func writeTestFile(t *testing.T, path string, data string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	// Chmod after write to avoid umask interference
	require.NoError(t, os.Chmod(path, mode))
}

func TestGenerateAndLoad(t *testing.T) {
	dir := t.TempDir()
	ks := NewKeyStore(KeyStoreConfig{Dir: dir})

	key, err := ks.Generate("alice", "alice custody key")
	require.NoError(t, err)
	assert.Equal(t, "alice", key.Name)
	assert.Equal(t, crypto.PubkeyToAddress(key.PrivateKey.PublicKey), key.Address)

	if !isWindows() {
		fi, err := os.Stat(ks.Path("alice"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	}

	// A second store reads from disk
	loaded, err := NewKeyStore(KeyStoreConfig{Dir: dir}).Load("alice")
	require.NoError(t, err)
	assert.Equal(t, key.Address, loaded.Address)
	assert.Equal(t, "alice custody key", loaded.Description)
	assert.Equal(t, crypto.FromECDSA(key.PrivateKey), crypto.FromECDSA(loaded.PrivateKey))
}

func TestGenerateRefusesOverwrite(t *testing.T) {
	ks := NewKeyStore(KeyStoreConfig{Dir: t.TempDir()})
	_, err := ks.Generate("alice", "")
	require.NoError(t, err)
	_, err = ks.Generate("alice", "")
	require.ErrorIs(t, err, ErrKeyExists)
}

func TestImport(t *testing.T) {
	ks := NewKeyStore(KeyStoreConfig{Dir: t.TempDir()})
	key, err := ks.Import("bob", "", "0x"+testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, testKeyAddress(t), key.Address)

	_, err = ks.Import("carol", "", "zz")
	require.ErrorIs(t, err, ErrInvalidKeyFile)
}

func TestKeyNames(t *testing.T) {
	ks := NewKeyStore(KeyStoreConfig{Dir: t.TempDir()})
	for _, name := range []string{"", "../escape", "a/b", ".hidden"} {
		_, err := ks.Generate(name, "")
		assert.ErrorIs(t, err, ErrInvalidKeyName, name)
		_, err = ks.Load(name)
		assert.ErrorIs(t, err, ErrInvalidKeyName, name)
	}
	_, err := ks.Load("missing")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestParseKeyEnvelope(t *testing.T) {
	addr := testKeyAddress(t)
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "valid",
			data: `{"type":"Secp256k1SigningKey","address":"` + addr.Hex() + `","keyHex":"` + testKeyHex + `"}`,
		},
		{
			name: "no address",
			data: `{"type":"Secp256k1SigningKey","keyHex":"` + testKeyHex + `"}`,
		},
		{
			name:    "address mismatch",
			data:    `{"type":"Secp256k1SigningKey","address":"0x00000000000000000000000000000000000000aa","keyHex":"` + testKeyHex + `"}`,
			wantErr: true,
		},
		{
			name:    "wrong type",
			data:    `{"type":"VrfSigningKey_PraosVRF","keyHex":"` + testKeyHex + `"}`,
			wantErr: true,
		},
		{
			name:    "bad hex",
			data:    `{"type":"Secp256k1SigningKey","keyHex":"1234"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			data:    `keyHex=1234`,
			wantErr: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			key, err := parseKeyEnvelope([]byte(test.data))
			if test.wantErr {
				require.ErrorIs(t, err, ErrInvalidKeyFile)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, addr, key.Address)
		})
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	ks := NewKeyStore(KeyStoreConfig{Dir: dir})
	_, err := ks.Import("bob", "", testKeyHex)
	require.NoError(t, err)
	_, err = ks.Generate("alice", "")
	require.NoError(t, err)
	writeTestFile(t, filepath.Join(dir, "vault.skey"), `{"data":"ENC[AES256_GCM,data:x]","sops":{"version":"3"}}`, 0o600)
	writeTestFile(t, filepath.Join(dir, "broken.skey"), `{}`, 0o600)
	writeTestFile(t, filepath.Join(dir, "notes.txt"), `hello`, 0o600)

	infos, err := ks.List()
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "alice", infos[0].Name)
	assert.Equal(t, "bob", infos[1].Name)
	assert.Equal(t, testKeyAddress(t), infos[1].Address)
	assert.Equal(t, "vault", infos[2].Name)
	assert.True(t, infos[2].Encrypted)
	assert.Equal(t, common.Address{}, infos[2].Address)

	empty, err := NewKeyStore(KeyStoreConfig{Dir: filepath.Join(dir, "missing")}).List()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEncryptWithoutMasterKey(t *testing.T) {
	t.Setenv(sops.EnvGCPKMSResourceID, "")
	t.Setenv(sops.EnvAWSKMSKeyARNs, "")
	dir := t.TempDir()
	ks := NewKeyStore(KeyStoreConfig{Dir: dir, Encrypt: true})
	_, err := ks.Generate("alice", "")
	require.ErrorIs(t, err, sops.ErrNoMasterKeys)
	_, err = os.Stat(ks.Path("alice"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operator.skey")
	writeTestFile(t, path, `{"type":"Secp256k1SigningKey","keyHex":"`+testKeyHex+`"}`, 0o600)
	key, err := LoadKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, "operator", key.Name)
	assert.Equal(t, testKeyAddress(t), key.Address)
}

func TestInsecureFileModeUnix(t *testing.T) {
	if isWindows() {
		t.Skip("Unix permission test; see TestInsecureACLWindows for Windows DACL test")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "alice.skey")
	writeTestFile(t, path, `{"type":"Secp256k1SigningKey","keyHex":"`+testKeyHex+`"}`, 0o644)

	_, err := NewKeyStore(KeyStoreConfig{Dir: dir}).Load("alice")
	require.ErrorIs(t, err, ErrInsecureFileMode)
	_, err = LoadKeyFile(path)
	require.ErrorIs(t, err, ErrInsecureFileMode)
}
