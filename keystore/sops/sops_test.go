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

package sops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKMSEnv(t *testing.T) {
	t.Setenv(EnvGCPKMSResourceID, "")
	t.Setenv(EnvAWSKMSKeyARNs, "")
	t.Setenv(EnvAWSKMSProfile, "")
}

func TestConfigured(t *testing.T) {
	clearKMSEnv(t)
	assert.False(t, Configured())
	t.Setenv(EnvAWSKMSKeyARNs, "arn:aws:kms:us-east-1:000000000000:key/test")
	assert.True(t, Configured())
}

func TestIsEncrypted(t *testing.T) {
	assert.False(t, IsEncrypted([]byte(`{"type":"x"}`)))
	assert.False(t, IsEncrypted([]byte("not json")))
	assert.True(t, IsEncrypted([]byte(`{"data":"ENC[...]","sops":{}}`)))
}

func TestEncryptRequiresMasterKey(t *testing.T) {
	clearKMSEnv(t)
	_, err := Encrypt([]byte(`{"type":"x"}`))
	require.ErrorIs(t, err, ErrNoMasterKeys)
}

func TestEncryptRejectsEncrypted(t *testing.T) {
	_, err := Encrypt([]byte(`{"data":"ENC[...]","sops":{}}`))
	require.ErrorIs(t, err, ErrAlreadyEncrypted)
}
