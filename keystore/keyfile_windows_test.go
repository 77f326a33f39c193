//go:build windows

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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

func currentUserSIDString(t *testing.T) string {
	t.Helper()

	var token windows.Token
	err := windows.OpenProcessToken(
		windows.CurrentProcess(),
		windows.TOKEN_QUERY,
		&token,
	)
	require.NoError(t, err)
	defer token.Close()

	tokenUser, err := token.GetTokenUser()
	require.NoError(t, err)

	return tokenUser.User.Sid.String()
}

func setDACL(t *testing.T, path string, sddl string, protected bool) {
	t.Helper()

	sd, err := windows.SecurityDescriptorFromString(sddl)
	require.NoError(t, err)
	dacl, _, err := sd.DACL()
	require.NoError(t, err)

	info := windows.SECURITY_INFORMATION(windows.DACL_SECURITY_INFORMATION)
	if protected {
		info |= windows.PROTECTED_DACL_SECURITY_INFORMATION
	}
	err = windows.SetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		info,
		nil, nil, dacl, nil,
	)
	require.NoError(t, err)
}

func generateWindowsKey(t *testing.T) (*KeyStore, string) {
	t.Helper()
	dir := t.TempDir()
	ks := NewKeyStore(KeyStoreConfig{Dir: dir})
	_, err := ks.Generate("signer", "")
	require.NoError(t, err)
	// A fresh store so Load reads the file instead of the cache
	return NewKeyStore(KeyStoreConfig{Dir: dir}), ks.Path("signer")
}

func TestInsecureACLWindows(t *testing.T) {
	tests := []struct {
		name    string
		sddl    string
		trustee string
	}{
		{name: "everyone", sddl: "D:(A;;GR;;;WD)", trustee: "Everyone"},
		{name: "builtin users", sddl: "D:(A;;GR;;;BU)", trustee: "BUILTIN\\Users"},
		{name: "authenticated users", sddl: "D:(A;;GR;;;AU)", trustee: "Authenticated Users"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ks, path := generateWindowsKey(t)
			setDACL(t, path, test.sddl, false)

			_, err := ks.Load("signer")
			require.ErrorIs(t, err, ErrInsecureFileMode)
			assert.Contains(t, err.Error(), test.trustee)
		})
	}
}

func TestOwnerOnlyACLWindows(t *testing.T) {
	ks, path := generateWindowsKey(t)
	// Inherited ACLs usually include BUILTIN\Users
	sddl := fmt.Sprintf("D:P(A;;GA;;;%s)", currentUserSIDString(t))
	setDACL(t, path, sddl, true)

	key, err := ks.Load("signer")
	require.NoError(t, err)
	assert.Equal(t, "signer", key.Name)
}

func TestInsecureACLBypassWindows(t *testing.T) {
	ks, path := generateWindowsKey(t)
	setDACL(t, path, "D:(A;;GR;;;WD)", false)
	t.Setenv(envAllowInsecureKeyPerms, "true")

	_, err := ks.Load("signer")
	require.NoError(t, err)
}

func TestCheckSDDLMissingDACL(t *testing.T) {
	err := checkSDDL("signer.skey", "O:BA")
	require.ErrorIs(t, err, ErrInsecureFileMode)
}
