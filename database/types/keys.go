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

package types

import (
	"encoding/binary"
	"slices"
)

const (
	CommitTimestampBlobKey = "metadata_commit_timestamp"

	AdminOwnerKey  = "ao"
	AdminPausedKey = "ap"

	NonceKeyPrefix = "n"

	RegistryIdCounterKey         = "ric"
	RegistryAccountKeyPrefix     = "ra"
	RegistryAddressIndexPrefix   = "rx"
	RegistryUsernameIndexPrefix  = "rn"
	DelegationRecordKeyPrefix    = "dr"
	DelegationOutgoingKeyPrefix  = "do"
	DelegationIncomingKeyPrefix  = "di"
	DelegationLogLengthKeySuffix = "_len"
)

func Uint64ToBytes(input uint64) []byte {
	ret := make([]byte, 8)
	binary.BigEndian.PutUint64(ret, input)
	return ret
}

func BytesToUint64(input []byte) uint64 {
	if len(input) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(input)
}

// NonceKey returns the key holding the nonce of an address within a signing namespace
func NonceKey(namespace string, addr []byte) []byte {
	return slices.Concat(
		[]byte(NonceKeyPrefix),
		[]byte(namespace),
		[]byte{':'},
		addr,
	)
}

func RegistryAccountKey(id uint64) []byte {
	return slices.Concat([]byte(RegistryAccountKeyPrefix), Uint64ToBytes(id))
}

func RegistryAddressIndexKey(addr []byte) []byte {
	return slices.Concat([]byte(RegistryAddressIndexPrefix), addr)
}

func RegistryUsernameIndexKey(foldedUsername string) []byte {
	return slices.Concat(
		[]byte(RegistryUsernameIndexPrefix),
		[]byte(foldedUsername),
	)
}

func DelegationRecordKey(location []byte) []byte {
	return slices.Concat([]byte(DelegationRecordKeyPrefix), location)
}

// DelegationLogPrefix returns the key prefix of the outgoing or incoming hash log of an account
func DelegationLogPrefix(outgoing bool, id uint64) []byte {
	prefix := DelegationIncomingKeyPrefix
	if outgoing {
		prefix = DelegationOutgoingKeyPrefix
	}
	return slices.Concat([]byte(prefix), Uint64ToBytes(id))
}

// DelegationLogEntryKey returns the key of a single entry in a delegation hash log
func DelegationLogEntryKey(outgoing bool, id uint64, seq uint64) []byte {
	return slices.Concat(DelegationLogPrefix(outgoing, id), Uint64ToBytes(seq))
}

// DelegationLogLengthKey returns the key holding the length of a delegation hash log.
// The suffix keeps it outside of the entry key space, which is always 8 bytes after the prefix
func DelegationLogLengthKey(outgoing bool, id uint64) []byte {
	return slices.Concat(
		DelegationLogPrefix(outgoing, id),
		[]byte(DelegationLogLengthKeySuffix),
	)
}
