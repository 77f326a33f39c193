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

package registry

import (
	"github.com/blinklabs-io/lineage/typeddata"
	"github.com/ethereum/go-ethereum/common"
)

// Typed messages accepted by the registry. Every message also carries the
// signer's nonce and a deadline
var (
	RegisterSchema = typeddata.NewSchema(
		"Register",
		typeddata.Field{Name: "custody", Type: "address"},
		typeddata.Field{Name: "username", Type: "string"},
		typeddata.Field{Name: "operator", Type: "address"},
		typeddata.Field{Name: "recovery", Type: "address"},
	)
	TransferSchema = typeddata.NewSchema(
		"Transfer",
		typeddata.Field{Name: "id", Type: "uint256"},
		typeddata.Field{Name: "to", Type: "address"},
	)
	TransferAndClearRecoverySchema = typeddata.NewSchema(
		"TransferAndClearRecovery",
		typeddata.Field{Name: "id", Type: "uint256"},
		typeddata.Field{Name: "to", Type: "address"},
	)
	ChangeOperatorSchema = typeddata.NewSchema(
		"ChangeOperator",
		typeddata.Field{Name: "id", Type: "uint256"},
		typeddata.Field{Name: "operator", Type: "address"},
	)
	ChangeRecoverySchema = typeddata.NewSchema(
		"ChangeRecovery",
		typeddata.Field{Name: "id", Type: "uint256"},
		typeddata.Field{Name: "recovery", Type: "address"},
	)
	ChangeUsernameSchema = typeddata.NewSchema(
		"ChangeUsername",
		typeddata.Field{Name: "id", Type: "uint256"},
		typeddata.Field{Name: "username", Type: "string"},
	)
	TransferUsernameSchema = typeddata.NewSchema(
		"TransferUsername",
		typeddata.Field{Name: "fromId", Type: "uint256"},
		typeddata.Field{Name: "toId", Type: "uint256"},
		typeddata.Field{Name: "username", Type: "string"},
	)
	RecoverSchema = typeddata.NewSchema(
		"Recover",
		typeddata.Field{Name: "id", Type: "uint256"},
		typeddata.Field{Name: "to", Type: "address"},
	)
)

// RegisterParams describes a new account
type RegisterParams struct {
	Username string
	Custody  common.Address
	Operator common.Address
	Recovery common.Address
}

func RegisterMessage(params RegisterParams) typeddata.Message {
	return typeddata.Message{
		"custody":  typeddata.Address(params.Custody),
		"username": params.Username,
		"operator": typeddata.Address(params.Operator),
		"recovery": typeddata.Address(params.Recovery),
	}
}

// TransferMessage is signed by the receiving address, and by the custody
// address when relayed. The same shape is used for TransferAndClearRecoverySchema
func TransferMessage(id uint64, to common.Address) typeddata.Message {
	return typeddata.Message{
		"id": typeddata.Uint(id),
		"to": typeddata.Address(to),
	}
}

func ChangeOperatorMessage(id uint64, operator common.Address) typeddata.Message {
	return typeddata.Message{
		"id":       typeddata.Uint(id),
		"operator": typeddata.Address(operator),
	}
}

func ChangeRecoveryMessage(id uint64, recovery common.Address) typeddata.Message {
	return typeddata.Message{
		"id":       typeddata.Uint(id),
		"recovery": typeddata.Address(recovery),
	}
}

func ChangeUsernameMessage(id uint64, username string) typeddata.Message {
	return typeddata.Message{
		"id":       typeddata.Uint(id),
		"username": username,
	}
}

// TransferUsernameMessage is signed by the custody of toID over the username
// it receives, and by the custody of fromID over the username it takes instead
func TransferUsernameMessage(fromID uint64, toID uint64, username string) typeddata.Message {
	return typeddata.Message{
		"fromId":   typeddata.Uint(fromID),
		"toId":     typeddata.Uint(toID),
		"username": username,
	}
}

// RecoverMessage is signed by the receiving address, and by the recovery
// address when relayed
func RecoverMessage(id uint64, to common.Address) typeddata.Message {
	return typeddata.Message{
		"id": typeddata.Uint(id),
		"to": typeddata.Address(to),
	}
}
