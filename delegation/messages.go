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

package delegation

import (
	"github.com/blinklabs-io/lineage/typeddata"
)

var DelegateSchema = typeddata.NewSchema(
	"Delegate",
	typeddata.Field{Name: "kind", Type: "uint8"},
	typeddata.Field{Name: "from", Type: "uint256"},
	typeddata.Field{Name: "to", Type: "uint256"},
	typeddata.Field{Name: "contract", Type: "address"},
	typeddata.Field{Name: "tokenId", Type: "uint256"},
	typeddata.Field{Name: "rights", Type: "bytes32"},
	typeddata.Field{Name: "amount", Type: "uint256"},
	typeddata.Field{Name: "enable", Type: "bool"},
)

// DelegateMessage is signed by the custody of req.From
func DelegateMessage(req Request) typeddata.Message {
	return typeddata.Message{
		"kind":     typeddata.Uint(uint64(req.Kind)),
		"from":     typeddata.Uint(req.From),
		"to":       typeddata.Uint(req.To),
		"contract": typeddata.Address(req.Contract),
		"tokenId":  typeddata.BigUint(req.TokenID),
		"rights":   typeddata.Bytes32(req.Rights),
		"amount":   typeddata.BigUint(req.Amount),
		"enable":   typeddata.Bool(req.Enable),
	}
}
