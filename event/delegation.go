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

package event

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const DelegationDelegateEventType = EventType("delegation.delegate")

// DelegateEvent is emitted for every delegation call, including calls that
// leave the stored state unchanged. Amount is nil for the boolean kinds
type DelegateEvent struct {
	Kind     string
	TokenID  *big.Int
	Amount   *big.Int
	From     uint64
	To       uint64
	Contract common.Address
	Rights   common.Hash
	Enable   bool
}
