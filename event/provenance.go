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

const ProvenanceRegisteredEventType = EventType("provenance.registered")

// ProvenanceRegisteredEvent is emitted when a content hash is claimed
type ProvenanceRegisteredEvent struct {
	NFTTokenID   *big.Int
	OriginatorID uint64
	RegistrarID  uint64
	ContentHash  common.Hash
	NFTContract  common.Address
}
