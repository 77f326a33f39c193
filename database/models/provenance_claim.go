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

package models

import (
	"time"

	"github.com/blinklabs-io/lineage/database/types"
)

// ProvenanceClaim links an originator account to a content hash and
// optionally to the NFT that carries the content
type ProvenanceClaim struct {
	CreatedAt    time.Time
	NftTokenId   types.BigInt
	ContentHash  []byte `gorm:"uniqueIndex;size:32"`
	NftContract  []byte `gorm:"size:20"`
	ID           uint   `gorm:"primarykey"`
	OriginatorId uint64 `gorm:"index"`
	RegistrarId  uint64
}

func (ProvenanceClaim) TableName() string {
	return "provenance_claim"
}
