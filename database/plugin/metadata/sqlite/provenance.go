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

package sqlite

import (
	"errors"

	"github.com/blinklabs-io/lineage/database/models"
	"github.com/blinklabs-io/lineage/database/types"
	"gorm.io/gorm"
)

// AddProvenanceClaim stores a new claim. The caller is responsible for
// checking that the content hash is not already claimed
func (d *MetadataStoreSqlite) AddProvenanceClaim(
	txn types.Txn,
	claim *models.ProvenanceClaim,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	if result := db.Create(claim); result.Error != nil {
		return result.Error
	}
	return nil
}

// GetProvenanceClaim returns the claim for a content hash, or nil if there is none
func (d *MetadataStoreSqlite) GetProvenanceClaim(
	txn types.Txn,
	contentHash []byte,
) (*models.ProvenanceClaim, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.ProvenanceClaim{}
	result := db.Where("content_hash = ?", contentHash).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetProvenanceClaimsByOriginator returns all claims made for an originator in registration order
func (d *MetadataStoreSqlite) GetProvenanceClaimsByOriginator(
	txn types.Txn,
	originatorId uint64,
) ([]models.ProvenanceClaim, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.ProvenanceClaim
	result := db.Where("originator_id = ?", originatorId).
		Order("id ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// CountProvenanceClaims returns the total number of stored claims
func (d *MetadataStoreSqlite) CountProvenanceClaims(
	txn types.Txn,
) (uint64, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	var count int64
	if result := db.Model(&models.ProvenanceClaim{}).Count(&count); result.Error != nil {
		return 0, result.Error
	}
	return uint64(count), nil //nolint:gosec // row counts are never negative
}
