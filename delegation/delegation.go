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

// Package delegation records account-to-account permission grants in
// hash-addressed storage and answers whether a grant is currently active.
package delegation

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/blinklabs-io/lineage/database/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidKind    = errors.New("invalid delegation kind")
	ErrValueTooLarge  = errors.New("value does not fit in 256 bits")
	ErrUnauthorized   = errors.New("caller is not the custody or operator of the grantor")
	ErrHasNoID        = errors.New("address has no account")
	ErrInvalidAccount = errors.New("invalid account id")
	ErrNotGateway     = errors.New("caller is not the registry gateway")
)

// MaxAmount is returned by the amount checks for grants covering all amounts
var MaxAmount = new(big.Int).Set(math.MaxBig256)

// locationSalt separates record locations from raw delegation hashes
const locationSalt = "lineage.delegation"

type Kind uint8

const (
	KindNone Kind = iota
	KindAll
	KindContract
	KindERC721
	KindERC20
	KindERC1155
)

func (k Kind) String() string {
	switch k {
	case KindAll:
		return "ALL"
	case KindContract:
		return "CONTRACT"
	case KindERC721:
		return "ERC721"
	case KindERC20:
		return "ERC20"
	case KindERC1155:
		return "ERC1155"
	default:
		return "NONE"
	}
}

// ParseKind accepts the names returned by Kind.String, in any case
func ParseKind(s string) (Kind, error) {
	for k := KindAll; k <= KindERC1155; k++ {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) valid() bool {
	return k >= KindAll && k <= KindERC1155
}

// HasAmount reports whether grants of this kind carry an amount instead of an enable flag
func (k Kind) HasAmount() bool {
	return k == KindERC20 || k == KindERC1155
}

func (k Kind) hasContract() bool {
	return k != KindAll && k != KindNone
}

func (k Kind) hasTokenID() bool {
	return k == KindERC721 || k == KindERC1155
}

type Status uint8

const (
	StatusAbsent Status = iota
	StatusRevoked
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusRevoked:
		return "revoked"
	case StatusActive:
		return "active"
	default:
		return "absent"
	}
}

// Delegation is a grant from account From to account To. Contract and
// TokenID are zero for kinds that do not use them, and Amount is nil for
// the boolean kinds
type Delegation struct {
	TokenID  *big.Int
	Amount   *big.Int
	Kind     Kind
	From     uint64
	To       uint64
	Contract common.Address
	Rights   common.Hash
}

// Hash identifies the delegation tuple. The amount is not part of it
func (d Delegation) Hash() common.Hash {
	tokenID := common.Hash{}
	if d.Kind.hasTokenID() && d.TokenID != nil {
		tokenID = common.BigToHash(d.TokenID)
	}
	contract := common.Address{}
	if d.Kind.hasContract() {
		contract = d.Contract
	}
	return crypto.Keccak256Hash(
		[]byte{byte(d.Kind)},
		types.Uint64ToBytes(d.From),
		d.Rights.Bytes(),
		types.Uint64ToBytes(d.To),
		contract.Bytes(),
		tokenID.Bytes(),
	)
}

// Location returns the storage location of the record for a delegation hash
func Location(hash common.Hash) common.Hash {
	return crypto.Keccak256Hash(hash.Bytes(), []byte(locationSalt))
}

// normalize clears the scope fields that kind does not use
func (d Delegation) normalize() (Delegation, error) {
	if !d.Kind.valid() {
		return d, ErrInvalidKind
	}
	if !d.Kind.hasContract() {
		d.Contract = common.Address{}
	}
	if !d.Kind.hasTokenID() || d.TokenID == nil {
		d.TokenID = new(big.Int)
	} else {
		d.TokenID = new(big.Int).Set(d.TokenID)
	}
	if !d.Kind.HasAmount() {
		d.Amount = nil
	} else if d.Amount == nil {
		d.Amount = new(big.Int)
	} else {
		d.Amount = new(big.Int).Set(d.Amount)
	}
	for _, v := range []*big.Int{d.TokenID, d.Amount} {
		if v != nil && (v.Sign() < 0 || v.BitLen() > 256) {
			return d, ErrValueTooLarge
		}
	}
	return d, nil
}

// record is the stored form of a delegation at its location
type record struct {
	TokenID  *big.Int
	Amount   *big.Int
	Status   uint8
	Kind     uint8
	From     uint64
	To       uint64
	Contract common.Address
	Rights   common.Hash
}

func (r record) status() Status {
	return Status(r.Status)
}

func (r record) delegation() Delegation {
	d := Delegation{
		Kind:     Kind(r.Kind),
		From:     r.From,
		To:       r.To,
		Contract: r.Contract,
		Rights:   r.Rights,
		TokenID:  new(big.Int),
	}
	if r.TokenID != nil {
		d.TokenID.Set(r.TokenID)
	}
	if d.Kind.HasAmount() {
		d.Amount = new(big.Int)
		if r.Amount != nil {
			d.Amount.Set(r.Amount)
		}
	}
	return d
}

func newRecord(d Delegation) record {
	amount := new(big.Int)
	if d.Amount != nil {
		amount.Set(d.Amount)
	}
	return record{
		Status:   uint8(StatusActive),
		Kind:     uint8(d.Kind),
		From:     d.From,
		To:       d.To,
		Contract: d.Contract,
		Rights:   d.Rights,
		TokenID:  new(big.Int).Set(d.TokenID),
		Amount:   amount,
	}
}
