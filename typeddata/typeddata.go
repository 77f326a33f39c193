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

// Package typeddata builds EIP-712 digests for the registry components and
// verifies secp256k1 signatures over them, consuming the signer's nonce.
package typeddata

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"maps"
	"math/big"
	"slices"
	"time"

	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/nonce"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	NonceField    = "nonce"
	DeadlineField = "deadline"
)

var (
	ErrSignatureExpired = errors.New("signature expired")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Field is one member of a typed message
type Field = apitypes.Type

// Message holds the values of a typed message, keyed by field name.
// Use Address, Uint and Bytes32 to produce values in the expected encoding
type Message = apitypes.TypedDataMessage

var domainFields = []Field{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// Domain scopes signatures to a single component on a single chain
type Domain struct {
	ChainID           *big.Int
	Name              string
	Version           string
	VerifyingContract common.Address
}

// NewDomain returns the domain of a component. The verifying contract is derived from the name
func NewDomain(name string, version string, chainID *big.Int) Domain {
	tmpChainID := new(big.Int)
	if chainID != nil {
		tmpChainID.Set(chainID)
	}
	return Domain{
		Name:              name,
		Version:           version,
		ChainID:           tmpChainID,
		VerifyingContract: ComponentAddress(name),
	}
}

// ComponentAddress returns the deterministic address of a named component,
// the last 20 bytes of keccak256(name)
func ComponentAddress(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(name)))
}

func (d Domain) typedDataDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           (*math.HexOrDecimal256)(d.ChainID),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

// Schema describes one typed message. The nonce and deadline fields are always appended last
type Schema struct {
	PrimaryType string
	Fields      []Field
}

func NewSchema(primaryType string, fields ...Field) Schema {
	return Schema{
		PrimaryType: primaryType,
		Fields: append(
			slices.Clone(fields),
			Field{Name: NonceField, Type: "uint256"},
			Field{Name: DeadlineField, Type: "uint256"},
		),
	}
}

// Digest returns the EIP-712 hash of msg with the given nonce and deadline
func (d Domain) Digest(
	schema Schema,
	msg Message,
	nonce uint64,
	deadline uint64,
) (common.Hash, error) {
	full := make(Message, len(msg)+2)
	maps.Copy(full, msg)
	full[NonceField] = Uint(nonce)
	full[DeadlineField] = Uint(deadline)
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":     domainFields,
			schema.PrimaryType: schema.Fields,
		},
		PrimaryType: schema.PrimaryType,
		Domain:      d.typedDataDomain(),
		Message:     full,
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash typed data: %w", err)
	}
	return common.BytesToHash(hash), nil
}

// Address encodes an address message value
func Address(addr common.Address) any {
	return addr.Hex()
}

// Uint encodes an unsigned integer message value
func Uint(v uint64) any {
	return new(big.Int).SetUint64(v)
}

// BigUint encodes an arbitrary precision unsigned message value. Nil encodes as zero
func BigUint(v *big.Int) any {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Bytes32 encodes a 32 byte message value
func Bytes32(h common.Hash) any {
	return hexutil.Encode(h.Bytes())
}

// Bool encodes a boolean message value
func Bool(b bool) any {
	return b
}

// Authorization is a signature over a typed message together with its expiry
type Authorization struct {
	Signature []byte
	// Deadline is a unix timestamp in seconds. The signature is accepted up to and including it
	Deadline uint64
}

// Sign produces a 65 byte [R || S || V] signature over digest, with V of 27 or 28
func Sign(key *ecdsa.PrivateKey, digest common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Recover returns the address that produced sig over digest. V may be 0/1 or 27/28,
// and high-S signatures are rejected
func Recover(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	tmpSig := slices.Clone(sig)
	if tmpSig[crypto.RecoveryIDOffset] >= 27 {
		tmpSig[crypto.RecoveryIDOffset] -= 27
	}
	r := new(big.Int).SetBytes(tmpSig[:32])
	s := new(big.Int).SetBytes(tmpSig[32:64])
	if !crypto.ValidateSignatureValues(tmpSig[crypto.RecoveryIDOffset], r, s, true) {
		return common.Address{}, ErrInvalidSignature
	}
	pub, err := crypto.SigToPub(digest.Bytes(), tmpSig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verifier checks signatures for one component domain and consumes the
// signer's nonce on success
type Verifier struct {
	nonces *nonce.Authority
	now    func() time.Time
	domain Domain
}

// NewVerifier returns a verifier for domain. A nil now uses time.Now
func NewVerifier(
	domain Domain,
	nonces *nonce.Authority,
	now func() time.Time,
) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{
		domain: domain,
		nonces: nonces,
		now:    now,
	}
}

func (v *Verifier) Domain() Domain {
	return v.domain
}

func (v *Verifier) Nonces() *nonce.Authority {
	return v.nonces
}

// Expired reports whether deadline has passed at the verifier's current time
func (v *Verifier) Expired(deadline uint64) bool {
	now := v.now().Unix()
	if now < 0 {
		return false
	}
	return uint64(now) > deadline
}

// Verify checks that auth carries a signature by signer over msg with the
// signer's current nonce, and consumes that nonce
func (v *Verifier) Verify(
	txn *database.Txn,
	signer common.Address,
	schema Schema,
	msg Message,
	auth Authorization,
) error {
	if v.Expired(auth.Deadline) {
		return ErrSignatureExpired
	}
	if signer == (common.Address{}) {
		return ErrInvalidSignature
	}
	current, err := v.nonces.Nonce(txn, signer)
	if err != nil {
		return err
	}
	digest, err := v.domain.Digest(schema, msg, current, auth.Deadline)
	if err != nil {
		return err
	}
	recovered, err := Recover(digest, auth.Signature)
	if err != nil {
		return err
	}
	if recovered != signer {
		return ErrInvalidSignature
	}
	if _, err := v.nonces.Use(txn, signer); err != nil {
		return err
	}
	return nil
}

// Sign signs msg for this verifier's domain with an explicit nonce
func (v *Verifier) Sign(
	key *ecdsa.PrivateKey,
	schema Schema,
	msg Message,
	nonce uint64,
	deadline uint64,
) (Authorization, error) {
	digest, err := v.domain.Digest(schema, msg, nonce, deadline)
	if err != nil {
		return Authorization{}, err
	}
	sig, err := Sign(key, digest)
	if err != nil {
		return Authorization{}, err
	}
	return Authorization{Signature: sig, Deadline: deadline}, nil
}
