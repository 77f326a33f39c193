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

// Package provenance records content hash claims made for an originator
// account, optionally tied to an NFT held by that account.
package provenance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/blinklabs-io/lineage/admin"
	"github.com/blinklabs-io/lineage/authz"
	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/database/models"
	"github.com/blinklabs-io/lineage/database/types"
	"github.com/blinklabs-io/lineage/event"
	"github.com/blinklabs-io/lineage/nonce"
	"github.com/blinklabs-io/lineage/registry"
	"github.com/blinklabs-io/lineage/typeddata"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DomainName     = "LineageProvenanceRegistry"
	DomainVersion  = "1"
	NonceNamespace = "provenance"

	// RegisterRights is the rights name a registrar needs from the originator
	RegisterRights = "registerProvenance"
)

var (
	ErrContentAlreadyRegistered = errors.New("content hash already registered")
	ErrInvalidContentHash       = errors.New("invalid content hash")
	ErrNFTNotOwned              = errors.New("originator does not own the NFT")
	ErrUnauthorized             = errors.New("caller may not register for the originator")
	ErrClaimNotFound            = errors.New("provenance claim not found")
)

var RegisterProvenanceSchema = typeddata.NewSchema(
	"RegisterProvenance",
	typeddata.Field{Name: "originatorId", Type: "uint256"},
	typeddata.Field{Name: "contentHash", Type: "bytes32"},
	typeddata.Field{Name: "nftContract", Type: "address"},
	typeddata.Field{Name: "nftTokenId", Type: "uint256"},
)

// Claim links a content hash to the account it originates from
type Claim struct {
	CreatedAt    time.Time
	NFTTokenID   *big.Int
	OriginatorID uint64
	RegistrarID  uint64
	ContentHash  common.Hash
	NFTContract  common.Address
}

// RegisterProvenanceMessage is signed by the custody of the originator
func RegisterProvenanceMessage(claim Claim) typeddata.Message {
	return typeddata.Message{
		"originatorId": typeddata.Uint(claim.OriginatorID),
		"contentHash":  typeddata.Bytes32(claim.ContentHash),
		"nftContract":  typeddata.Address(claim.NFTContract),
		"nftTokenId":   typeddata.BigUint(claim.NFTTokenID),
	}
}

// NFTOwnerResolver looks up the current holder of an NFT
type NFTOwnerResolver interface {
	OwnerOf(ctx context.Context, contract common.Address, tokenID *big.Int) (common.Address, error)
}

// NFTOwnerResolverFunc adapts a function to NFTOwnerResolver
type NFTOwnerResolverFunc func(ctx context.Context, contract common.Address, tokenID *big.Int) (common.Address, error)

func (f NFTOwnerResolverFunc) OwnerOf(
	ctx context.Context,
	contract common.Address,
	tokenID *big.Int,
) (common.Address, error) {
	return f(ctx, contract, tokenID)
}

// Accounts is the registry surface used by the ledger
type Accounts interface {
	IDOfTxn(txn *database.Txn, addr common.Address) (uint64, error)
	AccountTxn(txn *database.Txn, id uint64) (registry.Account, error)
}

type Config struct {
	DB           *database.Database
	Admin        *admin.Admin
	Accounts     Accounts
	Bridge       *authz.Bridge
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	ChainID      *big.Int
	Now          func() time.Time
	// NFTOwnerResolver is optional. Without it NFT ownership is not checked
	NFTOwnerResolver NFTOwnerResolver
}

type Ledger struct {
	db       *database.Database
	admin    *admin.Admin
	accounts Accounts
	bridge   *authz.Bridge
	resolver NFTOwnerResolver
	eventBus *event.EventBus
	logger   *slog.Logger
	verifier *typeddata.Verifier
	now      func() time.Time
	claims   prometheus.Counter
}

func New(cfg Config) (*Ledger, error) {
	if cfg.DB == nil {
		return nil, errors.New("provenance: database is required")
	}
	if cfg.Admin == nil || cfg.Accounts == nil || cfg.Bridge == nil {
		return nil, errors.New("provenance: admin, accounts and bridge are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := &Ledger{
		db:       cfg.DB,
		admin:    cfg.Admin,
		accounts: cfg.Accounts,
		bridge:   cfg.Bridge,
		resolver: cfg.NFTOwnerResolver,
		eventBus: cfg.EventBus,
		logger:   cfg.Logger,
		now:      cfg.Now,
		verifier: typeddata.NewVerifier(
			typeddata.NewDomain(DomainName, DomainVersion, cfg.ChainID),
			nonce.NewAuthority(NonceNamespace),
			cfg.Now,
		),
	}
	l.claims = promauto.With(cfg.PromRegistry).NewCounter(
		prometheus.CounterOpts{
			Name: "lineage_provenance_claims_total",
			Help: "total number of provenance claims registered",
		},
	)
	return l, nil
}

// Address is the scope contract registrars need a delegation for
func (l *Ledger) Address() common.Address {
	return l.verifier.Domain().VerifyingContract
}

func (l *Ledger) Verifier() *typeddata.Verifier {
	return l.verifier
}

func (l *Ledger) Nonce(addr common.Address) (uint64, error) {
	var ret uint64
	err := l.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = l.verifier.Nonces().Nonce(txn, addr)
		return err
	})
	return ret, err
}

// RegisterProvenance records claim with the caller's account as registrar.
// The caller must be able to act for the originator within this ledger
func (l *Ledger) RegisterProvenance(ctx context.Context, caller common.Address, claim Claim) (Claim, error) {
	err := l.mutate(func(txn *database.Txn) error {
		registrarID, err := l.accounts.IDOfTxn(txn, caller)
		if err != nil {
			return err
		}
		if !l.bridge.CanActTxn(
			txn,
			claim.OriginatorID,
			caller,
			l.Address(),
			authz.RightsTag(RegisterRights),
		) {
			return ErrUnauthorized
		}
		claim.RegistrarID = registrarID
		claim, err = l.registerTxn(ctx, txn, claim)
		return err
	})
	return claim, err
}

// RegisterProvenanceFor records claim authorized by a signature of the
// originator custody, which also acts as registrar
func (l *Ledger) RegisterProvenanceFor(
	ctx context.Context,
	claim Claim,
	auth typeddata.Authorization,
) (Claim, error) {
	err := l.mutate(func(txn *database.Txn) error {
		acct, err := l.accounts.AccountTxn(txn, claim.OriginatorID)
		if err != nil {
			return err
		}
		if err := l.verifier.Verify(
			txn,
			acct.Custody,
			RegisterProvenanceSchema,
			RegisterProvenanceMessage(claim),
			auth,
		); err != nil {
			return err
		}
		claim.RegistrarID = claim.OriginatorID
		claim, err = l.registerTxn(ctx, txn, claim)
		return err
	})
	return claim, err
}

func (l *Ledger) registerTxn(ctx context.Context, txn *database.Txn, claim Claim) (Claim, error) {
	if claim.ContentHash == (common.Hash{}) {
		return claim, ErrInvalidContentHash
	}
	originator, err := l.accounts.AccountTxn(txn, claim.OriginatorID)
	if err != nil {
		return claim, err
	}
	store := l.db.Metadata()
	existing, err := store.GetProvenanceClaim(txn.Metadata(), claim.ContentHash.Bytes())
	if err != nil {
		return claim, fmt.Errorf("lookup provenance claim: %w", err)
	}
	if existing != nil {
		return claim, ErrContentAlreadyRegistered
	}
	if claim.NFTContract != (common.Address{}) {
		if claim.NFTTokenID == nil {
			claim.NFTTokenID = new(big.Int)
		}
		if l.resolver != nil {
			owner, err := l.resolver.OwnerOf(ctx, claim.NFTContract, claim.NFTTokenID)
			if err != nil {
				return claim, fmt.Errorf("resolve NFT owner: %w", err)
			}
			if owner != originator.Custody {
				return claim, ErrNFTNotOwned
			}
		}
	} else {
		claim.NFTTokenID = nil
	}
	claim.CreatedAt = l.now().UTC()
	if err := store.AddProvenanceClaim(txn.Metadata(), claimToModel(claim)); err != nil {
		return claim, fmt.Errorf("store provenance claim: %w", err)
	}
	txn.OnCommit(l.claims.Inc)
	if l.eventBus != nil {
		evt := event.ProvenanceRegisteredEvent{
			OriginatorID: claim.OriginatorID,
			RegistrarID:  claim.RegistrarID,
			ContentHash:  claim.ContentHash,
			NFTContract:  claim.NFTContract,
			NFTTokenID:   claim.NFTTokenID,
		}
		txn.OnCommit(func() {
			l.eventBus.Publish(
				event.ProvenanceRegisteredEventType,
				event.NewEvent(event.ProvenanceRegisteredEventType, evt),
			)
		})
	}
	l.logger.Info(
		"provenance registered",
		"component", "provenance",
		"content_hash", claim.ContentHash.Hex(),
		"originator", claim.OriginatorID,
		"registrar", claim.RegistrarID,
	)
	return claim, nil
}

// ClaimByContentHash returns the claim for hash, or ErrClaimNotFound
func (l *Ledger) ClaimByContentHash(hash common.Hash) (Claim, error) {
	tmpClaim, err := l.db.Metadata().GetProvenanceClaim(nil, hash.Bytes())
	if err != nil {
		return Claim{}, err
	}
	if tmpClaim == nil {
		return Claim{}, ErrClaimNotFound
	}
	return claimFromModel(tmpClaim), nil
}

// ClaimsByOriginator returns the claims of an originator, oldest first
func (l *Ledger) ClaimsByOriginator(originatorID uint64) ([]Claim, error) {
	tmpClaims, err := l.db.Metadata().GetProvenanceClaimsByOriginator(nil, originatorID)
	if err != nil {
		return nil, err
	}
	ret := make([]Claim, 0, len(tmpClaims))
	for i := range tmpClaims {
		ret = append(ret, claimFromModel(&tmpClaims[i]))
	}
	return ret, nil
}

func (l *Ledger) ClaimCount() (uint64, error) {
	return l.db.Metadata().CountProvenanceClaims(nil)
}

func (l *Ledger) mutate(fn func(txn *database.Txn) error) error {
	return l.db.Update(func(txn *database.Txn) error {
		if err := l.admin.RequireNotPaused(txn); err != nil {
			return err
		}
		return fn(txn)
	})
}

func claimToModel(claim Claim) *models.ProvenanceClaim {
	ret := &models.ProvenanceClaim{
		CreatedAt:    claim.CreatedAt,
		ContentHash:  claim.ContentHash.Bytes(),
		OriginatorId: claim.OriginatorID,
		RegistrarId:  claim.RegistrarID,
	}
	if claim.NFTContract != (common.Address{}) {
		ret.NftContract = claim.NFTContract.Bytes()
		ret.NftTokenId = types.BigInt{Int: new(big.Int).Set(claim.NFTTokenID)}
	}
	return ret
}

func claimFromModel(m *models.ProvenanceClaim) Claim {
	ret := Claim{
		CreatedAt:    m.CreatedAt,
		ContentHash:  common.BytesToHash(m.ContentHash),
		OriginatorID: m.OriginatorId,
		RegistrarID:  m.RegistrarId,
	}
	if len(m.NftContract) > 0 {
		ret.NFTContract = common.BytesToAddress(m.NftContract)
		ret.NFTTokenID = new(big.Int)
		if m.NftTokenId.Int != nil {
			ret.NFTTokenID.Set(m.NftTokenId.Int)
		}
	}
	return ret
}
