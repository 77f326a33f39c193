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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/blinklabs-io/lineage"
	"github.com/blinklabs-io/lineage/database"
	"github.com/blinklabs-io/lineage/internal/config"
	"github.com/blinklabs-io/lineage/internal/node"
	"github.com/blinklabs-io/lineage/keystore"
	"github.com/blinklabs-io/lineage/typeddata"
)

type loggerCtxKey struct{}

func withLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

func loggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerCtxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// session holds what a subcommand needs while the node is open
type session struct {
	cmd    *cobra.Command
	cfg    *config.Config
	logger *slog.Logger
	node   *lineage.Node
	keys   *keystore.KeyStore
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, errors.New("no config found in context")
	}
	logger := loggerFromContext(cmd.Context())
	return &session{
		cmd:    cmd,
		cfg:    cfg,
		logger: logger,
		keys: keystore.NewKeyStore(keystore.KeyStoreConfig{
			Dir:     cfg.KeyDir,
			Encrypt: cfg.EncryptKeys,
			Logger:  logger,
		}),
	}, nil
}

// runWithNode opens the node for the duration of fn
func runWithNode(cmd *cobra.Command, fn func(*session) error) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	n, err := node.Open(s.cfg, s.logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	s.node = n
	err = fn(s)
	if stopErr := n.Stop(); stopErr != nil {
		err = errors.Join(err, stopErr)
	}
	return err
}

func (s *session) key(name string) (*keystore.Key, error) {
	if name == "" {
		return nil, errors.New("a signer key is required (--key)")
	}
	return s.keys.Load(name)
}

func (s *session) deadline() (uint64, error) {
	ttl, err := s.cfg.SignatureTTLDuration()
	if err != nil {
		return 0, err
	}
	// #nosec G115 -- unix time is positive
	return uint64(time.Now().Add(ttl).Unix()), nil
}

// sign produces an authorization by key with its current nonce in v's domain
func (s *session) sign(
	v *typeddata.Verifier,
	key *keystore.Key,
	schema typeddata.Schema,
	msg typeddata.Message,
) (typeddata.Authorization, error) {
	var nonce uint64
	err := s.node.DB().View(func(txn *database.Txn) error {
		var err error
		nonce, err = v.Nonces().Nonce(txn, key.Address)
		return err
	})
	if err != nil {
		return typeddata.Authorization{}, err
	}
	deadline, err := s.deadline()
	if err != nil {
		return typeddata.Authorization{}, err
	}
	return v.Sign(key.PrivateKey, schema, msg, nonce, deadline)
}

func (s *session) printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.cmd.OutOrStdout(), string(out))
	return err
}

type accountRefKind int

const (
	accountRefID accountRefKind = iota
	accountRefAddress
	accountRefUsername
)

// parseAccountRef classifies an account reference. Digits are an ID, a 0x
// value is an address and anything else is a username. A leading '@'
// always selects a username, which makes all-digit usernames reachable
func parseAccountRef(ref string) (accountRefKind, string, error) {
	switch {
	case ref == "":
		return 0, "", errors.New("account reference is required")
	case strings.HasPrefix(ref, "@"):
		name := strings.TrimPrefix(ref, "@")
		if name == "" {
			return 0, "", fmt.Errorf("empty username in %q", ref)
		}
		return accountRefUsername, name, nil
	case common.IsHexAddress(ref):
		return accountRefAddress, ref, nil
	}
	if _, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return accountRefID, ref, nil
	}
	return accountRefUsername, ref, nil
}

// resolveAccount accepts an account ID, a 0x address, a username or an
// @-prefixed username
func (s *session) resolveAccount(ref string) (uint64, error) {
	kind, value, err := parseAccountRef(ref)
	if err != nil {
		return 0, err
	}
	reg := s.node.Registry()
	var id uint64
	switch kind {
	case accountRefID:
		return strconv.ParseUint(value, 10, 64)
	case accountRefAddress:
		id, err = reg.IDOf(common.HexToAddress(value))
	case accountRefUsername:
		id, err = reg.IDByUsername(value)
	}
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("no account for %q", ref)
	}
	return id, nil
}

func parseAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid 32-byte hex value: %q", s)
	}
	return common.BytesToHash(b), nil
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid number: %q", s)
	}
	return v, nil
}
