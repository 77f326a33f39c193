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
	"github.com/ethereum/go-ethereum/common"
)

const (
	RegistryRegisteredEventType          = EventType("registry.registered")
	RegistryTransferEventType            = EventType("registry.transfer")
	RegistryRecoveredEventType           = EventType("registry.recovered")
	RegistryOperatorChangedEventType     = EventType("registry.operator_changed")
	RegistryRecoveryChangedEventType     = EventType("registry.recovery_changed")
	RegistryUsernameChangedEventType     = EventType("registry.username_changed")
	RegistryUsernameTransferredEventType = EventType("registry.username_transferred")
)

// RegisteredEvent is emitted when a new account id is issued
type RegisteredEvent struct {
	Username string
	ID       uint64
	Custody  common.Address
	Operator common.Address
	Recovery common.Address
}

// TransferEvent is emitted when custody of an account moves to a new address,
// including transfers made by the recovery address
type TransferEvent struct {
	ID   uint64
	From common.Address
	To   common.Address
}

// RecoveredEvent is emitted after a recovery, in addition to the TransferEvent
type RecoveredEvent struct {
	ID uint64
	By common.Address
	To common.Address
}

type OperatorChangedEvent struct {
	ID       uint64
	Operator common.Address
}

type RecoveryChangedEvent struct {
	ID       uint64
	Recovery common.Address
}

type UsernameChangedEvent struct {
	Username string
	ID       uint64
}

// UsernameTransferredEvent is emitted when FromID hands its username to ToID
type UsernameTransferredEvent struct {
	Username string
	FromID   uint64
	ToID     uint64
}
