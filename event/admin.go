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

import "github.com/ethereum/go-ethereum/common"

const (
	AdminPausedEventType               = EventType("admin.paused")
	AdminUnpausedEventType             = EventType("admin.unpaused")
	AdminOwnershipTransferredEventType = EventType("admin.ownership_transferred")
)

// PauseEvent is the payload of both the paused and unpaused events
type PauseEvent struct {
	Account common.Address
}

type OwnershipTransferredEvent struct {
	PreviousOwner common.Address
	NewOwner      common.Address
}
