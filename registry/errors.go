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

package registry

import "errors"

var (
	ErrCustodyAlreadyRegistered    = errors.New("custody address already has an account")
	ErrOperatorAlreadyRegistered   = errors.New("operator address already has an account")
	ErrOperatorCannotBeCustody     = errors.New("operator cannot be the custody address")
	ErrAddressAlreadyRegistered    = errors.New("address already has an account")
	ErrInvalidAddress              = errors.New("invalid address")
	ErrUsernameTooShort            = errors.New("username too short")
	ErrUsernameTooLong             = errors.New("username too long")
	ErrUsernameContainsInvalidChar = errors.New("username contains invalid character")
	ErrUsernameAlreadyRegistered   = errors.New("username already registered")
	ErrUnauthorized                = errors.New("caller is not the custody address")
	ErrNotRecovery                 = errors.New("caller is not the recovery address")
	ErrAccountNotFound             = errors.New("account not found")
	ErrHasNoID                     = errors.New("address has no account")
	ErrSameAccount                 = errors.New("source and destination account are the same")
	ErrBootstrapUnavailable        = errors.New("delegation bootstrap is not configured")
)
