// Copyright 2025 Poiesic Systems
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


package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable covers transport failures, timeouts and cancelled contexts.
	ErrUnavailable = errors.New("generation backend unavailable")

	// ErrBadResponse covers non-2xx statuses and undecodable or incomplete bodies.
	ErrBadResponse = errors.New("generation backend returned a bad response")
)

// Error records the backend operation that failed.
// It unwraps to ErrUnavailable or ErrBadResponse joined with the cause.
type Error struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Unavailable builds an *Error for a transport-level failure.
func Unavailable(op string, cause error) *Error {
	return &Error{Op: op, Err: fmt.Errorf("%w: %w", ErrUnavailable, cause)}
}

// BadResponse builds an *Error for a malformed or rejected response.
func BadResponse(op string, status int, cause error) *Error {
	return &Error{Op: op, StatusCode: status, Err: fmt.Errorf("%w: %w", ErrBadResponse, cause)}
}
