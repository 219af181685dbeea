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


package core

import "errors"

// Validation errors
var (
	// ErrValidation is the umbrella error for rejected caller input.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyQuestion indicates the question text is blank.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrEmptySessionID indicates a session identifier was required but blank.
	ErrEmptySessionID = errors.New("session id cannot be empty")

	// ErrInvalidLimit indicates a non-positive result limit.
	ErrInvalidLimit = errors.New("limit must be greater than 0")

	// ErrInvalidRole indicates an unknown Role value.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidStatus indicates an unknown DocumentStatus value or name.
	ErrInvalidStatus = errors.New("invalid document status")

	// ErrEmptyContent indicates a message has no content.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyTitle indicates a document has no title.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrMissingMessageID indicates evidence not attached to a message.
	ErrMissingMessageID = errors.New("evidence must reference a message")
)
