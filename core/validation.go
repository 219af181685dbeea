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

import (
	"fmt"
	"strings"
)

// ValidateQuestion rejects blank question text.
func ValidateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyQuestion)
	}
	return nil
}

// ValidateLimit rejects non-positive result limits.
func ValidateLimit(limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: %w: got %d", ErrValidation, ErrInvalidLimit, limit)
	}
	return nil
}

// ValidateMessage validates a Message before it is stored.
//
// Validation rules:
//   - SessionId must not be empty
//   - Role must be user or assistant
//   - Content must not be empty
//
// NOT validated:
//   - ID (assigned by the store)
//   - CreatedAt (assigned by the store)
func ValidateMessage(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("%w: message is nil", ErrValidation)
	}
	if msg.SessionId == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptySessionID)
	}
	if err := ValidateRole(msg.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if msg.Content == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyContent)
	}
	return nil
}

// ValidateRole validates that a Role has a known value.
func ValidateRole(role Role) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: value %d", ErrInvalidRole, role)
	}
	return nil
}

// ValidateEvidence checks a piece of evidence before it is stored.
// The referenced document is not required to exist.
func ValidateEvidence(ev *Evidence) error {
	if ev == nil {
		return fmt.Errorf("%w: evidence is nil", ErrValidation)
	}
	if ev.MessageId == 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingMessageID)
	}
	return nil
}

// ValidateDocument validates a Document before registration.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrValidation)
	}
	if strings.TrimSpace(doc.Title) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyTitle)
	}
	return nil
}
