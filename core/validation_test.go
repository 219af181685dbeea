package core

import (
	"errors"
	"testing"
)

func TestValidateQuestion(t *testing.T) {
	tests := []struct {
		name     string
		question string
		wantErr  error
	}{
		{name: "plain question", question: "What is force majeure?", wantErr: nil},
		{name: "empty", question: "", wantErr: ErrEmptyQuestion},
		{name: "whitespace only", question: " \t\n ", wantErr: ErrEmptyQuestion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuestion(tt.question)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateQuestion() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateQuestion() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ValidateQuestion() error should wrap ErrValidation")
			}
		})
	}
}

func TestValidateLimit(t *testing.T) {
	if err := ValidateLimit(1); err != nil {
		t.Errorf("ValidateLimit(1) unexpected error = %v", err)
	}
	for _, limit := range []int{0, -5} {
		err := ValidateLimit(limit)
		if !errors.Is(err, ErrInvalidLimit) || !errors.Is(err, ErrValidation) {
			t.Errorf("ValidateLimit(%d) error = %v, want ErrInvalidLimit", limit, err)
		}
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     *Message
		wantErr error
	}{
		{
			name:    "valid user message",
			msg:     &Message{SessionId: "s1", Role: RoleUser, Content: "hi"},
			wantErr: nil,
		},
		{
			name:    "valid assistant message with ID 0",
			msg:     &Message{Id: 0, SessionId: "s1", Role: RoleAssistant, Content: "hello", Cached: true},
			wantErr: nil,
		},
		{
			name:    "nil message",
			msg:     nil,
			wantErr: ErrValidation,
		},
		{
			name:    "missing session",
			msg:     &Message{Role: RoleUser, Content: "hi"},
			wantErr: ErrEmptySessionID,
		},
		{
			name:    "invalid role",
			msg:     &Message{SessionId: "s1", Role: Role(9), Content: "hi"},
			wantErr: ErrInvalidRole,
		},
		{
			name:    "empty content",
			msg:     &Message{SessionId: "s1", Role: RoleUser},
			wantErr: ErrEmptyContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.msg)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateMessage() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateMessage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEvidence(t *testing.T) {
	if err := ValidateEvidence(&Evidence{MessageId: 7, DocumentId: 0}); err != nil {
		t.Errorf("evidence without document should be valid, got %v", err)
	}
	if err := ValidateEvidence(&Evidence{DocumentId: 3}); !errors.Is(err, ErrMissingMessageID) {
		t.Errorf("expected ErrMissingMessageID, got %v", err)
	}
	if err := ValidateEvidence(nil); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for nil evidence, got %v", err)
	}
}

func TestValidateDocument(t *testing.T) {
	if err := ValidateDocument(&Document{Title: "Contract Law"}); err != nil {
		t.Errorf("unexpected error = %v", err)
	}
	if err := ValidateDocument(&Document{Title: "  "}); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("expected ErrEmptyTitle, got %v", err)
	}
}
