package auth

import (
	"errors"
	"testing"
)

func TestEvaluatePassword(t *testing.T) {
	tests := []struct {
		name           string
		password       string
		wantErr        error
		wantScore      int
		wantLabel      string
		wantAcceptable bool
	}{
		{
			name:     "Too short is rejected before scoring",
			password: "abc",
			wantErr:  ErrPasswordTooShort,
		},
		{
			name:     "Five characters is still too short",
			password: "Ab1!x",
			wantErr:  ErrPasswordTooShort,
		},
		{
			name:           "Six lowercase letters",
			password:       "abcdef",
			wantScore:      1,
			wantLabel:      "Zayıf",
			wantAcceptable: false,
		},
		{
			name:           "Six uppercase letters",
			password:       "ABCDEF",
			wantScore:      1,
			wantLabel:      "Zayıf",
			wantAcceptable: false,
		},
		{
			name:           "Eight lowercase letters",
			password:       "abcdefgh",
			wantScore:      2,
			wantLabel:      "Orta",
			wantAcceptable: true,
		},
		{
			name:           "Mixed case with digit",
			password:       "Abcde1",
			wantScore:      3,
			wantLabel:      "İyi",
			wantAcceptable: true,
		},
		{
			name:           "All but length",
			password:       "Abc1!x",
			wantScore:      4,
			wantLabel:      "Çok güçlü",
			wantAcceptable: true,
		},
		{
			name:           "All five criteria",
			password:       "Abcdef12!",
			wantScore:      5,
			wantLabel:      "Çok güçlü",
			wantAcceptable: true,
		},
		{
			name:           "Space counts as symbol",
			password:       "abc def",
			wantScore:      2,
			wantLabel:      "Orta",
			wantAcceptable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluatePassword(tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("EvaluatePassword() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if got.Score != tt.wantScore {
				t.Errorf("EvaluatePassword() score = %d, want %d", got.Score, tt.wantScore)
			}
			if got.Label != tt.wantLabel {
				t.Errorf("EvaluatePassword() label = %q, want %q", got.Label, tt.wantLabel)
			}
			if got.Acceptable() != tt.wantAcceptable {
				t.Errorf("Acceptable() = %v, want %v", got.Acceptable(), tt.wantAcceptable)
			}
		})
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"a.b@c.d", true},
		{"user@example", false},
		{"user example@x.com", false},
		{"@example.com", false},
		{"user@@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := ValidEmail(tt.email); got != tt.want {
				t.Errorf("ValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestValidUsernameChars(t *testing.T) {
	tests := []struct {
		username string
		want     bool
	}{
		{"john_doe", true},
		{"User123", true},
		{"john-doe", false},
		{"john.doe", false},
		{"jöhn", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			if got := ValidUsernameChars(tt.username); got != tt.want {
				t.Errorf("ValidUsernameChars(%q) = %v, want %v", tt.username, got, tt.want)
			}
		})
	}
}
