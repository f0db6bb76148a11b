package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateLogin(t *testing.T) {
	tests := []struct {
		name    string
		login   string
		wantErr bool
	}{
		{name: "simple", login: "team089-1", wantErr: false},
		{name: "letters only", login: "alice", wantErr: false},
		{name: "dots and underscores", login: "first.last_01", wantErr: false},
		{name: "empty", login: "", wantErr: true},
		{name: "too long", login: strings.Repeat("a", 65), wantErr: true},
		{name: "max length", login: strings.Repeat("a", 64), wantErr: false},
		{name: "spaces", login: "team 089", wantErr: true},
		{name: "cyrillic", login: "команда", wantErr: true},
		{name: "slash", login: "a/b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLogin(tt.login)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLogin) {
					t.Fatalf("ValidateLogin(%q) = %v, want ErrInvalidLogin", tt.login, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateLogin(%q) = %v, want nil", tt.login, err)
			}
		})
	}
}
