package consent

import (
	"testing"

	"github.com/team089/optimal-cashback/internal/model"
)

func TestState(t *testing.T) {
	bank := model.Bank{ID: 20, Name: "Sbank"}

	tests := []struct {
		name     string
		consents map[int]model.Consent
		want     BankState
	}{
		{
			name:     "no consent record",
			consents: map[int]model.Consent{},
			want:     StateNotApproved,
		},
		{
			name:     "consent not approved",
			consents: map[int]model.Consent{20: {Approved: false}},
			want:     StateNotApproved,
		},
		{
			name:     "consent approved",
			consents: map[int]model.Consent{20: {Approved: true}},
			want:     StateApproved,
		},
		{
			name:     "approved consent of another bank",
			consents: map[int]model.Consent{1: {Approved: true}},
			want:     StateNotApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := State(bank, tt.consents)
			if got != tt.want {
				t.Fatalf("State() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllValid(t *testing.T) {
	sbank := model.Bank{ID: 20, Name: "Sbank"}
	abank := model.Bank{ID: 1, Name: "Abank"}

	tests := []struct {
		name     string
		banks    []model.Bank
		consents map[int]model.Consent
		want     bool
	}{
		{
			name:     "empty bank list is never valid",
			banks:    []model.Bank{},
			consents: map[int]model.Consent{20: {Approved: true}},
			want:     false,
		},
		{
			name:     "all approved",
			banks:    []model.Bank{sbank, abank},
			consents: map[int]model.Consent{20: {Approved: true}, 1: {Approved: true}},
			want:     true,
		},
		{
			name:     "one bank not approved",
			banks:    []model.Bank{sbank, abank},
			consents: map[int]model.Consent{20: {Approved: true}, 1: {Approved: false}},
			want:     false,
		},
		{
			name:     "one bank without record",
			banks:    []model.Bank{sbank, abank},
			consents: map[int]model.Consent{20: {Approved: true}},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AllValid(tt.banks, tt.consents)
			if got != tt.want {
				t.Fatalf("AllValid() = %v, want %v", got, tt.want)
			}

			wantIncomplete := len(tt.banks) > 0 && !tt.want
			if HasIncomplete(tt.banks, tt.consents) != wantIncomplete {
				t.Fatalf("HasIncomplete() = %v, want %v", !wantIncomplete, wantIncomplete)
			}
		})
	}
}
