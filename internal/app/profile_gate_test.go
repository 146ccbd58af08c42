package app

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/suba/wallet-service/internal/domain"
)

func TestCheckProfileComplete(t *testing.T) {
	birth := time.Date(1980, time.May, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		kyc         domain.KYCProfile
		wantMissing []string
	}{
		{
			name: "complete profile passes",
			kyc:  domain.KYCProfile{NationalID: "0102030405", BirthDate: &birth, Phone: "+5939"},
		},
		{
			name:        "missing national id",
			kyc:         domain.KYCProfile{BirthDate: &birth, Phone: "+5939"},
			wantMissing: []string{"national_id"},
		},
		{
			name:        "whitespace phone counts as missing",
			kyc:         domain.KYCProfile{NationalID: "0102030405", BirthDate: &birth, Phone: "   "},
			wantMissing: []string{"phone"},
		},
		{
			name:        "everything missing",
			kyc:         domain.KYCProfile{},
			wantMissing: []string{"national_id", "birth_date", "phone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckProfileComplete(tt.kyc)
			if tt.wantMissing == nil {
				if err != nil {
					t.Fatalf("expected nil, got %v", err)
				}
				return
			}
			var gateErr *ProfileIncompleteError
			if !errors.As(err, &gateErr) {
				t.Fatalf("expected *ProfileIncompleteError, got %v", err)
			}
			if !reflect.DeepEqual(gateErr.Missing, tt.wantMissing) {
				t.Errorf("Missing = %v, want %v", gateErr.Missing, tt.wantMissing)
			}
		})
	}
}
