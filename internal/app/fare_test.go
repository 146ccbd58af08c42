package app

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/suba/wallet-service/internal/domain"
)

func TestComputeFare(t *testing.T) {
	asOf := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
	youngBirth := time.Date(1995, time.June, 1, 0, 0, 0, 0, time.UTC)
	seniorBirth := time.Date(1960, time.January, 15, 0, 0, 0, 0, time.UTC)
	// Turns 60 the day after boarding.
	almostSeniorBirth := time.Date(1966, time.September, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		baseFare     int64
		birthDate    *time.Time
		isStudent    bool
		profile      *domain.DiscountProfile
		wantFare     int64
		wantDiscount int64
		wantType     domain.FareType
	}{
		{
			name:     "general fare with no discounts",
			baseFare: 3500, birthDate: &youngBirth,
			wantFare: 3500, wantDiscount: 0, wantType: domain.FareGeneral,
		},
		{
			name:     "student pays half",
			baseFare: 3500, birthDate: &youngBirth, isStudent: true,
			wantFare: 1750, wantDiscount: 1750, wantType: domain.FareStudent,
		},
		{
			name:     "senior pays half at age 60",
			baseFare: 3500, birthDate: &seniorBirth,
			wantFare: 1750, wantDiscount: 1750, wantType: domain.FareSenior,
		},
		{
			name:     "not senior until the birthday",
			baseFare: 3500, birthDate: &almostSeniorBirth,
			wantFare: 3500, wantDiscount: 0, wantType: domain.FareGeneral,
		},
		{
			name:     "senior beats student flag",
			baseFare: 3500, birthDate: &seniorBirth, isStudent: true,
			wantFare: 1750, wantDiscount: 1750, wantType: domain.FareSenior,
		},
		{
			name:     "approved profile beats senior",
			baseFare: 3500, birthDate: &seniorBirth,
			profile: &domain.DiscountProfile{
				Status: domain.ValidationApproved, DiscountPercent: 75,
			},
			wantFare: 875, wantDiscount: 2625, wantType: domain.FareSubsidized,
		},
		{
			name:     "pending profile does not apply",
			baseFare: 3500, birthDate: &youngBirth,
			profile: &domain.DiscountProfile{
				Status: domain.ValidationPending, DiscountPercent: 75,
			},
			wantFare: 3500, wantDiscount: 0, wantType: domain.FareGeneral,
		},
		{
			name:     "full subsidy floors at zero",
			baseFare: 3500, birthDate: &youngBirth,
			profile: &domain.DiscountProfile{
				Status: domain.ValidationApproved, DiscountPercent: 100,
			},
			wantFare: 0, wantDiscount: 3500, wantType: domain.FareSubsidized,
		},
		{
			name:     "odd base fare rounds half up",
			baseFare: 3501, birthDate: &youngBirth, isStudent: true,
			wantFare: 1750, wantDiscount: 1751, wantType: domain.FareStudent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passenger := &domain.PassengerAccount{
				ID:        uuid.New(),
				IsStudent: tt.isStudent,
				KYC:       domain.KYCProfile{BirthDate: tt.birthDate},
			}
			quote := ComputeFare(tt.baseFare, passenger, tt.profile, asOf)
			if quote.FinalFare != tt.wantFare {
				t.Errorf("FinalFare = %d, want %d", quote.FinalFare, tt.wantFare)
			}
			if quote.DiscountApplied != tt.wantDiscount {
				t.Errorf("DiscountApplied = %d, want %d", quote.DiscountApplied, tt.wantDiscount)
			}
			if quote.FareType != tt.wantType {
				t.Errorf("FareType = %s, want %s", quote.FareType, tt.wantType)
			}
			if quote.OriginalFare != tt.baseFare {
				t.Errorf("OriginalFare = %d, want %d", quote.OriginalFare, tt.baseFare)
			}
			if quote.FinalFare+quote.DiscountApplied != quote.OriginalFare {
				t.Errorf("fare %d + discount %d != original %d", quote.FinalFare, quote.DiscountApplied, quote.OriginalFare)
			}
		})
	}
}
