package app

import (
	"time"

	"github.com/suba/wallet-service/internal/domain"
)

const (
	seniorAgeYears         = 60
	seniorDiscountPercent  = 50
	studentDiscountPercent = 50
)

// ComputeFare derives the fare quote for one boarding. Exactly one discount
// tier applies, in order of precedence: an approved discount profile beats the
// senior tier, which beats the student tier; everything else pays the general
// fare. The final fare never goes below zero.
func ComputeFare(baseFare int64, passenger *domain.PassengerAccount, profile *domain.DiscountProfile, asOf time.Time) domain.FareQuote {
	fareType := domain.FareGeneral
	percent := 0

	switch {
	case profile != nil && profile.Status == domain.ValidationApproved && profile.DiscountPercent > 0:
		fareType = domain.FareSubsidized
		percent = profile.DiscountPercent
	case isSenior(passenger, asOf):
		fareType = domain.FareSenior
		percent = seniorDiscountPercent
	case passenger.IsStudent:
		fareType = domain.FareStudent
		percent = studentDiscountPercent
	}

	if percent > 100 {
		percent = 100
	}

	discount := (baseFare*int64(percent) + 50) / 100
	final := baseFare - discount
	if final < 0 {
		final = 0
		discount = baseFare
	}

	return domain.FareQuote{
		FinalFare:       final,
		OriginalFare:    baseFare,
		DiscountApplied: discount,
		FareType:        fareType,
	}
}

func isSenior(passenger *domain.PassengerAccount, asOf time.Time) bool {
	birth := passenger.KYC.BirthDate
	if birth == nil {
		return false
	}
	years := asOf.Year() - birth.Year()
	anniversary := birth.AddDate(years, 0, 0)
	if anniversary.After(asOf) {
		years--
	}
	return years >= seniorAgeYears
}
