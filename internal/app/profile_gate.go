package app

import (
	"strings"

	"github.com/suba/wallet-service/internal/domain"
)

// ProfileIncompleteError reports which identity fields are missing. Every
// money-movement entry point runs this gate before touching the ledger.
type ProfileIncompleteError struct {
	Missing []string
}

func (e *ProfileIncompleteError) Error() string {
	return "profile incomplete, missing: " + strings.Join(e.Missing, ", ")
}

// CheckProfileComplete returns nil when all required identity fields are set,
// or a *ProfileIncompleteError naming every absent field. Side-effect free.
func CheckProfileComplete(kyc domain.KYCProfile) error {
	var missing []string
	if strings.TrimSpace(kyc.NationalID) == "" {
		missing = append(missing, "national_id")
	}
	if kyc.BirthDate == nil {
		missing = append(missing, "birth_date")
	}
	if strings.TrimSpace(kyc.Phone) == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return &ProfileIncompleteError{Missing: missing}
	}
	return nil
}
