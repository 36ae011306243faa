package customer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Classification describes how a customer may legally purchase.
type Classification string

const (
	ClassificationAdultUse Classification = "adult-use"
	ClassificationMedical  Classification = "medical"
	ClassificationDual     Classification = "dual"
)

// Valid reports whether the classification is one of the known values.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationAdultUse, ClassificationMedical, ClassificationDual:
		return true
	}
	return false
}

// Identification is the customer's government ID record.
type Identification struct {
	ExpiresAt time.Time `json:"expiresAt"`
	Verified  bool      `json:"verified"`
}

// MedicalCard is the optional medical authorisation record.
type MedicalCard struct {
	ExpiresAt time.Time `json:"expiresAt"`
	Verified  bool      `json:"verified"`
}

// LimitWindow tracks consumed purchase allowance against a jurisdiction
// limit, expressed in the same unit as cart quantities.
type LimitWindow struct {
	Current decimal.Decimal `json:"current"`
	Limit   decimal.Decimal `json:"limit"`
}

// Remaining returns the unconsumed allowance, never negative.
func (w LimitWindow) Remaining() decimal.Decimal {
	remaining := w.Limit.Sub(w.Current)
	if remaining.Sign() < 0 {
		return decimal.Zero
	}
	return remaining
}

// Profile is a read-only customer snapshot supplied by the surrounding
// system. The engine borrows it and never mutates it.
type Profile struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	DateOfBirth    time.Time      `json:"dateOfBirth"`
	Classification Classification `json:"classification"`
	Identification Identification `json:"identification"`
	MedicalCard    *MedicalCard   `json:"medicalCard,omitempty"`
	NewCustomer    bool           `json:"newCustomer"`
	Daily          LimitWindow    `json:"daily"`
	Monthly        LimitWindow    `json:"monthly"`
}

// Age returns the customer's age in whole years at the provided instant.
func (p Profile) Age(now time.Time) int {
	age := now.Year() - p.DateOfBirth.Year()
	if p.DateOfBirth.AddDate(age, 0, 0).After(now) {
		age--
	}
	return age
}
