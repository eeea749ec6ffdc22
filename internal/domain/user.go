package domain

import "time"

// Profile holds the quota-relevant slice of a user account. Identity issuance
// lives behind the auth boundary; this service only reads the flag.
type Profile struct {
	ID          string
	Email       string
	DisplayName string
	IsDevMode   bool
	CreatedAt   time.Time
}

// UnlimitedRemaining is the sentinel used for dev-mode accounts, which have no
// generation cap.
const UnlimitedRemaining = -1

// GenerationLimit is the quota snapshot returned by the quota guard.
type GenerationLimit struct {
	Limit       int  `json:"limit"`
	Used        int  `json:"used"`
	Remaining   int  `json:"remaining"`
	IsDevMode   bool `json:"isDevMode"`
	CanGenerate bool `json:"canGenerate"`
}
