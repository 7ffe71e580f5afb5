// Package common defines the sentinel errors shared by the claim engine and
// a few byte helpers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Lookup errors.
	ErrNotFound = errors.New("not found")

	// Persistence errors. A store that cannot read its file falls back to an
	// empty default and reports ErrConfiguration.
	ErrConfiguration = errors.New("configuration error")

	// Secret errors: corrupt ciphertext or missing key material.
	ErrDecryption = errors.New("decryption error")

	// Account validation.
	ErrInvalidEmail = errors.New("invalid email")

	// Session errors. Expected, recorded per account.
	ErrLoginFailed = errors.New("login failed")

	// Claim errors. Expected, recorded per item.
	ErrClaimFailed     = errors.New("claim failed")
	ErrClaimUnverified = errors.New("claim unverified")

	// The automation collaborator returned an unexpected error or panicked.
	ErrAutomationFault = errors.New("automation fault")

	// An operation was called in a state that does not allow it.
	ErrInvalidState = errors.New("invalid state")
)
