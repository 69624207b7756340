// Package common defines shared constants and sentinel errors used across
// the clinical vault components. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Compliance gate errors. Wrapped with the rule that failed, e.g.
	// fmt.Errorf("%w: missing consent", ErrComplianceViolation).
	ErrComplianceViolation = errors.New("compliance violation")

	// Cryptography errors.
	ErrEncryptionFailure = errors.New("encryption failure")
	ErrDecryptionFailure = errors.New("decryption failure")
	ErrChecksumMismatch  = errors.New("checksum mismatch")

	// Local persistence errors (callers may retry).
	ErrStorageFailure = errors.New("storage failure")

	// Sync errors. Network failures are recorded per note, never fatal
	// to a whole sync cycle.
	ErrNetworkFailure           = errors.New("network failure")
	ErrManualResolutionRequired = errors.New("manual resolution required")
	ErrConflictNotFound         = errors.New("conflict not found")
)
