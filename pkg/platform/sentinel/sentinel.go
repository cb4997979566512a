package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the capacity ledger
// return these (optionally wrapped) so services can translate them into
// domain errors with user-facing codes.
//
// These represent factual states about resources, not validation failures:
//   - ErrNotFound: entity does not exist in the store
//   - ErrConflict: a uniqueness rule rejected the write (duplicate registration)
//   - ErrExpired: promo code outside its validity window
//   - ErrAlreadyUsed: promo code exhausted, registration already checked in
//   - ErrInvalidState: entity in wrong state for the requested transition
//   - ErrUnavailable: lock acquisition timed out; the caller may retry
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
