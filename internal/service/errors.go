// Package service implements the points ledger and reward inventory
// business logic on top of the store contracts, serialized by the lock guard.
package service

import "errors"

// Domain validation failures surfaced to the immediate caller. These are
// expected conditions, never absorbed and never fatal.
var (
	ErrUnknownReward       = errors.New("unknown reward")
	ErrDuplicateActive     = errors.New("reward of this kind already active")
	ErrInsufficientBalance = errors.New("insufficient balance")
)
