package models

import "errors"

// Booking engine error conditions. Repositories and services return these
// (wrapped with context) so callers can classify with errors.Is.
var (
	// ErrNotFound indicates the referenced tour, payment or guide does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInsufficientCapacity indicates a seat reservation exceeds the
	// tour's remaining capacity, or the tour is not open for booking.
	ErrInsufficientCapacity = errors.New("insufficient capacity")

	// ErrInvalidTransition indicates an illegal payment state change.
	ErrInvalidTransition = errors.New("invalid payment state transition")

	// ErrInvalidRelease indicates a seat release would push available
	// capacity past max capacity. This is a bookkeeping bug upstream,
	// not a user error.
	ErrInvalidRelease = errors.New("release exceeds max capacity")

	// ErrGatewayUnavailable indicates the payment gateway call failed or
	// timed out. Safe to retry; no payment row is left behind.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrBookingRaceLost indicates a payment was confirmed by the gateway
	// but lost the capacity race against competing confirmations. The
	// payment is moved to FAILED and the caller should offer a
	// refund/retry flow.
	ErrBookingRaceLost = errors.New("booking lost capacity race")

	// ErrGuideUnavailable indicates the guide picked by the matcher was
	// bound to an overlapping range by a concurrent request. The matcher
	// falls back to the next candidate or to no guide at all.
	ErrGuideUnavailable = errors.New("guide no longer available")
)
