// Package services defines the business logic for bookings, confirmation,
// and the commission ledger. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing chat messages is performed at the bot
// transport layer, and into HTTP results at the ops API handlers.
package services

import "errors"

var (
	// ErrApartmentNotFound indicates that the referenced listing does not exist.
	ErrApartmentNotFound = errors.New("apartment not found")

	// ErrBookingNotFound indicates that the referenced booking code is unknown.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrUnavailable is returned when the apartment is not bookable at request
	// time, either because it is flagged unavailable or because the requested
	// dates overlap an existing stay.
	ErrUnavailable = errors.New("apartment unavailable")

	// ErrInvalidPin is returned when owner PIN verification fails. It
	// deliberately covers wrong, expired, and already-used PINs uniformly so
	// the response never leaks which check failed.
	ErrInvalidPin = errors.New("invalid or expired pin")

	// ErrInvalidState is returned when an operation is attempted from a
	// lifecycle state that forbids it, e.g. cancelling a confirmed booking or
	// confirming a cancelled one.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrInvalidDates is returned when a requested stay has a non-positive
	// length or a check-in in the past.
	ErrInvalidDates = errors.New("invalid stay dates")

	// ErrCommissionMismatch is returned when the ledger's independently
	// recomputed commission disagrees with the amount stored on the booking.
	ErrCommissionMismatch = errors.New("commission amount mismatch")
)
