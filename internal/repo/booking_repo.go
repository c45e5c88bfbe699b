// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Booking
// model, including the conditional updates that carry the confirmation
// protocol's atomicity guarantees.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and single-statement check-and-set updates.
//
// Error semantics:
//   - When a booking is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - A UNIQUE violation on the booking code surfaces as ErrConflict so the
//     caller can retry with a freshly generated code.
//   - The claim functions (SetTenantConfirmed, ClaimOwnerPIN,
//     ClaimDualConfirmation, MarkCommissionPaid, CancelBooking) report
//     whether this call won the transition via their boolean result; losing
//     a race is not an error at this layer.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shortletng/shortlet-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and transport handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrConflict indicates a UNIQUE constraint violation, e.g. a booking-code
// collision on insert.
var ErrConflict = errors.New("conflict")

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations,
// so the message is sniffed in addition to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// CreateBooking inserts the booking row. The caller is responsible for
// populating identity, financials, and PIN state. A code collision maps to
// ErrConflict.
func CreateBooking(ctx context.Context, db *gorm.DB, b *domain.Booking) error {
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetBookingByCode fetches a booking by its shareable code, or ErrNotFound.
func GetBookingByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Booking, error) {
	var b domain.Booking
	err := db.WithContext(ctx).Where("code = ?", code).First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SetTenantConfirmed marks the tenant's payment attestation. The update is
// conditional on tenant_confirmed still being false and the booking still
// being pending, so repeated calls and confirmations racing a cancel are
// no-ops; claimed reports whether this call performed the transition.
// Returns ErrNotFound when the code is unknown.
func SetTenantConfirmed(ctx context.Context, db *gorm.DB, code string, now time.Time) (claimed bool, err error) {
	res := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("code = ? AND tenant_confirmed = ? AND status = ?", code, false, domain.BookingStatusPending).
		Updates(map[string]any{
			"tenant_confirmed":    true,
			"tenant_confirmed_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	return false, existsErr(ctx, db, code)
}

// ClaimOwnerPIN performs the owner's PIN verification as a single
// check-and-set: pin_used and property_owner_confirmed flip together only
// when the submitted PIN matches, has not been used, and has not expired.
// Two concurrent submissions cannot both claim the row. The status guard
// keeps a cancel racing a PIN submission from confirming a dead booking.
//
// claimed=false with a nil error means the precondition failed (wrong,
// used, or expired PIN, or a booking no longer pending); the caller must
// not distinguish which.
func ClaimOwnerPIN(ctx context.Context, db *gorm.DB, code, submittedPIN string, now time.Time) (claimed bool, err error) {
	res := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("code = ? AND access_pin = ? AND pin_used = ? AND pin_expires_at > ? AND status = ?",
			code, submittedPIN, false, now, domain.BookingStatusPending).
		Updates(map[string]any{
			"pin_used":                    true,
			"property_owner_confirmed":    true,
			"property_owner_confirmed_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	return false, existsErr(ctx, db, code)
}

// ClaimDualConfirmation atomically claims the one-shot dual-confirmation
// transition: it succeeds only when both parties have confirmed, the
// booking is still pending, and no earlier call has claimed it. The
// winning call also moves the booking's status from pending to confirmed.
func ClaimDualConfirmation(ctx context.Context, db *gorm.DB, code string) (claimed bool, err error) {
	res := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("code = ? AND tenant_confirmed = ? AND property_owner_confirmed = ? AND dual_confirmation_notified = ? AND status = ?",
			code, true, true, false, domain.BookingStatusPending).
		Updates(map[string]any{
			"dual_confirmation_notified": true,
			"status":                     domain.BookingStatusConfirmed,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkCommissionPaid records the operator's receipt of the commission.
// Conditional on dual confirmation having been observed and the commission
// not already settled.
func MarkCommissionPaid(ctx context.Context, db *gorm.DB, code string, now time.Time) (claimed bool, err error) {
	res := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("code = ? AND tenant_confirmed = ? AND property_owner_confirmed = ? AND commission_paid = ?",
			code, true, true, false).
		Updates(map[string]any{
			"commission_paid":    true,
			"commission_paid_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	return false, existsErr(ctx, db, code)
}

// CancelBooking moves a pending booking to cancelled. claimed=false with a
// nil error means the booking exists but is no longer cancellable.
func CancelBooking(ctx context.Context, db *gorm.DB, code string) (claimed bool, err error) {
	res := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("code = ? AND status = ?", code, domain.BookingStatusPending).
		Update("status", domain.BookingStatusCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	return false, existsErr(ctx, db, code)
}

// HasOverlap reports whether the apartment already has a pending or
// confirmed booking whose stay overlaps [checkIn, checkOut).
func HasOverlap(ctx context.Context, db *gorm.DB, apartmentID string, checkIn, checkOut time.Time) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("apartment_id = ? AND status IN ? AND check_in < ? AND check_out > ?",
			apartmentID,
			[]string{domain.BookingStatusPending, domain.BookingStatusConfirmed},
			checkOut, checkIn).
		Count(&n).Error
	return n > 0, err
}

// ListBookingsByTenant returns a tenant's bookings, most recent first.
func ListBookingsByTenant(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.Booking, error) {
	var out []domain.Booking
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// existsErr distinguishes "row missing" from "condition not met" after a
// zero-row conditional update.
func existsErr(ctx context.Context, db *gorm.DB, code string) error {
	var n int64
	if err := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("code = ?", code).
		Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
