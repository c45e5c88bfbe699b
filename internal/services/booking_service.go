// Package services – BookingService
//
// This file implements the BookingService, the single owner of booking
// state transitions: creation, tenant payment confirmation, PIN-gated owner
// confirmation, the one-shot dual-confirmation trigger, commission
// settlement, and cancellation. Every transport-facing handler calls into
// this service rather than deriving storage logic locally.
//
// The access PIN is disclosed only through the tenant-facing notification.
// Owner- and admin-facing messages state that a PIN exists and must be
// obtained from the tenant; no code path here formats the PIN into any
// other surface, and the PIN is never logged.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// booking codes and apartment identifiers, never PINs.
package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shortletng/shortlet-bot/internal/domain"
	"github.com/shortletng/shortlet-bot/internal/pin"
	"github.com/shortletng/shortlet-bot/internal/repo"
)

// CommissionRate is the platform's fixed cut of every booking: 10% of the
// rent amount, owed by the owner upon dual confirmation.
var CommissionRate = decimal.New(10, -2)

// DefaultPINTTL is how long an access PIN stays verifiable after creation.
const DefaultPINTTL = 48 * time.Hour

// bookingCodePrefix prefixes every human-shareable booking code.
const bookingCodePrefix = "ABJ-"

// BookingRepo defines the repository contract required by BookingService.
// The claim methods report via their boolean result whether this call won
// the transition; implementations must perform them as single conditional
// updates at the storage layer.
type BookingRepo interface {
	// Create inserts a booking row; a code collision returns repo.ErrConflict.
	Create(ctx context.Context, db *gorm.DB, b *domain.Booking) error

	// GetByCode fetches a booking by shareable code.
	GetByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Booking, error)

	// SetTenantConfirmed idempotently records the tenant's payment attestation.
	SetTenantConfirmed(ctx context.Context, db *gorm.DB, code string, now time.Time) (bool, error)

	// ClaimOwnerPIN atomically verifies the PIN and flips pin_used together
	// with property_owner_confirmed.
	ClaimOwnerPIN(ctx context.Context, db *gorm.DB, code, submittedPIN string, now time.Time) (bool, error)

	// ClaimDualConfirmation claims the one-shot both-confirmed transition.
	ClaimDualConfirmation(ctx context.Context, db *gorm.DB, code string) (bool, error)

	// MarkCommissionPaid records commission receipt after dual confirmation.
	MarkCommissionPaid(ctx context.Context, db *gorm.DB, code string, now time.Time) (bool, error)

	// Cancel moves a pending booking to cancelled.
	Cancel(ctx context.Context, db *gorm.DB, code string) (bool, error)

	// HasOverlap reports a date-range conflict with existing stays.
	HasOverlap(ctx context.Context, db *gorm.DB, apartmentID string, checkIn, checkOut time.Time) (bool, error)
}

// ApartmentRepo is the listing lookup contract required by BookingService.
type ApartmentRepo interface {
	Get(ctx context.Context, db *gorm.DB, id string) (*domain.Apartment, error)
}

// Notifier receives lifecycle events for role-targeted delivery. All
// methods are fire-and-forget: implementations must swallow and log
// delivery failures instead of propagating them, so a failed notification
// can never roll back the state transition that triggered it.
type Notifier interface {
	// BookingCreated fans out to tenant (with PIN), owner, and admin.
	BookingCreated(ctx context.Context, b *domain.Booking, apt *domain.Apartment)
	// TenantPaymentRecorded acknowledges the tenant's confirmation.
	TenantPaymentRecorded(ctx context.Context, b *domain.Booking)
	// OwnerConfirmed acknowledges PIN verification, with commission reminder.
	OwnerConfirmed(ctx context.Context, b *domain.Booking)
	// CommissionReady tells the admin the commission is due for collection.
	CommissionReady(ctx context.Context, b *domain.Booking)
	// StayConfirmed tells the tenant the stay is locked in.
	StayConfirmed(ctx context.Context, b *domain.Booking)
	// CommissionReceived tells the owner their commission payment landed.
	CommissionReceived(ctx context.Context, b *domain.Booking)
}

// BookingService coordinates the booking lifecycle. It enforces the
// confirmation protocol's invariants and triggers ledger tracking and
// notifications on state transitions.
type BookingService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Bookings is the booking repository used by this service.
	Bookings BookingRepo
	// Apartments resolves listings at booking time.
	Apartments ApartmentRepo
	// Ledger tracks commission entries; may be nil in tests.
	Ledger *LedgerService
	// Notify dispatches role-targeted lifecycle messages.
	Notify Notifier

	// PINTTL overrides DefaultPINTTL when positive.
	PINTTL time.Duration

	// Now is a clock seam for tests; defaults to time.Now.
	Now func() time.Time
}

// NewBookingService constructs a BookingService with default PIN TTL.
func NewBookingService(db *gorm.DB, bookings BookingRepo, apartments ApartmentRepo, ledger *LedgerService, n Notifier) *BookingService {
	return &BookingService{
		DB:         db,
		Bookings:   bookings,
		Apartments: apartments,
		Ledger:     ledger,
		Notify:     n,
		PINTTL:     DefaultPINTTL,
	}
}

// Create books an apartment for a tenant. It validates availability and the
// requested stay, computes the rent and the 10% commission with decimal
// arithmetic, issues the booking code and access PIN, and persists the
// booking as pending. On a booking-code collision it retries once with a
// freshly generated code before surfacing the failure.
func (s *BookingService) Create(ctx context.Context, tenantID, apartmentID string, checkIn, checkOut time.Time) (*domain.Booking, error) {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("apartment.id", apartmentID),
			attribute.String("tenant.id", tenantID),
		),
	)
	defer span.End()

	if !checkOut.After(checkIn) {
		return nil, ErrInvalidDates
	}

	apt, err := s.Apartments.Get(ctx, s.DB, apartmentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrApartmentNotFound
		}
		return nil, err
	}
	if !apt.Available {
		return nil, ErrUnavailable
	}
	if conflict, err := s.Bookings.HasOverlap(ctx, s.DB, apartmentID, checkIn, checkOut); err != nil {
		return nil, err
	} else if conflict {
		return nil, ErrUnavailable
	}

	now := s.nowUTC()
	nights := stayNights(checkIn, checkOut)
	amount := apt.PricePerNight.Mul(decimal.NewFromInt(nights))
	commission := amount.Mul(CommissionRate)

	b := &domain.Booking{
		ID:           uuid.NewString(),
		Code:         newBookingCode(),
		ApartmentID:  apt.ID,
		TenantID:     tenantID,
		CheckIn:      checkIn,
		CheckOut:     checkOut,
		Amount:       amount,
		Commission:   commission,
		Status:       domain.BookingStatusPending,
		AccessPIN:    pin.Generate(),
		PINExpiresAt: now.Add(s.pinTTL()),
		CreatedAt:    now,
	}

	if err := s.Bookings.Create(ctx, s.DB, b); err != nil {
		if !errors.Is(err, repo.ErrConflict) {
			return nil, err
		}
		// One bounded retry with a fresh code.
		b.Code = newBookingCode()
		if err := s.Bookings.Create(ctx, s.DB, b); err != nil {
			return nil, err
		}
	}

	span.SetAttributes(attribute.String("booking.code", b.Code))
	s.Notify.BookingCreated(ctx, b, apt)
	return b, nil
}

// ConfirmByTenant records the tenant's attestation that payment was made.
// Repeated calls are no-ops: the flag stays true and no duplicate
// notifications are sent.
func (s *BookingService) ConfirmByTenant(ctx context.Context, code string) error {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "ConfirmByTenant",
		trace.WithAttributes(attribute.String("booking.code", code)),
	)
	defer span.End()

	b, err := s.getBooking(ctx, code)
	if err != nil {
		return err
	}
	if b.Status == domain.BookingStatusCancelled || b.Status == domain.BookingStatusCompleted {
		return ErrInvalidState
	}

	claimed, err := s.Bookings.SetTenantConfirmed(ctx, s.DB, code, s.nowUTC())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrBookingNotFound
		}
		return err
	}
	if !claimed {
		return nil // already confirmed; idempotent
	}

	b.TenantConfirmed = true
	s.Notify.TenantPaymentRecorded(ctx, b)
	return s.evaluateDualConfirmation(ctx, code)
}

// VerifyAndConfirmByOwner verifies the PIN the owner obtained from the
// tenant and, on success, marks the owner confirmed. Verification and the
// pin_used flip happen in one conditional update, so two concurrent
// submissions cannot both succeed. Wrong, expired, and already-used PINs
// all fail with the same ErrInvalidPin.
func (s *BookingService) VerifyAndConfirmByOwner(ctx context.Context, code, submittedPIN string) error {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "VerifyAndConfirmByOwner",
		trace.WithAttributes(attribute.String("booking.code", code)),
	)
	defer span.End()

	if !pin.IsValidFormat(submittedPIN) {
		return ErrInvalidPin
	}

	b, err := s.getBooking(ctx, code)
	if err != nil {
		return err
	}
	if b.Status == domain.BookingStatusCancelled || b.Status == domain.BookingStatusCompleted {
		return ErrInvalidState
	}

	claimed, err := s.Bookings.ClaimOwnerPIN(ctx, s.DB, code, submittedPIN, s.nowUTC())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrBookingNotFound
		}
		return err
	}
	if !claimed {
		return ErrInvalidPin
	}

	b.OwnerConfirmed = true
	b.PINUsed = true
	s.Notify.OwnerConfirmed(ctx, b)
	return s.evaluateDualConfirmation(ctx, code)
}

// MarkCommissionPaid settles the platform's cut after dual confirmation.
// Replays on an already-settled booking are no-ops.
func (s *BookingService) MarkCommissionPaid(ctx context.Context, code string) error {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "MarkCommissionPaid",
		trace.WithAttributes(attribute.String("booking.code", code)),
	)
	defer span.End()

	now := s.nowUTC()
	claimed, err := s.Bookings.MarkCommissionPaid(ctx, s.DB, code, now)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrBookingNotFound
		}
		return err
	}
	if !claimed {
		b, err := s.getBooking(ctx, code)
		if err != nil {
			return err
		}
		if b.CommissionPaid {
			return nil // already settled; idempotent
		}
		return ErrInvalidState // commission not yet due
	}

	b, err := s.getBooking(ctx, code)
	if err != nil {
		return err
	}

	if s.Ledger != nil {
		lerr := s.Ledger.MarkPaid(ctx, code, now)
		if errors.Is(lerr, repo.ErrNotFound) {
			// The entry was never tracked; backfill it as settled.
			lerr = s.Ledger.TrackPaid(ctx, b, now)
		}
		if lerr != nil {
			log.Error().Err(lerr).Str("booking_code", code).Msg("ledger settle failed")
		}
	}

	s.Notify.CommissionReceived(ctx, b)
	return nil
}

// Cancel aborts a booking that is still pending. Once confirmed or
// completed, cancellation is refused with ErrInvalidState.
func (s *BookingService) Cancel(ctx context.Context, code string) error {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "Cancel",
		trace.WithAttributes(attribute.String("booking.code", code)),
	)
	defer span.End()

	claimed, err := s.Bookings.Cancel(ctx, s.DB, code)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrBookingNotFound
		}
		return err
	}
	if !claimed {
		return ErrInvalidState
	}
	return nil
}

// Get returns a booking by its shareable code.
func (s *BookingService) Get(ctx context.Context, code string) (*domain.Booking, error) {
	return s.getBooking(ctx, code)
}

// evaluateDualConfirmation claims the both-confirmed transition and, only
// when this call wins the claim, tracks the commission in the ledger and
// dispatches the one-shot CommissionReady and StayConfirmed notifications.
// Duplicate confirmation deliveries therefore cannot re-ping the admin.
func (s *BookingService) evaluateDualConfirmation(ctx context.Context, code string) error {
	claimed, err := s.Bookings.ClaimDualConfirmation(ctx, s.DB, code)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	b, err := s.getBooking(ctx, code)
	if err != nil {
		return err
	}

	if s.Ledger != nil {
		if err := s.Ledger.Track(ctx, b); err != nil {
			// The confirmation itself stands; the ledger drift is operator-visible.
			log.Error().Err(err).Str("booking_code", code).Msg("commission tracking failed")
		}
	}

	s.Notify.CommissionReady(ctx, b)
	s.Notify.StayConfirmed(ctx, b)
	return nil
}

// getBooking maps repo.ErrNotFound to the service-level sentinel.
func (s *BookingService) getBooking(ctx context.Context, code string) (*domain.Booking, error) {
	b, err := s.Bookings.GetByCode(ctx, s.DB, code)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *BookingService) pinTTL() time.Duration {
	if s.PINTTL > 0 {
		return s.PINTTL
	}
	return DefaultPINTTL
}

func (s *BookingService) nowUTC() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// stayNights counts billable nights; partial days round up and a same-day
// stay bills one night.
func stayNights(checkIn, checkOut time.Time) int64 {
	h := checkOut.Sub(checkIn).Hours()
	nights := int64(h / 24)
	if float64(nights*24) < h {
		nights++
	}
	if nights < 1 {
		nights = 1
	}
	return nights
}

// newBookingCode returns a human-shareable code: "ABJ-" plus eight random
// digits. Uniqueness is enforced by the store, not here; Create retries on
// conflict.
func newBookingCode() string {
	return fmt.Sprintf("%s%08d", bookingCodePrefix, rand.IntN(100_000_000))
}
