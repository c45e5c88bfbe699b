// Package services – LedgerService
//
// This file implements the commission ledger: a derived projection that
// records the operator's 10% cut per booking and its settlement status.
// Entries are created once per booking (idempotent on booking code) and
// only ever move pending→paid.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shortletng/shortlet-bot/internal/domain"
	"github.com/shortletng/shortlet-bot/internal/repo"
)

// LedgerRepo defines the repository contract required by LedgerService.
type LedgerRepo interface {
	// Create inserts an entry; repo.ErrConflict means already tracked.
	Create(ctx context.Context, db *gorm.DB, e *domain.CommissionEntry) error

	// MarkPaid transitions pending→paid.
	MarkPaid(ctx context.Context, db *gorm.DB, bookingCode string, now time.Time) (bool, error)

	// Report aggregates totals grouped by owner.
	Report(ctx context.Context, db *gorm.DB, ownerID string) ([]repo.OwnerCommissionTotals, error)
}

// LedgerService owns commission ledger entries and the aggregate report.
type LedgerService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the ledger repository used by this service.
	Repo LedgerRepo

	// OwnerOf resolves an apartment's owner at tracking time; listings
	// without a bound owner produce entries with an empty owner id.
	OwnerOf func(ctx context.Context, apartmentID string) (ownerID string, err error)
}

// Track creates the ledger entry for a dual-confirmed booking. It is
// idempotent on the booking code. The commission is recomputed from the
// booking amount and compared against the booking's stored commission;
// a disagreement returns ErrCommissionMismatch rather than silently
// trusting either source.
func (s *LedgerService) Track(ctx context.Context, b *domain.Booking) error {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "Track",
		trace.WithAttributes(attribute.String("booking.code", b.Code)),
	)
	defer span.End()

	recomputed := b.Amount.Mul(CommissionRate)
	if !recomputed.Equal(b.Commission) {
		return ErrCommissionMismatch
	}

	var ownerID string
	if s.OwnerOf != nil {
		id, err := s.OwnerOf(ctx, b.ApartmentID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		ownerID = id
	}

	e := &domain.CommissionEntry{
		BookingCode:      b.Code,
		OwnerID:          ownerID,
		ApartmentID:      b.ApartmentID,
		AmountPaid:       b.Amount,
		CommissionAmount: b.Commission,
		Status:           domain.CommissionStatusPending,
	}
	if err := s.Repo.Create(ctx, s.DB, e); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil // already tracked
		}
		return err
	}
	return nil
}

// TrackPaid backfills a ledger entry directly in the paid state. Used when
// settlement arrives for a booking whose entry was never created, so the
// ledger still ends up with the paid row.
func (s *LedgerService) TrackPaid(ctx context.Context, b *domain.Booking, now time.Time) error {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "TrackPaid",
		trace.WithAttributes(attribute.String("booking.code", b.Code)),
	)
	defer span.End()

	var ownerID string
	if s.OwnerOf != nil {
		id, err := s.OwnerOf(ctx, b.ApartmentID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		ownerID = id
	}

	e := &domain.CommissionEntry{
		BookingCode:      b.Code,
		OwnerID:          ownerID,
		ApartmentID:      b.ApartmentID,
		AmountPaid:       b.Amount,
		CommissionAmount: b.Commission,
		Status:           domain.CommissionStatusPaid,
		PaidAt:           &now,
	}
	if err := s.Repo.Create(ctx, s.DB, e); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			// Entry appeared concurrently; settle it the normal way.
			_, err := s.Repo.MarkPaid(ctx, s.DB, b.Code, now)
			return err
		}
		return err
	}
	return nil
}

// MarkPaid settles the ledger entry for a booking. Replays are no-ops.
func (s *LedgerService) MarkPaid(ctx context.Context, bookingCode string, now time.Time) error {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "MarkPaid",
		trace.WithAttributes(attribute.String("booking.code", bookingCode)),
	)
	defer span.End()

	_, err := s.Repo.MarkPaid(ctx, s.DB, bookingCode, now)
	return err
}

// Report returns aggregate commission totals grouped by owner. When
// ownerID is non-empty the report is scoped to that owner. An empty ledger
// yields a well-formed empty slice, never an error.
func (s *LedgerService) Report(ctx context.Context, ownerID string) ([]repo.OwnerCommissionTotals, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "Report",
		trace.WithAttributes(attribute.String("owner.id", ownerID)),
	)
	defer span.End()

	return s.Repo.Report(ctx, s.DB, ownerID)
}
