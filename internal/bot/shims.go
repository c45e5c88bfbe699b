package bot

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/shortletng/shortlet-bot/internal/domain"
	"github.com/shortletng/shortlet-bot/internal/repo"
	"github.com/shortletng/shortlet-bot/internal/services"
)

// bookingRepoShim adapts the repository free functions to the
// services.BookingRepo interface. This keeps services decoupled from the
// concrete repo package while reusing existing functions.
type bookingRepoShim struct{}

// Create proxies repo.CreateBooking.
func (bookingRepoShim) Create(ctx context.Context, db *gorm.DB, b *domain.Booking) error {
	return repo.CreateBooking(ctx, db, b)
}

// GetByCode proxies repo.GetBookingByCode.
func (bookingRepoShim) GetByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Booking, error) {
	return repo.GetBookingByCode(ctx, db, code)
}

// SetTenantConfirmed proxies repo.SetTenantConfirmed.
func (bookingRepoShim) SetTenantConfirmed(ctx context.Context, db *gorm.DB, code string, now time.Time) (bool, error) {
	return repo.SetTenantConfirmed(ctx, db, code, now)
}

// ClaimOwnerPIN proxies repo.ClaimOwnerPIN.
func (bookingRepoShim) ClaimOwnerPIN(ctx context.Context, db *gorm.DB, code, submittedPIN string, now time.Time) (bool, error) {
	return repo.ClaimOwnerPIN(ctx, db, code, submittedPIN, now)
}

// ClaimDualConfirmation proxies repo.ClaimDualConfirmation.
func (bookingRepoShim) ClaimDualConfirmation(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	return repo.ClaimDualConfirmation(ctx, db, code)
}

// MarkCommissionPaid proxies repo.MarkCommissionPaid.
func (bookingRepoShim) MarkCommissionPaid(ctx context.Context, db *gorm.DB, code string, now time.Time) (bool, error) {
	return repo.MarkCommissionPaid(ctx, db, code, now)
}

// Cancel proxies repo.CancelBooking.
func (bookingRepoShim) Cancel(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	return repo.CancelBooking(ctx, db, code)
}

// HasOverlap proxies repo.HasOverlap.
func (bookingRepoShim) HasOverlap(ctx context.Context, db *gorm.DB, apartmentID string, checkIn, checkOut time.Time) (bool, error) {
	return repo.HasOverlap(ctx, db, apartmentID, checkIn, checkOut)
}

// apartmentRepoShim adapts apartment lookups to services.ApartmentRepo.
type apartmentRepoShim struct{}

// Get proxies repo.GetApartment.
func (apartmentRepoShim) Get(ctx context.Context, db *gorm.DB, id string) (*domain.Apartment, error) {
	return repo.GetApartment(ctx, db, id)
}

// ledgerRepoShim adapts ledger functions to services.LedgerRepo.
type ledgerRepoShim struct{}

// Create proxies repo.CreateCommissionEntry.
func (ledgerRepoShim) Create(ctx context.Context, db *gorm.DB, e *domain.CommissionEntry) error {
	return repo.CreateCommissionEntry(ctx, db, e)
}

// MarkPaid proxies repo.MarkCommissionEntryPaid.
func (ledgerRepoShim) MarkPaid(ctx context.Context, db *gorm.DB, bookingCode string, now time.Time) (bool, error) {
	return repo.MarkCommissionEntryPaid(ctx, db, bookingCode, now)
}

// Report proxies repo.CommissionReport.
func (ledgerRepoShim) Report(ctx context.Context, db *gorm.DB, ownerID string) ([]repo.OwnerCommissionTotals, error) {
	return repo.CommissionReport(ctx, db, ownerID)
}

// NewServices wires the booking and ledger services over the concrete
// repository functions. The caller supplies the notifier so transports and
// tests can substitute their own.
func NewServices(db *gorm.DB, n services.Notifier) (*services.BookingService, *services.LedgerService) {
	ledger := &services.LedgerService{
		DB:   db,
		Repo: ledgerRepoShim{},
		OwnerOf: func(ctx context.Context, apartmentID string) (string, error) {
			apt, err := repo.GetApartment(ctx, db, apartmentID)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return "", repo.ErrNotFound
				}
				return "", err
			}
			if apt.OwnerID == nil {
				return "", nil
			}
			return *apt.OwnerID, nil
		},
	}
	bookings := services.NewBookingService(db, bookingRepoShim{}, apartmentRepoShim{}, ledger, n)
	return bookings, ledger
}
