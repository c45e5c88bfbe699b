// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// CommissionEntry ledger projection and its aggregate report queries.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shortletng/shortlet-bot/internal/domain"
)

// CreateCommissionEntry inserts a ledger entry. A duplicate booking code
// maps to ErrConflict, which callers treat as "already tracked".
func CreateCommissionEntry(ctx context.Context, db *gorm.DB, e *domain.CommissionEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetCommissionEntry fetches the ledger entry for a booking code, or
// ErrNotFound.
func GetCommissionEntry(ctx context.Context, db *gorm.DB, bookingCode string) (*domain.CommissionEntry, error) {
	var e domain.CommissionEntry
	if err := db.WithContext(ctx).Where("booking_code = ?", bookingCode).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// MarkCommissionEntryPaid transitions an entry pending→paid. The update is
// conditional so replays are no-ops; claimed reports whether this call
// performed the transition. Returns ErrNotFound for unknown codes.
func MarkCommissionEntryPaid(ctx context.Context, db *gorm.DB, bookingCode string, now time.Time) (claimed bool, err error) {
	res := db.WithContext(ctx).
		Model(&domain.CommissionEntry{}).
		Where("booking_code = ? AND status = ?", bookingCode, domain.CommissionStatusPending).
		Updates(map[string]any{
			"status":  domain.CommissionStatusPaid,
			"paid_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var n int64
	if err := db.WithContext(ctx).
		Model(&domain.CommissionEntry{}).
		Where("booking_code = ?", bookingCode).
		Count(&n).Error; err != nil {
		return false, err
	}
	if n == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// OwnerCommissionTotals is one row of the commission report, aggregated per
// owner.
type OwnerCommissionTotals struct {
	OwnerID          string          `json:"owner_id"`
	Bookings         int64           `json:"bookings"`
	Revenue          decimal.Decimal `json:"revenue"`
	Commission       decimal.Decimal `json:"commission"`
	CommissionPaid   decimal.Decimal `json:"commission_paid"`
	CommissionOwing  decimal.Decimal `json:"commission_owing"`
	EntriesPaidCount int64           `json:"entries_paid"`
}

// CommissionReport aggregates ledger totals grouped by owner. When ownerID
// is non-empty the report is scoped to that owner. An empty ledger yields
// an empty slice, never an error.
func CommissionReport(ctx context.Context, db *gorm.DB, ownerID string) ([]OwnerCommissionTotals, error) {
	q := db.WithContext(ctx).
		Model(&domain.CommissionEntry{}).
		Select(`owner_id,
			COUNT(*) AS bookings,
			SUM(amount_paid) AS revenue,
			SUM(commission_amount) AS commission,
			SUM(CASE WHEN status = 'paid' THEN commission_amount ELSE 0 END) AS commission_paid,
			SUM(CASE WHEN status = 'pending' THEN commission_amount ELSE 0 END) AS commission_owing,
			SUM(CASE WHEN status = 'paid' THEN 1 ELSE 0 END) AS entries_paid_count`).
		Group("owner_id").
		Order("owner_id")
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}

	var rows []OwnerCommissionTotals
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []OwnerCommissionTotals{}
	}
	return rows, nil
}
