package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shortletng/shortlet-bot/internal/domain"
)

func seedEntry(t *testing.T, db *gorm.DB, code, ownerID string, amount int64) *domain.CommissionEntry {
	t.Helper()
	e := &domain.CommissionEntry{
		BookingCode:      code,
		OwnerID:          ownerID,
		ApartmentID:      "apt-ledger",
		AmountPaid:       decimal.NewFromInt(amount),
		CommissionAmount: decimal.NewFromInt(amount / 10),
		Status:           domain.CommissionStatusPending,
	}
	if err := CreateCommissionEntry(context.Background(), db, e); err != nil {
		t.Fatalf("CreateCommissionEntry: %v", err)
	}
	return e
}

func TestCreateCommissionEntry_DuplicateBookingCode(t *testing.T) {
	db := newTestDB(t)
	seedEntry(t, db, "ABJ-00000001", "owner-1", 100_000)

	err := CreateCommissionEntry(context.Background(), db, &domain.CommissionEntry{
		BookingCode:      "ABJ-00000001",
		ApartmentID:      "apt-ledger",
		AmountPaid:       decimal.NewFromInt(100_000),
		CommissionAmount: decimal.NewFromInt(10_000),
		Status:           domain.CommissionStatusPending,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestMarkCommissionEntryPaid_ClaimsOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedEntry(t, db, "ABJ-00000002", "owner-1", 100_000)
	now := time.Now().UTC()

	claimed, err := MarkCommissionEntryPaid(ctx, db, "ABJ-00000002", now)
	if err != nil || !claimed {
		t.Fatalf("first settle: claimed=%v err=%v", claimed, err)
	}
	claimed, err = MarkCommissionEntryPaid(ctx, db, "ABJ-00000002", now.Add(time.Hour))
	if err != nil || claimed {
		t.Fatalf("replay: claimed=%v err=%v", claimed, err)
	}
	if _, err := MarkCommissionEntryPaid(ctx, db, "ABJ-00000099", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown code: err = %v", err)
	}

	e, err := GetCommissionEntry(ctx, db, "ABJ-00000002")
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != domain.CommissionStatusPaid || e.PaidAt == nil {
		t.Fatalf("entry after settle: %+v", e)
	}
}

func TestCommissionReport_AggregatesPerOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedEntry(t, db, "ABJ-00000010", "owner-a", 100_000)
	seedEntry(t, db, "ABJ-00000011", "owner-a", 200_000)
	seedEntry(t, db, "ABJ-00000012", "owner-b", 50_000)
	if _, err := MarkCommissionEntryPaid(ctx, db, "ABJ-00000010", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	rows, err := CommissionReport(ctx, db, "")
	if err != nil {
		t.Fatalf("CommissionReport: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	a := rows[0] // ordered by owner_id
	if a.OwnerID != "owner-a" || a.Bookings != 2 {
		t.Fatalf("owner-a row: %+v", a)
	}
	if !a.Revenue.Equal(decimal.NewFromInt(300_000)) || !a.Commission.Equal(decimal.NewFromInt(30_000)) {
		t.Errorf("owner-a totals: revenue=%s commission=%s", a.Revenue, a.Commission)
	}
	if !a.CommissionPaid.Equal(decimal.NewFromInt(10_000)) || !a.CommissionOwing.Equal(decimal.NewFromInt(20_000)) {
		t.Errorf("owner-a settlement split: paid=%s owing=%s", a.CommissionPaid, a.CommissionOwing)
	}
	if a.EntriesPaidCount != 1 {
		t.Errorf("owner-a paid entries = %d, want 1", a.EntriesPaidCount)
	}

	scoped, err := CommissionReport(ctx, db, "owner-b")
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 || scoped[0].OwnerID != "owner-b" {
		t.Fatalf("scoped rows = %+v", scoped)
	}
}

func TestCommissionReport_EmptyLedger(t *testing.T) {
	db := newTestDB(t)

	rows, err := CommissionReport(context.Background(), db, "")
	if err != nil {
		t.Fatalf("CommissionReport: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", rows)
	}
}
