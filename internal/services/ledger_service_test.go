package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shortletng/shortlet-bot/internal/domain"
	"github.com/shortletng/shortlet-bot/internal/repo"
)

type fakeLedgerRepo struct {
	entries map[string]*domain.CommissionEntry

	reportRows []repo.OwnerCommissionTotals
	reportErr  error
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{entries: make(map[string]*domain.CommissionEntry)}
}

func (r *fakeLedgerRepo) Create(ctx context.Context, db *gorm.DB, e *domain.CommissionEntry) error {
	if _, exists := r.entries[e.BookingCode]; exists {
		return repo.ErrConflict
	}
	cp := *e
	r.entries[e.BookingCode] = &cp
	return nil
}

func (r *fakeLedgerRepo) MarkPaid(ctx context.Context, db *gorm.DB, bookingCode string, now time.Time) (bool, error) {
	e, ok := r.entries[bookingCode]
	if !ok {
		return false, repo.ErrNotFound
	}
	if e.Status != domain.CommissionStatusPending {
		return false, nil
	}
	e.Status = domain.CommissionStatusPaid
	e.PaidAt = &now
	return true, nil
}

func (r *fakeLedgerRepo) Report(ctx context.Context, db *gorm.DB, ownerID string) ([]repo.OwnerCommissionTotals, error) {
	return r.reportRows, r.reportErr
}

func dualConfirmedBooking() *domain.Booking {
	return &domain.Booking{
		ID:          "b-1",
		Code:        "ABJ-11112222",
		ApartmentID: "apt-1",
		TenantID:    "tenant-1",
		Amount:      decimal.NewFromInt(100_000),
		Commission:  decimal.NewFromInt(10_000),
		Status:      domain.BookingStatusConfirmed,
	}
}

func TestTrack_CreatesEntryWithResolvedOwner(t *testing.T) {
	lr := newFakeLedgerRepo()
	s := &LedgerService{Repo: lr, OwnerOf: func(ctx context.Context, apartmentID string) (string, error) {
		if apartmentID != "apt-1" {
			t.Errorf("OwnerOf called with %q", apartmentID)
		}
		return "owner-1", nil
	}}

	if err := s.Track(context.Background(), dualConfirmedBooking()); err != nil {
		t.Fatalf("Track: %v", err)
	}

	e, ok := lr.entries["ABJ-11112222"]
	if !ok {
		t.Fatal("entry not created")
	}
	if e.OwnerID != "owner-1" || e.Status != domain.CommissionStatusPending {
		t.Errorf("entry = %+v", e)
	}
	if !e.AmountPaid.Equal(decimal.NewFromInt(100_000)) || !e.CommissionAmount.Equal(decimal.NewFromInt(10_000)) {
		t.Errorf("amounts = %s / %s", e.AmountPaid, e.CommissionAmount)
	}
}

func TestTrack_IdempotentOnReplay(t *testing.T) {
	lr := newFakeLedgerRepo()
	s := &LedgerService{Repo: lr}

	b := dualConfirmedBooking()
	for i := 0; i < 2; i++ {
		if err := s.Track(context.Background(), b); err != nil {
			t.Fatalf("Track #%d: %v", i+1, err)
		}
	}
	if len(lr.entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(lr.entries))
	}
}

func TestTrack_CommissionMismatchRejected(t *testing.T) {
	s := &LedgerService{Repo: newFakeLedgerRepo()}

	b := dualConfirmedBooking()
	b.Commission = decimal.NewFromInt(9_999)
	if err := s.Track(context.Background(), b); !errors.Is(err, ErrCommissionMismatch) {
		t.Fatalf("err = %v, want ErrCommissionMismatch", err)
	}
}

func TestTrack_UnboundOwnerTolerated(t *testing.T) {
	lr := newFakeLedgerRepo()
	s := &LedgerService{Repo: lr, OwnerOf: func(context.Context, string) (string, error) {
		return "", repo.ErrNotFound
	}}

	if err := s.Track(context.Background(), dualConfirmedBooking()); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if e := lr.entries["ABJ-11112222"]; e.OwnerID != "" {
		t.Errorf("owner id = %q, want empty for unbound listing", e.OwnerID)
	}
}

func TestMarkPaid_TransitionsEntry(t *testing.T) {
	lr := newFakeLedgerRepo()
	s := &LedgerService{Repo: lr}
	now := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)

	if err := s.Track(context.Background(), dualConfirmedBooking()); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkPaid(context.Background(), "ABJ-11112222", now); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	e := lr.entries["ABJ-11112222"]
	if e.Status != domain.CommissionStatusPaid || e.PaidAt == nil || !e.PaidAt.Equal(now) {
		t.Errorf("entry after settle = %+v", e)
	}

	// Replays are no-ops.
	if err := s.MarkPaid(context.Background(), "ABJ-11112222", now.Add(time.Hour)); err != nil {
		t.Fatalf("replayed MarkPaid: %v", err)
	}
	if !lr.entries["ABJ-11112222"].PaidAt.Equal(now) {
		t.Errorf("replay moved PaidAt")
	}
}

func TestTrackPaid_CreatesSettledEntry(t *testing.T) {
	lr := newFakeLedgerRepo()
	s := &LedgerService{Repo: lr, OwnerOf: func(context.Context, string) (string, error) {
		return "owner-1", nil
	}}
	now := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)

	if err := s.TrackPaid(context.Background(), dualConfirmedBooking(), now); err != nil {
		t.Fatalf("TrackPaid: %v", err)
	}
	e := lr.entries["ABJ-11112222"]
	if e == nil || e.Status != domain.CommissionStatusPaid || e.PaidAt == nil || !e.PaidAt.Equal(now) {
		t.Fatalf("backfilled entry = %+v", e)
	}
	if e.OwnerID != "owner-1" {
		t.Errorf("OwnerID = %q, want owner-1", e.OwnerID)
	}
}

func TestTrackPaid_ExistingEntrySettledInstead(t *testing.T) {
	lr := newFakeLedgerRepo()
	s := &LedgerService{Repo: lr}
	now := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	b := dualConfirmedBooking()

	if err := s.Track(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	if err := s.TrackPaid(context.Background(), b, now); err != nil {
		t.Fatalf("TrackPaid over existing entry: %v", err)
	}
	e := lr.entries[b.Code]
	if e.Status != domain.CommissionStatusPaid || e.PaidAt == nil {
		t.Fatalf("entry not settled: %+v", e)
	}
}

func TestReport_PassesOwnerScope(t *testing.T) {
	lr := newFakeLedgerRepo()
	lr.reportRows = []repo.OwnerCommissionTotals{{OwnerID: "owner-1", Bookings: 2}}
	s := &LedgerService{Repo: lr}

	rows, err := s.Report(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(rows) != 1 || rows[0].OwnerID != "owner-1" {
		t.Fatalf("rows = %+v", rows)
	}
}
