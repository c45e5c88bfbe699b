package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/shortletng/shortlet-bot/internal/domain"
)

func TestEnsureUser_CreatesThenReuses(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u1, err := EnsureUser(ctx, db, 555, "Ngozi")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if u1.Role != domain.RoleTenant {
		t.Errorf("first-contact role = %q, want tenant", u1.Role)
	}
	if u1.ChatID != 555 || u1.ID == "" {
		t.Errorf("user = %+v", u1)
	}

	u2, err := EnsureUser(ctx, db, 555, "renamed")
	if err != nil {
		t.Fatalf("EnsureUser again: %v", err)
	}
	if u2.ID != u1.ID {
		t.Errorf("second call created a new user: %q vs %q", u2.ID, u1.ID)
	}
	if u2.Name != "Ngozi" {
		t.Errorf("existing record must not be renamed: %q", u2.Name)
	}
}

func TestGetUserByChatID_NotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := GetUserByChatID(context.Background(), db, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateUserPhone(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, err := EnsureUser(ctx, db, 556, "Tunde")
	if err != nil {
		t.Fatal(err)
	}
	if err := UpdateUserPhone(ctx, db, u.ID, "+2349011122233"); err != nil {
		t.Fatalf("UpdateUserPhone: %v", err)
	}
	got, err := GetUser(ctx, db, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Phone != "+2349011122233" {
		t.Errorf("phone = %q", got.Phone)
	}

	if err := UpdateUserPhone(ctx, db, "missing-id", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: err = %v", err)
	}
}
