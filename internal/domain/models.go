// Package domain defines the persistence models for users, apartments,
// bookings, and commission ledger entries. These types are mapped with GORM
// and form the core data layer of the booking bot.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Booking lifecycle statuses.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

// User roles.
const (
	RoleTenant = "tenant"
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
)

// Commission settlement statuses.
const (
	CommissionStatusPending = "pending"
	CommissionStatusPaid    = "paid"
)

// User represents a Telegram identity known to the bot: a tenant browsing
// apartments, a property owner, or the platform admin.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ChatID: Telegram chat identifier, unique per user; all outbound
//     messages are addressed to this value.
//   - Role: "tenant", "owner", or "admin" (enforced by DB constraint).
//   - Phone: optional contact number collected during registration.
type User struct {
	ID        string         `json:"id"      gorm:"type:char(36);primaryKey"`
	ChatID    int64          `json:"chat_id" gorm:"not null;uniqueIndex:ux_user_chat"`
	Role      string         `json:"role"    gorm:"type:varchar(16);not null;default:'tenant';check:role IN ('tenant','owner','admin')"`
	Name      string         `json:"name"    gorm:"type:varchar(128)"`
	Phone     string         `json:"phone"   gorm:"type:varchar(32)"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"       gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Apartment represents a short-let listing. OwnerID is nullable: listings
// can be onboarded by the admin before the owner has registered with the
// bot, in which case owner-targeted notifications are redirected to the
// admin channel.
type Apartment struct {
	ID            string          `json:"id"              gorm:"type:char(36);primaryKey"`
	Title         string          `json:"title"           gorm:"type:varchar(255);not null"`
	Area          string          `json:"area"            gorm:"type:varchar(128);not null;index"`
	PricePerNight decimal.Decimal `json:"price_per_night" gorm:"type:numeric;not null"`
	MaxGuests     int             `json:"max_guests"      gorm:"not null;default:2"`
	Available     bool            `json:"available"       gorm:"not null;default:true;index"`
	OwnerID       *string         `json:"owner_id,omitempty" gorm:"type:char(36);index"`
	PhotoFileID   string          `json:"-"               gorm:"type:varchar(255)"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `json:"-"               gorm:"index"`

	Owner *User `json:"-" gorm:"foreignKey:OwnerID;references:ID"`
}

// TableName returns the database table name for Apartment.
func (Apartment) TableName() string { return "apartments" }

// Booking holds the financial and confirmation state of one stay.
//
// Confirmation protocol:
//   - AccessPIN is generated exactly once at creation and never updated.
//     It is disclosed only to the tenant; the owner must obtain it from the
//     tenant in person before submitting it to the bot.
//   - PINUsed flips false→true exactly once, atomically together with
//     OwnerConfirmed, as part of a single conditional UPDATE.
//   - DualConfirmationNotified guards the one-shot admin/tenant
//     notifications fired when both parties have confirmed.
type Booking struct {
	ID          string `json:"id"           gorm:"type:char(36);primaryKey"`
	Code        string `json:"code"         gorm:"type:varchar(32);not null;uniqueIndex:ux_booking_code"`
	ApartmentID string `json:"apartment_id" gorm:"type:char(36);not null;index"`
	TenantID    string `json:"tenant_id"    gorm:"type:char(36);not null;index"`

	CheckIn  time.Time `json:"check_in"  gorm:"not null"`
	CheckOut time.Time `json:"check_out" gorm:"not null"`

	Amount     decimal.Decimal `json:"amount"     gorm:"type:numeric;not null"`
	Commission decimal.Decimal `json:"commission" gorm:"type:numeric;not null"`

	Status string `json:"status" gorm:"type:varchar(16);not null;default:'pending';index;check:status IN ('pending','confirmed','completed','cancelled')"`

	TenantConfirmed   bool       `json:"tenant_confirmed" gorm:"not null;default:false"`
	TenantConfirmedAt *time.Time `json:"tenant_confirmed_at,omitempty"`

	OwnerConfirmed   bool       `json:"property_owner_confirmed"              gorm:"column:property_owner_confirmed;not null;default:false"`
	OwnerConfirmedAt *time.Time `json:"property_owner_confirmed_at,omitempty" gorm:"column:property_owner_confirmed_at"`

	AccessPIN    string    `json:"-"              gorm:"column:access_pin;type:char(5);not null"`
	PINExpiresAt time.Time `json:"pin_expires_at" gorm:"column:pin_expires_at;not null"`
	PINUsed      bool      `json:"pin_used"       gorm:"column:pin_used;not null;default:false"`

	DualConfirmationNotified bool `json:"-" gorm:"not null;default:false"`

	CommissionPaid   bool       `json:"commission_paid" gorm:"not null;default:false"`
	CommissionPaidAt *time.Time `json:"commission_paid_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Apartment Apartment `json:"-" gorm:"foreignKey:ApartmentID;references:ID;constraint:OnUpdate:CASCADE"`
	Tenant    User      `json:"-" gorm:"foreignKey:TenantID;references:ID;constraint:OnUpdate:CASCADE"`
}

// TableName returns the database table name for Booking.
func (Booking) TableName() string { return "bookings" }

// DualConfirmed reports whether both parties have confirmed this booking.
func (b *Booking) DualConfirmed() bool {
	return b.TenantConfirmed && b.OwnerConfirmed
}

// CommissionEntry is the ledger projection of a booking's platform cut.
// One entry exists per booking (unique on BookingCode); status only ever
// moves pending→paid, never back.
type CommissionEntry struct {
	ID          string `json:"id"           gorm:"type:char(36);primaryKey"`
	BookingCode string `json:"booking_code" gorm:"type:varchar(32);not null;uniqueIndex:ux_ledger_booking"`
	OwnerID     string `json:"owner_id"     gorm:"type:char(36);index"`
	ApartmentID string `json:"apartment_id" gorm:"type:char(36);not null;index"`

	AmountPaid       decimal.Decimal `json:"amount_paid"       gorm:"type:numeric;not null"`
	CommissionAmount decimal.Decimal `json:"commission_amount" gorm:"type:numeric;not null"`

	Status string     `json:"commission_status" gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','paid')"`
	PaidAt *time.Time `json:"paid_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for CommissionEntry.
func (CommissionEntry) TableName() string { return "commission_entries" }
