// Package notify delivers role-targeted lifecycle messages to tenants,
// owners, and the admin over Telegram.
//
// Delivery is best-effort and fire-and-forget: a failed send is counted
// and logged, never returned to the caller, so a notification failure can
// never roll back or block the booking state transition that produced it.
// Owner-targeted events for apartments without a bound owner are redirected
// to the admin channel with an explicit "unassigned owner" marker.
package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Roles a notification can target.
const (
	RoleTenant = "tenant"
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
)

// Sender is the minimal Telegram client surface the dispatcher needs.
// *tgbotapi.BotAPI satisfies it; tests substitute a recorder.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChatResolver maps domain identities to Telegram chat IDs.
type ChatResolver interface {
	// TenantChat returns the chat bound to a user id.
	TenantChat(ctx context.Context, userID string) (int64, error)

	// OwnerChat returns the chat of the owner of an apartment. bound is
	// false when the listing has no registered owner; the caller then
	// redirects the message to the admin channel.
	OwnerChat(ctx context.Context, apartmentID string) (chatID int64, bound bool, err error)

	// OwnerID returns the user id of the apartment's registered owner.
	// bound is false when the listing has no owner.
	OwnerID(ctx context.Context, apartmentID string) (ownerID string, bound bool, err error)
}

// deliveries counts dispatched notifications by event, target role, and
// outcome ("sent", "failed", "unresolved").
var deliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notify_deliveries_total",
		Help: "Total notification deliveries by event, role, and outcome.",
	},
	[]string{"event", "role", "outcome"},
)

func init() {
	prometheus.MustRegister(deliveries)
}
