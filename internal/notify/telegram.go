// Telegram dispatcher implementation.
//
// Outbound sends are throttled with a shared token bucket to stay inside
// Telegram Bot API limits. The access PIN is rendered only into the
// tenant-facing booking message; no other surface (including logs) ever
// carries it.
package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"golang.org/x/time/rate"

	"github.com/shortletng/shortlet-bot/internal/callback"
	"github.com/shortletng/shortlet-bot/internal/domain"
)

// sendTimeout bounds a single delivery attempt, including limiter wait.
const sendTimeout = 10 * time.Second

// TelegramDispatcher sends lifecycle notifications through a Telegram bot.
// It satisfies the services.Notifier contract.
type TelegramDispatcher struct {
	tg          Sender
	resolve     ChatResolver
	adminChatID int64
	limiter     *rate.Limiter
	log         zerolog.Logger
	printer     *message.Printer

	// Blocking forces synchronous delivery; used by tests for determinism.
	Blocking bool
}

// NewTelegramDispatcher constructs a dispatcher. sendRPS/sendBurst shape
// the outbound token bucket; values <= 0 fall back to Telegram-safe
// defaults (25 msg/s, burst 5).
func NewTelegramDispatcher(tg Sender, resolve ChatResolver, adminChatID int64, sendRPS float64, sendBurst int, log zerolog.Logger) *TelegramDispatcher {
	if sendRPS <= 0 {
		sendRPS = 25
	}
	if sendBurst <= 0 {
		sendBurst = 5
	}
	return &TelegramDispatcher{
		tg:          tg,
		resolve:     resolve,
		adminChatID: adminChatID,
		limiter:     rate.NewLimiter(rate.Limit(sendRPS), sendBurst),
		log:         log,
		printer:     message.NewPrinter(language.English),
	}
}

// BookingCreated fans out to all three parties. Only the tenant's copy
// contains the access PIN; the owner is told to request it from the tenant
// at handover.
func (d *TelegramDispatcher) BookingCreated(ctx context.Context, b *domain.Booking, apt *domain.Apartment) {
	tenantText := fmt.Sprintf(
		"Booking %s created for %s (%s).\nStay: %s to %s\nRent: %s\n\nYour access PIN is %s. Keep it private and give it to the property owner in person at check-in.\nOnce you have paid, tap the button below.",
		b.Code, apt.Title, apt.Area,
		fmtDate(b.CheckIn), fmtDate(b.CheckOut),
		d.naira(b.Amount), b.AccessPIN,
	)
	tenantMsg := d.textTo(0, tenantText)
	tenantMsg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("I have paid", callback.Encode(callback.KindConfirmTenant, b.Code)),
			tgbotapi.NewInlineKeyboardButtonData("Cancel booking", callback.Encode(callback.KindCancel, b.Code)),
		),
	)
	d.toTenant(ctx, "booking_created", b.TenantID, tenantMsg)

	ownerText := fmt.Sprintf(
		"New booking %s for your apartment %s.\nStay: %s to %s\nRent: %s (commission due: %s)\n\nThe tenant has been issued an access PIN. Ask them for it at check-in, then submit it here to confirm.",
		b.Code, apt.Title,
		fmtDate(b.CheckIn), fmtDate(b.CheckOut),
		d.naira(b.Amount), d.naira(b.Commission),
	)
	ownerMsg := d.textTo(0, ownerText)
	ownerMsg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Enter tenant PIN", callback.Encode(callback.KindEnterPIN, b.Code)),
		),
	)
	d.toOwner(ctx, "booking_created", b.ApartmentID, ownerMsg)

	d.toAdmin(ctx, "booking_created", fmt.Sprintf(
		"Booking %s created.\nApartment: %s (%s)\nRent: %s, commission: %s",
		b.Code, apt.Title, apt.ID, d.naira(b.Amount), d.naira(b.Commission),
	))
}

// TenantPaymentRecorded acknowledges the tenant's payment attestation.
func (d *TelegramDispatcher) TenantPaymentRecorded(ctx context.Context, b *domain.Booking) {
	d.toTenant(ctx, "tenant_payment", b.TenantID, d.textTo(0, fmt.Sprintf(
		"Payment noted for booking %s. The stay is confirmed once the owner verifies your access PIN.",
		b.Code,
	)))
}

// OwnerConfirmed acknowledges a successful PIN verification and reminds the
// owner of the commission due.
func (d *TelegramDispatcher) OwnerConfirmed(ctx context.Context, b *domain.Booking) {
	d.toOwner(ctx, "owner_confirmed", b.ApartmentID, d.textTo(0, fmt.Sprintf(
		"PIN verified for booking %s. Please remit the platform commission of %s.",
		b.Code, d.naira(b.Commission),
	)))
}

// CommissionReady tells the admin both parties confirmed and the commission
// can be collected, with a one-tap settle button. The owner id tells the
// admin whom to collect from; unassigned listings stay flagged as such.
func (d *TelegramDispatcher) CommissionReady(ctx context.Context, b *domain.Booking) {
	ownerRef := "unassigned"
	if id, bound, err := d.resolve.OwnerID(ctx, b.ApartmentID); err == nil && bound {
		ownerRef = id
	}
	msg := d.textTo(d.adminChatID, fmt.Sprintf(
		"Commission ready for collection.\nBooking: %s\nApartment: %s\nTenant: %s\nOwner: %s\nCommission: %s",
		b.Code, b.ApartmentID, b.TenantID, ownerRef, d.naira(b.Commission),
	))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Mark commission paid", callback.Encode(callback.KindMarkPaid, b.Code)),
		),
	)
	d.dispatch(ctx, "commission_ready", RoleAdmin, msg)
}

// StayConfirmed tells the tenant the booking is locked in.
func (d *TelegramDispatcher) StayConfirmed(ctx context.Context, b *domain.Booking) {
	d.toTenant(ctx, "stay_confirmed", b.TenantID, d.textTo(0, fmt.Sprintf(
		"Your stay is confirmed! Booking %s, check-in %s. Enjoy Abuja.",
		b.Code, fmtDate(b.CheckIn),
	)))
}

// CommissionReceived tells the owner their commission payment was received.
func (d *TelegramDispatcher) CommissionReceived(ctx context.Context, b *domain.Booking) {
	d.toOwner(ctx, "commission_received", b.ApartmentID, d.textTo(0, fmt.Sprintf(
		"Commission of %s received for booking %s. Thank you.",
		d.naira(b.Commission), b.Code,
	)))
}

// --- delivery plumbing ---

func (d *TelegramDispatcher) toTenant(ctx context.Context, event, tenantID string, msg tgbotapi.MessageConfig) {
	chatID, err := d.resolve.TenantChat(ctx, tenantID)
	if err != nil {
		deliveries.WithLabelValues(event, RoleTenant, "unresolved").Inc()
		d.log.Warn().Str("event", event).Str("user_id", tenantID).Err(err).Msg("tenant chat unresolved")
		return
	}
	msg.ChatID = chatID
	d.dispatch(ctx, event, RoleTenant, msg)
}

func (d *TelegramDispatcher) toOwner(ctx context.Context, event, apartmentID string, msg tgbotapi.MessageConfig) {
	chatID, bound, err := d.resolve.OwnerChat(ctx, apartmentID)
	if err != nil {
		deliveries.WithLabelValues(event, RoleOwner, "unresolved").Inc()
		d.log.Warn().Str("event", event).Str("apartment_id", apartmentID).Err(err).Msg("owner chat unresolved")
		return
	}
	if !bound {
		// No registered owner: the admin handles the owner side manually.
		msg.ChatID = d.adminChatID
		msg.Text = "[unassigned owner] " + msg.Text
		d.dispatch(ctx, event, RoleAdmin, msg)
		return
	}
	msg.ChatID = chatID
	d.dispatch(ctx, event, RoleOwner, msg)
}

func (d *TelegramDispatcher) toAdmin(ctx context.Context, event, text string) {
	d.dispatch(ctx, event, RoleAdmin, d.textTo(d.adminChatID, text))
}

// dispatch hands the message to a background sender unless Blocking is set.
// The caller's context is not used for delivery: the triggering state
// transition must not be cancelled or delayed by a slow send.
func (d *TelegramDispatcher) dispatch(_ context.Context, event, role string, msg tgbotapi.MessageConfig) {
	if d.Blocking {
		d.deliver(event, role, msg)
		return
	}
	go d.deliver(event, role, msg)
}

func (d *TelegramDispatcher) deliver(event, role string, msg tgbotapi.MessageConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := d.limiter.Wait(ctx); err != nil {
		deliveries.WithLabelValues(event, role, "failed").Inc()
		d.log.Error().Str("event", event).Str("role", role).Err(err).Msg("notification throttled out")
		return
	}
	if _, err := d.tg.Send(msg); err != nil {
		deliveries.WithLabelValues(event, role, "failed").Inc()
		d.log.Error().
			Str("event", event).
			Str("role", role).
			Int64("chat_id", msg.ChatID).
			Err(err).
			Msg("notification delivery failed")
		return
	}
	deliveries.WithLabelValues(event, role, "sent").Inc()
}

func (d *TelegramDispatcher) textTo(chatID int64, text string) tgbotapi.MessageConfig {
	return tgbotapi.NewMessage(chatID, text)
}

// naira renders a decimal amount as "₦1,234,567.89".
func (d *TelegramDispatcher) naira(v decimal.Decimal) string {
	f, _ := v.Float64()
	return d.printer.Sprintf("₦%v", number.Decimal(f,
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

func fmtDate(t time.Time) string {
	return t.Format("Mon, 2 Jan 2006")
}
