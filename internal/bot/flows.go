// Multi-turn conversation flows: apartment search, booking date entry,
// owner PIN entry, and phone capture. Each flow's position lives in the
// session store; starting any flow supersedes the previous one for that
// chat.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/shortletng/shortlet-bot/internal/callback"
	"github.com/shortletng/shortlet-bot/internal/domain"
	"github.com/shortletng/shortlet-bot/internal/repo"
	"github.com/shortletng/shortlet-bot/internal/services"
	"github.com/shortletng/shortlet-bot/internal/session"
	"github.com/shortletng/shortlet-bot/internal/utils"
)

// Collected-field keys.
const (
	fieldArea        = "area"
	fieldApartmentID = "apartment_id"
	fieldCheckIn     = "check_in"
	fieldBookingCode = "booking_code"
)

// dateLayout is the stay-date entry format shown to users.
const dateLayout = "2006-01-02"

// searchPageSize caps listings returned per search.
const searchPageSize = 8

func (b *Bot) continueFlow(ctx context.Context, user *domain.User, m *tgbotapi.Message, st *session.State) {
	text := strings.TrimSpace(m.Text)
	switch st.Flow {
	case session.FlowSearch:
		b.stepSearch(ctx, m.Chat.ID, st, text)
	case session.FlowBooking:
		b.stepBooking(ctx, user, m.Chat.ID, st, text)
	case session.FlowAwaitPIN:
		b.stepPIN(ctx, m.Chat.ID, st, text)
	case session.FlowAwaitPhone:
		b.stepPhone(ctx, user, m.Chat.ID, text)
	default:
		b.sessions.Clear(m.Chat.ID)
		b.reply(m.Chat.ID, msgUnknownInput)
	}
}

// --- search flow ---

func (b *Bot) startSearchFlow(chatID int64) {
	b.sessions.Start(chatID, session.FlowSearch)
	b.reply(chatID, msgAskArea)
}

func (b *Bot) stepSearch(ctx context.Context, chatID int64, st *session.State, text string) {
	switch st.Step {
	case 0:
		st.Fields[fieldArea] = text
		st.Step = 1
		b.sessions.Set(chatID, st)
		b.reply(chatID, msgAskGuests)
	case 1:
		guests := utils.AtoiDefault(text, 1)
		apts, err := repo.ListAvailableByArea(ctx, b.db, st.Field(fieldArea), guests, 0, searchPageSize)
		if err != nil {
			b.log.Error().Err(err).Msg("apartment search failed")
			b.reply(chatID, msgSomethingWrong)
			return
		}
		b.sessions.Clear(chatID)
		if len(apts) == 0 {
			b.reply(chatID, msgNoApartments)
			return
		}
		for i := range apts {
			b.sendApartmentCard(chatID, &apts[i])
		}
	}
}

func (b *Bot) sendApartmentCard(chatID int64, apt *domain.Apartment) {
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"%s — %s\n%s per night, sleeps %d",
		apt.Title, apt.Area, naira(apt.PricePerNight), apt.MaxGuests,
	))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Details", callback.Encode(callback.KindViewApt, apt.ID)),
			tgbotapi.NewInlineKeyboardButtonData("Book", callback.Encode(callback.KindBookApt, apt.ID)),
		),
	)
	if _, err := b.tg.Send(msg); err != nil {
		b.log.Warn().Int64("chat_id", chatID).Err(err).Msg("send apartment card failed")
	}
}

func (b *Bot) showApartment(ctx context.Context, chatID int64, apartmentID string) {
	apt, err := repo.GetApartment(ctx, b.db, apartmentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			b.reply(chatID, msgApartmentGone)
			return
		}
		b.log.Error().Err(err).Msg("apartment lookup failed")
		b.reply(chatID, msgSomethingWrong)
		return
	}

	if apt.PhotoFileID != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(apt.PhotoFileID))
		photo.Caption = apt.Title
		if _, err := b.tg.Send(photo); err != nil {
			b.log.Warn().Err(err).Msg("send photo failed")
		}
	}
	b.sendApartmentCard(chatID, apt)
}

// --- booking flow ---

func (b *Bot) startBookingFlow(chatID int64, apartmentID string) {
	st := b.sessions.Start(chatID, session.FlowBooking)
	st.Fields[fieldApartmentID] = apartmentID
	b.sessions.Set(chatID, st)
	b.reply(chatID, msgAskCheckIn)
}

func (b *Bot) stepBooking(ctx context.Context, user *domain.User, chatID int64, st *session.State, text string) {
	switch st.Step {
	case 0:
		if _, err := time.Parse(dateLayout, text); err != nil {
			b.reply(chatID, msgBadDate)
			return
		}
		st.Fields[fieldCheckIn] = text
		st.Step = 1
		b.sessions.Set(chatID, st)
		b.reply(chatID, msgAskCheckOut)
	case 1:
		checkIn, _ := time.Parse(dateLayout, st.Field(fieldCheckIn))
		checkOut, err := time.Parse(dateLayout, text)
		if err != nil {
			b.reply(chatID, msgBadDate)
			return
		}

		booking, err := b.bookings.Create(ctx, user.ID, st.Field(fieldApartmentID), checkIn, checkOut)
		b.sessions.Clear(chatID)
		if err != nil {
			b.replyBookingError(chatID, err)
			return
		}
		// The tenant's full confirmation (with the PIN) arrives via the
		// notification dispatcher; this is just the immediate ack.
		b.reply(chatID, fmt.Sprintf(msgBookingCreatedF, booking.Code))
	}
}

// --- owner PIN flow ---

func (b *Bot) stepPIN(ctx context.Context, chatID int64, st *session.State, text string) {
	code := st.Field(fieldBookingCode)
	err := b.bookings.VerifyAndConfirmByOwner(ctx, code, text)
	switch {
	case err == nil:
		b.sessions.Clear(chatID)
		b.reply(chatID, msgPINAccepted)
	case errors.Is(err, services.ErrInvalidPin):
		// Keep the flow alive so the owner can retry after checking with
		// the tenant.
		b.reply(chatID, msgPINRejected)
	case errors.Is(err, services.ErrBookingNotFound):
		b.sessions.Clear(chatID)
		b.reply(chatID, msgBookingNotFound)
	case errors.Is(err, services.ErrInvalidState):
		b.sessions.Clear(chatID)
		b.reply(chatID, msgBookingNotActive)
	default:
		b.log.Error().Err(err).Str("booking_code", code).Msg("pin verification failed")
		b.reply(chatID, msgSomethingWrong)
	}
}

// --- phone flow ---

func (b *Bot) stepPhone(ctx context.Context, user *domain.User, chatID int64, text string) {
	b.sessions.Clear(chatID)
	if err := repo.UpdateUserPhone(ctx, b.db, user.ID, text); err != nil {
		b.log.Error().Err(err).Msg("phone update failed")
		b.reply(chatID, msgSomethingWrong)
		return
	}
	b.reply(chatID, msgPhoneSaved)
}

// --- booking actions (callbacks) ---

func (b *Bot) confirmTenant(ctx context.Context, chatID int64, code string) {
	if err := b.bookings.ConfirmByTenant(ctx, code); err != nil {
		b.replyBookingError(chatID, err)
		return
	}
	// Acknowledgement text arrives via the dispatcher; nothing else to do.
}

func (b *Bot) cancelBooking(ctx context.Context, chatID int64, code string) {
	switch err := b.bookings.Cancel(ctx, code); {
	case err == nil:
		b.reply(chatID, msgBookingCancelled)
	case errors.Is(err, services.ErrInvalidState):
		b.reply(chatID, msgCancelTooLate)
	case errors.Is(err, services.ErrBookingNotFound):
		b.reply(chatID, msgBookingNotFound)
	default:
		b.log.Error().Err(err).Str("booking_code", code).Msg("cancel failed")
		b.reply(chatID, msgSomethingWrong)
	}
}

func (b *Bot) markCommissionPaid(ctx context.Context, chatID int64, code string) {
	if err := b.bookings.MarkCommissionPaid(ctx, code); err != nil {
		b.replyBookingError(chatID, err)
		return
	}
	b.reply(chatID, fmt.Sprintf(msgCommissionSettledF, code))
}

func (b *Bot) listTenantBookings(ctx context.Context, user *domain.User, chatID int64) {
	items, err := repo.ListBookingsByTenant(ctx, b.db, user.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("booking list failed")
		b.reply(chatID, msgSomethingWrong)
		return
	}
	if len(items) == 0 {
		b.reply(chatID, msgNoBookings)
		return
	}
	var sb strings.Builder
	sb.WriteString("Your bookings:\n")
	for _, bk := range items {
		fmt.Fprintf(&sb, "\n%s — %s, %s to %s (%s)",
			bk.Code, bk.Status, bk.CheckIn.Format(dateLayout), bk.CheckOut.Format(dateLayout), naira(bk.Amount))
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) sendCommissionReport(ctx context.Context, chatID int64, ownerID string) {
	rows, err := b.ledger.Report(ctx, ownerID)
	if err != nil {
		b.log.Error().Err(err).Msg("commission report failed")
		b.reply(chatID, msgSomethingWrong)
		return
	}
	if len(rows) == 0 {
		b.reply(chatID, msgEmptyReport)
		return
	}
	var sb strings.Builder
	sb.WriteString("Commission report:\n")
	for _, r := range rows {
		owner := r.OwnerID
		if owner == "" {
			owner = "(unassigned)"
		}
		fmt.Fprintf(&sb, "\nOwner %s: %d bookings, revenue %s, commission %s (paid %s, owing %s)",
			owner, r.Bookings, naira(r.Revenue), naira(r.Commission),
			naira(r.CommissionPaid), naira(r.CommissionOwing))
	}
	b.reply(chatID, sb.String())
}

// replyBookingError maps service sentinels to role-appropriate messages.
// Internal identifiers and storage errors are never surfaced.
func (b *Bot) replyBookingError(chatID int64, err error) {
	switch {
	case errors.Is(err, services.ErrApartmentNotFound):
		b.reply(chatID, msgApartmentGone)
	case errors.Is(err, services.ErrBookingNotFound):
		b.reply(chatID, msgBookingNotFound)
	case errors.Is(err, services.ErrUnavailable):
		b.reply(chatID, msgUnavailable)
	case errors.Is(err, services.ErrInvalidDates):
		b.reply(chatID, msgBadDateRange)
	case errors.Is(err, services.ErrInvalidState):
		b.reply(chatID, msgBookingNotActive)
	case errors.Is(err, services.ErrInvalidPin):
		b.reply(chatID, msgPINRejected)
	default:
		b.log.Error().Err(err).Msg("booking operation failed")
		b.reply(chatID, msgSomethingWrong)
	}
}
