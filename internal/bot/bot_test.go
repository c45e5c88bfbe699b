package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shortletng/shortlet-bot/internal/callback"
	"github.com/shortletng/shortlet-bot/internal/domain"
	"github.com/shortletng/shortlet-bot/internal/repo"
	"github.com/shortletng/shortlet-bot/internal/session"
)

const testAdminChat int64 = 999

// fakeClient records everything the bot tries to send.
type fakeClient struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
}

func (f *fakeClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeClient) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeClient) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	if f.updates == nil {
		f.updates = make(chan tgbotapi.Update)
	}
	return f.updates
}

// texts returns the plain-text payloads sent to chatID, in order.
func (f *fakeClient) texts(chatID int64) []string {
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeClient) lastText(t *testing.T, chatID int64) string {
	t.Helper()
	msgs := f.texts(chatID)
	if len(msgs) == 0 {
		t.Fatalf("no messages sent to chat %d", chatID)
	}
	return msgs[len(msgs)-1]
}

// noopNotifier satisfies services.Notifier without touching Telegram; bot
// handler tests assert on direct replies, not dispatcher fan-out.
type noopNotifier struct{}

func (noopNotifier) BookingCreated(context.Context, *domain.Booking, *domain.Apartment) {}
func (noopNotifier) TenantPaymentRecorded(context.Context, *domain.Booking)             {}
func (noopNotifier) OwnerConfirmed(context.Context, *domain.Booking)                    {}
func (noopNotifier) CommissionReady(context.Context, *domain.Booking)                   {}
func (noopNotifier) StayConfirmed(context.Context, *domain.Booking)                     {}
func (noopNotifier) CommissionReceived(context.Context, *domain.Booking)                {}

func newTestBot(t *testing.T) (*Bot, *fakeClient, *gorm.DB) {
	t.Helper()

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	tg := &fakeClient{}
	bookings, ledger := NewServices(db, noopNotifier{})
	b := New(tg, db, bookings, ledger, session.NewMemoryStore(0), testAdminChat, zerolog.Nop())
	return b, tg, db
}

func seedApartment(t *testing.T, db *gorm.DB, area string, price int64) *domain.Apartment {
	t.Helper()
	apt := &domain.Apartment{
		ID:            uuid.NewString(),
		Title:         "Test Flat",
		Area:          area,
		PricePerNight: decimal.NewFromInt(price),
		MaxGuests:     4,
		Available:     true,
	}
	if _, err := repo.CreateApartment(context.Background(), db, apt); err != nil {
		t.Fatalf("CreateApartment: %v", err)
	}
	return apt
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID, FirstName: "Ada"},
	}
	if strings.HasPrefix(text, "/") {
		end := strings.IndexAny(text, " @")
		if end == -1 {
			end = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cbq-1",
		Data:    data,
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func TestHandleUpdate_StartCommand(t *testing.T) {
	b, tg, _ := newTestBot(t)

	b.HandleUpdate(context.Background(), textUpdate(1, "/start"))

	if got := tg.lastText(t, 1); !strings.Contains(got, "/apartments") {
		t.Fatalf("welcome text missing command list: %q", got)
	}
}

func TestHandleUpdate_FreeTextWithoutFlow(t *testing.T) {
	b, tg, _ := newTestBot(t)

	b.HandleUpdate(context.Background(), textUpdate(2, "hello there"))

	if got := tg.lastText(t, 2); got != msgUnknownInput {
		t.Fatalf("got %q, want unknown-input prompt", got)
	}
}

func TestSearchFlow_ListsMatchingApartments(t *testing.T) {
	b, tg, db := newTestBot(t)
	seedApartment(t, db, "Wuse 2", 45000)
	seedApartment(t, db, "Maitama", 80000)

	ctx := context.Background()
	b.HandleUpdate(ctx, textUpdate(3, "/apartments"))
	b.HandleUpdate(ctx, textUpdate(3, "Wuse 2"))
	b.HandleUpdate(ctx, textUpdate(3, "2"))

	var card *tgbotapi.MessageConfig
	for _, c := range tg.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && strings.Contains(m.Text, "Wuse 2") {
			card = &m
			break
		}
	}
	if card == nil {
		t.Fatalf("no listing card sent; texts: %v", tg.texts(3))
	}
	if !strings.Contains(card.Text, "₦45,000.00") {
		t.Errorf("card missing formatted price: %q", card.Text)
	}
	kb, ok := card.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) == 0 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("card should carry Details/Book buttons, got %#v", card.ReplyMarkup)
	}
	for _, texts := range [][]string{tg.texts(3)} {
		for _, txt := range texts {
			if strings.Contains(txt, "Maitama") {
				t.Errorf("listing from wrong area leaked: %q", txt)
			}
		}
	}
}

func TestSearchFlow_NoResults(t *testing.T) {
	b, tg, _ := newTestBot(t)

	ctx := context.Background()
	b.HandleUpdate(ctx, textUpdate(4, "/apartments"))
	b.HandleUpdate(ctx, textUpdate(4, "Lugbe"))
	b.HandleUpdate(ctx, textUpdate(4, "1"))

	if got := tg.lastText(t, 4); got != msgNoApartments {
		t.Fatalf("got %q, want no-apartments message", got)
	}
}

func TestBookingFlow_CreatesBooking(t *testing.T) {
	b, tg, db := newTestBot(t)
	apt := seedApartment(t, db, "Gwarinpa", 30000)

	ctx := context.Background()
	checkIn := time.Now().UTC().AddDate(0, 0, 7).Format(dateLayout)
	checkOut := time.Now().UTC().AddDate(0, 0, 9).Format(dateLayout)

	b.HandleUpdate(ctx, callbackUpdate(5, callback.Encode(callback.KindBookApt, apt.ID)))
	b.HandleUpdate(ctx, textUpdate(5, "not a date"))
	if got := tg.lastText(t, 5); got != msgBadDate {
		t.Fatalf("bad date should reprompt, got %q", got)
	}
	b.HandleUpdate(ctx, textUpdate(5, checkIn))
	b.HandleUpdate(ctx, textUpdate(5, checkOut))

	last := tg.lastText(t, 5)
	if !strings.Contains(last, "ABJ-") {
		t.Fatalf("expected booking ack with code, got %q", last)
	}

	var count int64
	if err := db.Model(&domain.Booking{}).Count(&count).Error; err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	if count != 1 {
		t.Fatalf("want 1 booking persisted, got %d", count)
	}
}

func TestPINFlow_RetryThenAccept(t *testing.T) {
	b, tg, db := newTestBot(t)
	apt := seedApartment(t, db, "Jabi", 50000)

	ctx := context.Background()
	user, err := repo.EnsureUser(ctx, db, 77, "Tunde")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	booking, err := b.bookings.Create(ctx, user.ID,
		apt.ID, time.Now().UTC().AddDate(0, 0, 3), time.Now().UTC().AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("Create booking: %v", err)
	}

	const ownerChat int64 = 6
	b.HandleUpdate(ctx, callbackUpdate(ownerChat, callback.Encode(callback.KindEnterPIN, booking.Code)))
	if got := tg.lastText(t, ownerChat); got != msgAskPIN {
		t.Fatalf("got %q, want PIN prompt", got)
	}

	b.HandleUpdate(ctx, textUpdate(ownerChat, "00000"))
	if booking.AccessPIN == "00000" {
		t.Skip("randomly generated the guessed PIN")
	}
	if got := tg.lastText(t, ownerChat); got != msgPINRejected {
		t.Fatalf("wrong PIN: got %q", got)
	}

	// Flow survives a rejection so the owner can retry.
	b.HandleUpdate(ctx, textUpdate(ownerChat, booking.AccessPIN))
	if got := tg.lastText(t, ownerChat); got != msgPINAccepted {
		t.Fatalf("correct PIN: got %q", got)
	}

	got, err := repo.GetBookingByCode(ctx, db, booking.Code)
	if err != nil {
		t.Fatalf("GetBookingByCode: %v", err)
	}
	if !got.OwnerConfirmed || !got.PINUsed {
		t.Fatalf("owner confirmation not recorded: %+v", got)
	}
}

func TestCallback_MarkPaid_AdminOnly(t *testing.T) {
	b, tg, _ := newTestBot(t)

	data := callback.Encode(callback.KindMarkPaid, "ABJ-12345678")
	b.HandleUpdate(context.Background(), callbackUpdate(42, data))

	if got := tg.lastText(t, 42); got != msgAdminOnly {
		t.Fatalf("non-admin mark_paid: got %q", got)
	}
}

func TestCallback_Malformed_IsAnsweredAndIgnored(t *testing.T) {
	b, tg, _ := newTestBot(t)

	b.HandleUpdate(context.Background(), callbackUpdate(7, "garbage"))

	if len(tg.requests) != 1 {
		t.Fatalf("callback must still be answered, got %d requests", len(tg.requests))
	}
	if len(tg.texts(7)) != 0 {
		t.Fatalf("malformed payload should not produce a reply: %v", tg.texts(7))
	}
}

func TestCommand_Report_NonAdminRejected(t *testing.T) {
	b, tg, _ := newTestBot(t)

	b.HandleUpdate(context.Background(), textUpdate(8, "/report"))

	if got := tg.lastText(t, 8); got != msgAdminOnly {
		t.Fatalf("got %q, want admin-only message", got)
	}
}

func TestCommand_Report_AdminEmptyLedger(t *testing.T) {
	b, tg, _ := newTestBot(t)

	b.HandleUpdate(context.Background(), textUpdate(testAdminChat, "/report"))

	if got := tg.lastText(t, testAdminChat); got != msgEmptyReport {
		t.Fatalf("got %q, want empty-report message", got)
	}
}

func TestCommand_Cancel_ClearsFlow(t *testing.T) {
	b, tg, _ := newTestBot(t)

	ctx := context.Background()
	b.HandleUpdate(ctx, textUpdate(9, "/apartments"))
	b.HandleUpdate(ctx, textUpdate(9, "/cancel"))
	b.HandleUpdate(ctx, textUpdate(9, "Asokoro"))

	if got := tg.lastText(t, 9); got != msgUnknownInput {
		t.Fatalf("flow should be gone after /cancel, got %q", got)
	}
}

func TestCommand_MyBookings(t *testing.T) {
	b, tg, db := newTestBot(t)
	apt := seedApartment(t, db, "Katampe", 25000)

	ctx := context.Background()
	b.HandleUpdate(ctx, textUpdate(10, "/mybookings"))
	if got := tg.lastText(t, 10); got != msgNoBookings {
		t.Fatalf("empty list: got %q", got)
	}

	user, err := repo.GetUserByChatID(ctx, db, 10)
	if err != nil {
		t.Fatalf("GetUserByChatID: %v", err)
	}
	if _, err := b.bookings.Create(ctx, user.ID,
		apt.ID, time.Now().UTC().AddDate(0, 0, 1), time.Now().UTC().AddDate(0, 0, 2)); err != nil {
		t.Fatalf("Create booking: %v", err)
	}

	b.HandleUpdate(ctx, textUpdate(10, "/mybookings"))
	if got := tg.lastText(t, 10); !strings.Contains(got, "ABJ-") || !strings.Contains(got, domain.BookingStatusPending) {
		t.Fatalf("listing missing code/status: %q", got)
	}
}

func TestPhoneFlow(t *testing.T) {
	b, tg, db := newTestBot(t)

	ctx := context.Background()
	b.HandleUpdate(ctx, textUpdate(11, "/phone"))
	b.HandleUpdate(ctx, textUpdate(11, "+2348012345678"))

	if got := tg.lastText(t, 11); got != msgPhoneSaved {
		t.Fatalf("got %q, want phone-saved ack", got)
	}
	user, err := repo.GetUserByChatID(ctx, db, 11)
	if err != nil {
		t.Fatalf("GetUserByChatID: %v", err)
	}
	if user.Phone != "+2348012345678" {
		t.Fatalf("phone not persisted: %q", user.Phone)
	}
}

func Test_repoShims_Proxy(t *testing.T) {
	_, _, db := newTestBot(t)
	ctx := context.Background()

	apt := seedApartment(t, db, "Wuye", 20000)
	got, err := apartmentRepoShim{}.Get(ctx, db, apt.ID)
	if err != nil || got.ID != apt.ID {
		t.Fatalf("apartment shim: got %v err %v", got, err)
	}

	tenant, err := repo.EnsureUser(ctx, db, 1234, "Shim Tenant")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	bk := &domain.Booking{
		ID:           uuid.NewString(),
		Code:         fmt.Sprintf("ABJ-%08d", 1),
		ApartmentID:  apt.ID,
		TenantID:     tenant.ID,
		CheckIn:      time.Now().UTC(),
		CheckOut:     time.Now().UTC().AddDate(0, 0, 1),
		Amount:       decimal.NewFromInt(20000),
		Commission:   decimal.NewFromInt(2000),
		Status:       domain.BookingStatusPending,
		AccessPIN:    "12345",
		PINExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	if err := (bookingRepoShim{}).Create(ctx, db, bk); err != nil {
		t.Fatalf("booking shim create: %v", err)
	}
	if _, err := (bookingRepoShim{}).GetByCode(ctx, db, bk.Code); err != nil {
		t.Fatalf("booking shim get: %v", err)
	}

	rows, err := ledgerRepoShim{}.Report(ctx, db, "")
	if err != nil || len(rows) != 0 {
		t.Fatalf("ledger shim report: rows=%v err=%v", rows, err)
	}
}
