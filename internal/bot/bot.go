// Package bot implements the Telegram transport: it receives updates over
// long polling, routes commands, inline-button callbacks, and multi-turn
// conversation flows, and calls into the application services. All booking
// state logic lives in the services layer; handlers here only validate
// input, drive conversation state, and translate results into chat
// messages.
package bot

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/shortletng/shortlet-bot/internal/callback"
	"github.com/shortletng/shortlet-bot/internal/domain"
	"github.com/shortletng/shortlet-bot/internal/repo"
	"github.com/shortletng/shortlet-bot/internal/services"
	"github.com/shortletng/shortlet-bot/internal/session"
)

// handleTimeout bounds the work done for one inbound update.
const handleTimeout = 15 * time.Second

// Client is the Telegram API surface the bot needs. *tgbotapi.BotAPI
// satisfies it; tests substitute a recorder.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

// Bot routes Telegram updates to the booking services.
type Bot struct {
	tg          Client
	db          *gorm.DB
	bookings    *services.BookingService
	ledger      *services.LedgerService
	sessions    session.Store
	adminChatID int64
	log         zerolog.Logger
}

// New constructs the update router.
func New(tg Client, db *gorm.DB, bookings *services.BookingService, ledger *services.LedgerService, sessions session.Store, adminChatID int64, log zerolog.Logger) *Bot {
	return &Bot{
		tg:          tg,
		db:          db,
		bookings:    bookings,
		ledger:      ledger,
		sessions:    sessions,
		adminChatID: adminChatID,
		log:         log,
	}
}

// Run consumes updates until ctx is cancelled. Each update is handled in
// its own goroutine so a slow store or send never stalls the poll loop.
func (b *Bot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	cfg.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.tg.GetUpdatesChan(cfg)
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			go b.safeHandle(upd)
		}
	}
}

// safeHandle isolates panics per update.
func (b *Bot) safeHandle(upd tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic while handling update")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	b.HandleUpdate(ctx, upd)
}

// HandleUpdate dispatches one update. Exported for tests.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	user, err := repo.EnsureUser(ctx, b.db, m.Chat.ID, strings.TrimSpace(m.From.FirstName+" "+m.From.LastName))
	if err != nil {
		b.log.Error().Int64("chat_id", m.Chat.ID).Err(err).Msg("ensure user failed")
		b.reply(m.Chat.ID, msgSomethingWrong)
		return
	}

	if m.IsCommand() {
		b.handleCommand(ctx, user, m)
		return
	}

	// Free text only means something inside an active flow.
	st, ok := b.sessions.Get(m.Chat.ID)
	if !ok {
		b.reply(m.Chat.ID, msgUnknownInput)
		return
	}
	b.continueFlow(ctx, user, m, st)
}

func (b *Bot) handleCommand(ctx context.Context, user *domain.User, m *tgbotapi.Message) {
	switch m.Command() {
	case "start":
		b.sessions.Clear(m.Chat.ID)
		b.reply(m.Chat.ID, msgWelcome)
	case "apartments":
		b.startSearchFlow(m.Chat.ID)
	case "mybookings":
		b.listTenantBookings(ctx, user, m.Chat.ID)
	case "phone":
		b.sessions.Start(m.Chat.ID, session.FlowAwaitPhone)
		b.reply(m.Chat.ID, msgAskPhone)
	case "cancel":
		b.sessions.Clear(m.Chat.ID)
		b.reply(m.Chat.ID, msgFlowCancelled)
	case "report":
		if m.Chat.ID != b.adminChatID {
			b.reply(m.Chat.ID, msgAdminOnly)
			return
		}
		b.sendCommissionReport(ctx, m.Chat.ID, strings.TrimSpace(m.CommandArguments()))
	default:
		b.reply(m.Chat.ID, msgUnknownCommand)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	// Always answer so the client stops its spinner, even on bad payloads.
	defer func() {
		if _, err := b.tg.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
			b.log.Warn().Err(err).Msg("answer callback failed")
		}
	}()

	if q.Message == nil {
		return
	}
	chatID := q.Message.Chat.ID

	p, err := callback.Decode(q.Data)
	if err != nil {
		b.log.Warn().Int64("chat_id", chatID).Msg("malformed callback payload")
		return
	}

	switch p.Kind {
	case callback.KindViewApt:
		b.showApartment(ctx, chatID, p.Ref)
	case callback.KindBookApt:
		b.startBookingFlow(chatID, p.Ref)
	case callback.KindConfirmTenant:
		b.confirmTenant(ctx, chatID, p.Ref)
	case callback.KindEnterPIN:
		st := b.sessions.Start(chatID, session.FlowAwaitPIN)
		st.Fields[fieldBookingCode] = p.Ref
		b.sessions.Set(chatID, st)
		b.reply(chatID, msgAskPIN)
	case callback.KindCancel:
		b.cancelBooking(ctx, chatID, p.Ref)
	case callback.KindMarkPaid:
		if chatID != b.adminChatID {
			b.reply(chatID, msgAdminOnly)
			return
		}
		b.markCommissionPaid(ctx, chatID, p.Ref)
	}
}

// reply sends plain text, logging (not propagating) failures.
func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Warn().Int64("chat_id", chatID).Err(err).Msg("reply failed")
	}
}
