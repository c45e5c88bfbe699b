package bot

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// User-facing copy. Constants ending in F are fmt format strings.
const (
	msgWelcome = "Welcome to Shortlet Abuja!\n\n" +
		"/apartments — browse short-let apartments\n" +
		"/mybookings — see your bookings\n" +
		"/phone — save your phone number\n" +
		"/cancel — abandon what you're doing"

	msgUnknownInput   = "I wasn't expecting that. Try /apartments to browse, or /start for the full menu."
	msgUnknownCommand = "Unknown command. Send /start for the menu."
	msgSomethingWrong = "Something went wrong on our side. Please try again in a moment."
	msgFlowCancelled  = "Okay, cancelled. Send /apartments whenever you're ready."
	msgAdminOnly      = "That action is reserved for the Shortlet Abuja team."

	msgAskArea       = "Which area of Abuja are you looking at? (e.g. Wuse 2, Maitama, Gwarinpa)"
	msgAskGuests     = "How many guests?"
	msgNoApartments  = "No available apartments matched that search. Try a nearby area or fewer guests."
	msgApartmentGone = "That apartment is no longer listed."

	msgAskCheckIn      = "Check-in date? (YYYY-MM-DD)"
	msgAskCheckOut     = "Check-out date? (YYYY-MM-DD)"
	msgBadDate         = "I couldn't read that date. Please use YYYY-MM-DD, e.g. 2026-09-12."
	msgBadDateRange    = "Those dates don't work — check-out must be after check-in."
	msgUnavailable     = "Sorry, that apartment isn't available for those dates."
	msgBookingCreatedF = "Booking %s created! Full details (including your access PIN) are on their way."

	msgAskPIN           = "Please enter the 5-digit PIN the tenant gave you."
	msgPINAccepted      = "PIN accepted — arrival confirmed. Thank you!"
	msgPINRejected      = "That PIN is not valid. Please check with the tenant and try again, or /cancel."
	msgNoBookings       = "You have no bookings yet. Send /apartments to browse."
	msgBookingNotFound  = "I couldn't find that booking."
	msgBookingNotActive = "That booking is no longer active."
	msgBookingCancelled = "Your booking has been cancelled."
	msgCancelTooLate    = "This booking can no longer be cancelled — it has already been confirmed."

	msgCommissionSettledF = "Commission for %s marked as paid."
	msgEmptyReport        = "No commission entries recorded yet."

	msgAskPhone   = "Please send your phone number (we only share it with your host)."
	msgPhoneSaved = "Phone number saved."
)

var nairaPrinter = message.NewPrinter(language.English)

// naira renders an amount as "₦1,234,567.00".
func naira(d decimal.Decimal) string {
	f, _ := d.Float64()
	return nairaPrinter.Sprintf("₦%v", number.Decimal(f, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}
