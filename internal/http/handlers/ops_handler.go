// Ops HTTP handlers.
//
// The ops API is a small read-only surface for the platform operator:
//   - GET /report                 (commission totals across all owners)
//   - GET /report/{owner_id}      (commission totals for one owner)
//   - GET /bookings/{code}        (booking state for support lookups)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. Booking payloads
// never include the access PIN; the domain model excludes it from JSON.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shortletng/shortlet-bot/internal/domain"
	"github.com/shortletng/shortlet-bot/internal/repo"
	"github.com/shortletng/shortlet-bot/internal/services"
)

// LedgerReporter provides the commission report consumed by the ops API.
type LedgerReporter interface {
	// Report aggregates commission totals, optionally scoped to one owner.
	Report(ctx context.Context, ownerID string) ([]repo.OwnerCommissionTotals, error)
}

// BookingReader resolves bookings by their shareable code.
type BookingReader interface {
	Get(ctx context.Context, code string) (*domain.Booking, error)
}

// Handlers groups the ops API endpoints.
type Handlers struct {
	ledger   LedgerReporter
	bookings BookingReader
}

// New constructs a Handlers instance bound to the given services.
func New(ledger LedgerReporter, bookings BookingReader) *Handlers {
	return &Handlers{ledger: ledger, bookings: bookings}
}

// GetReport returns aggregate commission totals grouped by owner. An
// optional owner_id path parameter scopes the report.
func (h *Handlers) GetReport(c *gin.Context) {
	ownerID := strings.TrimSpace(c.Param("owner_id"))

	rows, err := h.ledger.Report(c.Request.Context(), ownerID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeReportFailed, "could not build commission report")
		return
	}
	ok(c, http.StatusOK, gin.H{"owners": rows})
}

// GetBooking returns the lifecycle state of one booking for support
// lookups. The access PIN is never part of the payload.
func (h *Handlers) GetBooking(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "booking code required")
		return
	}

	b, err := h.bookings.Get(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, services.ErrBookingNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "booking not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load booking")
		return
	}
	ok(c, http.StatusOK, b)
}
