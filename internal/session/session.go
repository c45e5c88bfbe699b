// Package session tracks short-lived, per-chat conversation state: which
// multi-turn flow a chat is in (date entry, PIN entry, phone capture) and
// the fields collected so far.
//
// The contract is single-flow-at-a-time per chat: starting a new flow
// supersedes whatever was active, so a stale search flow can never swallow
// input meant for a booking flow. Entries older than the configured TTL are
// evicted opportunistically; eviction is cache hygiene, not part of the
// correctness contract.
package session

import "time"

// Flow identifiers used by the bot router.
const (
	FlowSearch     = "search"
	FlowBooking    = "booking"
	FlowAwaitPIN   = "await_pin"
	FlowAwaitPhone = "await_phone"
)

// State is one chat's position in a multi-turn flow.
type State struct {
	Flow      string
	Step      int
	Fields    map[string]string
	UpdatedAt time.Time
}

// Field returns a collected field, or "" when absent.
func (s *State) Field(key string) string {
	if s == nil || s.Fields == nil {
		return ""
	}
	return s.Fields[key]
}

// Store is the per-chat conversation state contract. Implementations must
// be safe for concurrent use by the update router.
type Store interface {
	// Start begins a flow for the chat, discarding any active flow.
	Start(chatID int64, flow string) *State

	// Get returns the chat's active state, or ok=false when none exists
	// (or it has expired).
	Get(chatID int64) (st *State, ok bool)

	// Set stores an updated state for the chat.
	Set(chatID int64, st *State)

	// Clear removes the chat's state.
	Clear(chatID int64)
}
