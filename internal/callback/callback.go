// Package callback defines the typed payload carried in Telegram inline
// button callback data. Payloads are encoded once when a keyboard is built
// and decoded once at the update-router edge; handlers never parse raw
// callback strings themselves.
package callback

import (
	"errors"
	"strings"
)

// Kind discriminates callback payloads.
type Kind string

const (
	// KindViewApt shows a listing's details; Ref is the apartment id.
	KindViewApt Kind = "view_apt"
	// KindBookApt starts the booking flow; Ref is the apartment id.
	KindBookApt Kind = "book_apt"
	// KindConfirmTenant records tenant payment; Ref is the booking code.
	KindConfirmTenant Kind = "confirm_tenant"
	// KindEnterPIN puts the owner's chat into PIN entry; Ref is the booking code.
	KindEnterPIN Kind = "enter_pin"
	// KindMarkPaid settles the commission; Ref is the booking code.
	KindMarkPaid Kind = "mark_paid"
	// KindCancel cancels a pending booking; Ref is the booking code.
	KindCancel Kind = "cancel"
)

// ErrMalformed is returned for callback data that does not decode to a
// known payload.
var ErrMalformed = errors.New("malformed callback data")

// Payload is the decoded form of a button press.
type Payload struct {
	Kind Kind
	Ref  string
}

var known = map[Kind]struct{}{
	KindViewApt:       {},
	KindBookApt:       {},
	KindConfirmTenant: {},
	KindEnterPIN:      {},
	KindMarkPaid:      {},
	KindCancel:        {},
}

// Encode serializes a payload for Telegram callback data. The wire form is
// "kind:ref", which stays well under Telegram's 64-byte callback limit for
// booking codes and UUIDs.
func Encode(k Kind, ref string) string {
	return string(k) + ":" + ref
}

// Decode parses callback data, rejecting unknown kinds and empty refs.
func Decode(data string) (Payload, error) {
	kind, ref, ok := strings.Cut(data, ":")
	if !ok || ref == "" {
		return Payload{}, ErrMalformed
	}
	k := Kind(kind)
	if _, exists := known[k]; !exists {
		return Payload{}, ErrMalformed
	}
	return Payload{Kind: k, Ref: ref}, nil
}
