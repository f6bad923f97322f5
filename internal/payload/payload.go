// Package payload encodes and decodes the URI-style QR payloads exchanged
// with scanner devices: pairing payloads shown by organizers and ticket
// payloads printed on attendee tickets.
package payload

import (
	"net/url"

	apperrors "github.com/doorcrew/scanner-server-go/internal/errors"
)

const (
	Scheme = "doorcrew"

	ActionPair   = "pair"
	ActionTicket = "ticket"
)

type PairPayload struct {
	SessionID string
	EventID   string
}

type TicketPayload struct {
	TicketID string
}

func EncodePair(sessionID, eventID string) string {
	q := url.Values{}
	q.Set("session", sessionID)
	q.Set("event", eventID)
	u := url.URL{
		Scheme:   Scheme,
		Host:     ActionPair,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func EncodeTicket(ticketID string) string {
	q := url.Values{}
	q.Set("id", ticketID)
	u := url.URL{
		Scheme:   Scheme,
		Host:     ActionTicket,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func ParsePair(raw string) (*PairPayload, error) {
	u, err := parse(raw, ActionPair)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	sessionID := q.Get("session")
	eventID := q.Get("event")
	if sessionID == "" || eventID == "" {
		return nil, apperrors.InvalidInput("pairing payload", "missing session or event")
	}

	return &PairPayload{SessionID: sessionID, EventID: eventID}, nil
}

func ParseTicket(raw string) (*TicketPayload, error) {
	u, err := parse(raw, ActionTicket)
	if err != nil {
		return nil, err
	}

	ticketID := u.Query().Get("id")
	if ticketID == "" {
		return nil, apperrors.InvalidInput("ticket payload", "missing ticket id")
	}

	return &TicketPayload{TicketID: ticketID}, nil
}

func parse(raw, action string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, apperrors.InvalidInput("payload", "not a valid URI").WithCause(err)
	}
	if u.Scheme != Scheme {
		return nil, apperrors.InvalidInput("payload", "unknown scheme")
	}
	if u.Host != action {
		return nil, apperrors.InvalidInput("payload", "unexpected action")
	}
	return u, nil
}
