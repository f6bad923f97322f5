// Package ticket talks to the external Ticket Service, the sole owner of
// ticket truth. The scan path never caches or duplicates its answers.
package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/doorcrew/scanner-server-go/internal/errors"
)

type Status string

const (
	StatusValid    Status = "valid"
	StatusUsed     Status = "used"
	StatusRefunded Status = "refunded"
	StatusNotFound Status = "not_found"
)

type Info struct {
	TicketID     string `json:"ticketId"`
	Status       Status `json:"status"`
	AttendeeName string `json:"attendeeName,omitempty"`
	TicketType   string `json:"ticketType,omitempty"`
}

type Client interface {
	FetchTicketStatus(ctx context.Context, ticketID, eventID string) (*Info, error)
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPClient) FetchTicketStatus(ctx context.Context, ticketID, eventID string) (*Info, error) {
	lookupURL := fmt.Sprintf("%s/tickets/%s?eventId=%s",
		c.baseURL, url.PathEscape(ticketID), url.QueryEscape(eventID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, apperrors.TicketLookup(err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("ticketId", ticketID).
			Dur("elapsed", elapsed).
			Msg("ticket lookup error")
		return nil, apperrors.TicketLookup(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &Info{TicketID: ticketID, Status: StatusNotFound}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Str("ticketId", ticketID).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("ticket lookup failed")
		return nil, apperrors.TicketLookup(fmt.Errorf("ticket service returned status %d", resp.StatusCode))
	}

	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apperrors.TicketLookup(fmt.Errorf("decode response: %w", err))
	}
	info.TicketID = ticketID

	log.Debug().
		Str("ticketId", ticketID).
		Str("ticketStatus", string(info.Status)).
		Dur("elapsed", elapsed).
		Msg("ticket lookup successful")

	return &info, nil
}
