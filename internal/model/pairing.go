package model

import "time"

type PairingSession struct {
	ID             string     `db:"id" json:"id"`
	EventID        string     `db:"event_id" json:"eventId"`
	OrganizerID    string     `db:"organizer_id" json:"organizerId"`
	Code           string     `db:"code" json:"code"`
	QRPayload      string     `db:"qr_payload" json:"qrPayload"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	ExpiresAt      time.Time  `db:"expires_at" json:"expiresAt"`
	UsedAt         *time.Time `db:"used_at" json:"usedAt,omitempty"`
	UsedByDeviceID *string    `db:"used_by_device_id" json:"usedByDeviceId,omitempty"`
}

// IsValid reports whether the pairing session can still be claimed:
// not yet expired and never used.
func (p *PairingSession) IsValid(now time.Time) bool {
	return now.Before(p.ExpiresAt) && p.UsedAt == nil
}

type CreatePairingSessionParams struct {
	EventID     string
	OrganizerID string
}
