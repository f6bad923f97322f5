package model

import "time"

type ScannerSession struct {
	ID          string        `db:"id" json:"id"`
	EventID     string        `db:"event_id" json:"eventId"`
	OrganizerID string        `db:"organizer_id" json:"organizerId"`
	DeviceID    string        `db:"device_id" json:"deviceId"`
	TokenHash   string        `db:"token_hash" json:"-"`
	Status      SessionStatus `db:"status" json:"status"`
	PairedAt    time.Time     `db:"paired_at" json:"pairedAt"`
	ExpiresAt   time.Time     `db:"expires_at" json:"expiresAt"`
	ScanCount   int           `db:"scan_count" json:"scanCount"`
	LastScanAt  *time.Time    `db:"last_scan_at" json:"lastScanAt,omitempty"`
	RevokedAt   *time.Time    `db:"revoked_at" json:"revokedAt,omitempty"`
	RevokedBy   *string       `db:"revoked_by" json:"revokedBy,omitempty"`
}

// IsValid reports whether the session may validate scans: still active and
// not past its expiry, even if the sweep has not caught up yet.
func (s *ScannerSession) IsValid(now time.Time) bool {
	return s.Status == SessionStatusActive && now.Before(s.ExpiresAt)
}

type CreateScannerSessionParams struct {
	EventID     string
	OrganizerID string
	DeviceID    string
	TokenHash   string
}
