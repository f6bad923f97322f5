package model

import "time"

type ScannerDevice struct {
	DeviceID     string    `db:"device_id" json:"deviceId"`
	DeviceName   string    `db:"device_name" json:"deviceName"`
	Platform     string    `db:"platform" json:"platform,omitempty"`
	LastActiveAt time.Time `db:"last_active_at" json:"lastActiveAt"`
}
