package model

type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusRevoked SessionStatus = "revoked"
	SessionStatusExpired SessionStatus = "expired"
)

// Terminal reports whether the status has no outgoing transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusRevoked || s == SessionStatusExpired
}

type ScanStatus string

const (
	ScanStatusValid          ScanStatus = "valid"
	ScanStatusAlreadyUsed    ScanStatus = "alreadyUsed"
	ScanStatusRefunded       ScanStatus = "refunded"
	ScanStatusWrongEvent     ScanStatus = "wrongEvent"
	ScanStatusInvalidTicket  ScanStatus = "invalidTicket"
	ScanStatusSessionInvalid ScanStatus = "sessionInvalid"
)
