package model

type ScanRequest struct {
	SessionID string `json:"sessionId"`
	EventID   string `json:"eventId"`
	DeviceID  string `json:"deviceId"`
	TicketQR  string `json:"ticketQr"`
}

type ScanResult struct {
	TicketID     string     `json:"ticketId,omitempty"`
	Status       ScanStatus `json:"status"`
	AttendeeName string     `json:"attendeeName,omitempty"`
	TicketType   string     `json:"ticketType,omitempty"`
	Message      string     `json:"message"`
}
