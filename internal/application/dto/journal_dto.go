package dto

import "time"

// LogEventRequest entrada a anexar al diario fiscal (flujo interno y API).
type LogEventRequest struct {
	EventType     string `json:"event_type"`
	Severity      string `json:"severity"`
	DeviceID      string `json:"device_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	ActorID       string `json:"actor_id,omitempty"`
	Details       string `json:"details"`
	IPAddress     string `json:"ip_address,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
}

// JournalEntryResponse entrada inmutable del diario.
type JournalEntryResponse struct {
	ID            string    `json:"id"`
	Day           string    `json:"day"`
	EventType     string    `json:"event_type"`
	Severity      string    `json:"severity"`
	DeviceID      string    `json:"device_id,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	ActorID       string    `json:"actor_id,omitempty"`
	Details       string    `json:"details"`
	Timestamp     time.Time `json:"timestamp"`
}
