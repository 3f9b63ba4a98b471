package dto

import "time"

// NotificationItem is derived lazily from request history; nothing is
// pushed or stored for it.
type NotificationItem struct {
	RequestID string    `json:"request_id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}
