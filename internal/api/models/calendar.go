package models

import "time"

// LocalEventRequest is the body of POST /v1/calendar/events.
type LocalEventRequest struct {
	Title       string    `json:"title"`
	Type        string    `json:"type,omitempty"`
	Status      string    `json:"status,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
}

// ConnectRequest is the body of POST /v1/calendar/connections/{provider}:connect.
// An empty code means the user dismissed the provider's consent screen.
type ConnectRequest struct {
	Code        string `json:"code"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

// ConnectionView is a provider connection as shown to clients.
type ConnectionView struct {
	Provider    string     `json:"provider"`
	State       string     `json:"state"`
	Email       string     `json:"email,omitempty"`
	IsConnected bool       `json:"isConnected"`
	ExpiresAt   *Timestamp `json:"expiresAt,omitempty"`
	UpdatedAt   *Timestamp `json:"updatedAt,omitempty"`
}

// ConnectResponse reports a connect attempt.
type ConnectResponse struct {
	Provider string `json:"provider"`
	Outcome  string `json:"outcome"`
	State    string `json:"state"`
	Message  string `json:"message,omitempty"`
}
