package holds

import (
	"encoding/json"
	"time"
)

// envelope mirrors the service's standard response body
type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     json.RawMessage `json:"errors,omitempty"`
}

type holdRequest struct {
	TableID string `json:"table_id"`
	Date    string `json:"date"`
	Time    string `json:"time"`
}

type sessionRequest struct {
	CustomerID string `json:"customer_id"`
}

// Session is an issued session token; HolderID identifies this session's holds
type Session struct {
	Token     string    `json:"token"`
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type dayHours struct {
	Weekday int    `json:"weekday"`
	Open    string `json:"open"`
	Close   string `json:"close"`
}

type scheduleResponse struct {
	BarID               string     `json:"bar_id"`
	SlotIntervalMinutes int        `json:"slot_interval_minutes"`
	Days                []dayHours `json:"days"`
}
