// Package events defines the payloads published when carbon entries change.
package events

import "time"

// Event types recorded in the outbox and carried in the event_type header.
const (
	TypeEntryLogged  = "entry.logged"
	TypeEntryRevised = "entry.revised"
	TypeEntryDeleted = "entry.deleted"
)

// EntryLogged is emitted when a new entry is accepted.
type EntryLogged struct {
	EntryID        string    `json:"entry_id"`
	UserID         string    `json:"user_id"`
	ActivityType   string    `json:"activity_type"`
	ActivityDetail string    `json:"activity_detail"`
	Amount         float64   `json:"amount"`
	CO2Impact      float64   `json:"co2_impact"`
	Description    string    `json:"description"`
	Timestamp      time.Time `json:"timestamp"`
}

// EntryRevised carries the full entry after an owner edit. CO2Impact is the
// recomputed value.
type EntryRevised struct {
	EntryID        string    `json:"entry_id"`
	UserID         string    `json:"user_id"`
	ActivityType   string    `json:"activity_type"`
	ActivityDetail string    `json:"activity_detail"`
	Amount         float64   `json:"amount"`
	CO2Impact      float64   `json:"co2_impact"`
	Description    string    `json:"description"`
	Timestamp      time.Time `json:"timestamp"`
	RevisedAt      time.Time `json:"revised_at"`
}

// EntryDeleted tombstones an entry.
type EntryDeleted struct {
	EntryID   string    `json:"entry_id"`
	UserID    string    `json:"user_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
