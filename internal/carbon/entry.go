package carbon

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// AnonymousUserID owns entries logged without an authenticated user.
	AnonymousUserID = "default_user"
	// UnknownUserID groups entries whose owner is missing.
	UnknownUserID = "unknown"
)

// Entry is one logged activity with its derived impact. Entries are replaced
// wholesale on update; CO2Impact is always recomputed from Amount and
// ActivityDetail.
//
// Records decoded from a store use NaN for a missing impact and the zero time
// for a missing timestamp. Aggregations skip such records.
type Entry struct {
	ID             string       `json:"id"`
	ActivityType   ActivityType `json:"activity_type"`
	ActivityDetail string       `json:"activity_detail"`
	Amount         float64      `json:"amount"`
	Description    string       `json:"description"`
	CO2Impact      float64      `json:"co2_impact"`
	Timestamp      time.Time    `json:"timestamp"`
	UserID         string       `json:"user_id"`
}

// EntryInput carries the caller-editable fields of an entry.
type EntryInput struct {
	ActivityType   ActivityType
	ActivityDetail string
	Amount         float64
	Description    string
	UserID         string
}

// Validate checks the input against the catalog. Unknown details are accepted
// and later valued at factor 0; a known detail filed under another type is not.
func (in EntryInput) Validate() error {
	if !knownType(in.ActivityType) {
		return fmt.Errorf("%w: %q", ErrInvalidActivityType, in.ActivityType)
	}
	if strings.TrimSpace(in.ActivityDetail) == "" {
		return fmt.Errorf("%w: activity detail is required", ErrDetailMismatch)
	}
	if e, ok := Lookup(in.ActivityDetail); ok && e.Type != in.ActivityType {
		return fmt.Errorf("%w: %q is a %s detail", ErrDetailMismatch, in.ActivityDetail, e.Type)
	}
	return checkAmount(in.Amount)
}

// NewEntry validates in and builds an entry stamped with now. The ID is left
// empty for the store to assign.
func NewEntry(in EntryInput, now time.Time) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	impact, err := Impact(in.ActivityDetail, in.Amount)
	if err != nil {
		return Entry{}, err
	}
	owner := strings.TrimSpace(in.UserID)
	if owner == "" {
		owner = AnonymousUserID
	}
	return Entry{
		ActivityType:   in.ActivityType,
		ActivityDetail: in.ActivityDetail,
		Amount:         in.Amount,
		Description:    in.Description,
		CO2Impact:      impact,
		Timestamp:      now,
		UserID:         owner,
	}, nil
}

// Revise returns a copy of e with the editable fields replaced by in. ID,
// Timestamp and UserID are preserved.
func (e Entry) Revise(in EntryInput) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	impact, err := Impact(in.ActivityDetail, in.Amount)
	if err != nil {
		return Entry{}, err
	}
	e.ActivityType = in.ActivityType
	e.ActivityDetail = in.ActivityDetail
	e.Amount = in.Amount
	e.Description = in.Description
	e.CO2Impact = impact
	return e, nil
}

// KnownDetail reports whether the entry's detail exists in the catalog.
func (e Entry) KnownDetail() bool {
	_, ok := Lookup(e.ActivityDetail)
	return ok
}

// WellFormed reports whether the entry can take part in an aggregation.
func (e Entry) WellFormed() bool {
	return !e.Timestamp.IsZero() && !math.IsNaN(e.CO2Impact) && !math.IsInf(e.CO2Impact, 0)
}

// Owner returns the user id, substituting UnknownUserID when it is blank.
func (e Entry) Owner() string {
	if strings.TrimSpace(e.UserID) == "" {
		return UnknownUserID
	}
	return e.UserID
}

func knownType(t ActivityType) bool {
	for _, known := range ActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}
