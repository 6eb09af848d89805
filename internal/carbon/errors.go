package carbon

import "errors"

var (
	// ErrInvalidAmount is returned for non-numeric, non-finite or negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidGoal is returned when a weekly goal is not a positive number.
	ErrInvalidGoal = errors.New("invalid goal")
	// ErrInvalidActivityType is returned for categories outside Transport, Meal and Energy.
	ErrInvalidActivityType = errors.New("invalid activity type")
	// ErrDetailMismatch is returned when a catalog detail belongs to another activity type.
	ErrDetailMismatch = errors.New("activity detail does not match activity type")
)
