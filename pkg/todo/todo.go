// Package todo implements owner-scoped CRUD over the task collection.
// Every mutation filters by id AND owner in the same statement that writes,
// so ownership is checked by the store's conditional-write atomicity and a
// wrong owner is indistinguishable from a missing row.
package todo

import (
	"errors"
	"time"
)

// ErrNotFound collapses "no such id" and "id owned by someone else" into a
// single outcome. Intentional: ownership is never leaked as a distinct
// signal.
var ErrNotFound = errors.New("todo not found")

// ErrEmptyPatch is returned when a partial update names no fields.
var ErrEmptyPatch = errors.New("no fields to update")

const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusDone    = "done"
)

func validStatus(s string) bool {
	switch s {
	case StatusPending, StatusActive, StatusDone:
		return true
	}
	return false
}

type Todo struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"userId"`
	Text        string    `json:"text"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	StartAt     time.Time `json:"startAt"`
	EndAt       time.Time `json:"endAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

const (
	dateLayout    = "2006-01-02"
	timeLayout    = "15:04"
	instantLayout = dateLayout + "T" + timeLayout
)

// ComposeInstant combines separate date ("2024-03-01") and clock ("09:00")
// fields into one instant, rejecting invalid combinations instead of
// producing a garbage timestamp.
func ComposeInstant(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation(instantLayout, date+"T"+clock, time.UTC)
	if err != nil {
		return time.Time{}, errors.New("invalid date/time combination: " + date + "T" + clock)
	}
	return t, nil
}
