package todo

import (
	"errors"
	"strings"
	"time"
)

// Input is the create/replace body. Date and time arrive as separate fields
// and are composed into start/end instants before anything touches the
// store. Note start <= end is deliberately not enforced; the schema never
// had scheduling-conflict semantics.
type Input struct {
	Text        string `json:"text"`
	Description string `json:"description"`
	Status      string `json:"status"`
	StartDate   string `json:"startDate"`
	StartTime   string `json:"startTime"`
	EndDate     string `json:"endDate"`
	EndTime     string `json:"endTime"`
}

// Validate normalizes the input and returns the composed instants.
func (in *Input) Validate() (startAt, endAt time.Time, err error) {
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" {
		return startAt, endAt, errors.New("text is required")
	}
	if !validStatus(in.Status) {
		return startAt, endAt, errors.New("status must be one of pending, active, done")
	}
	startAt, err = ComposeInstant(in.StartDate, in.StartTime)
	if err != nil {
		return startAt, endAt, err
	}
	endAt, err = ComposeInstant(in.EndDate, in.EndTime)
	if err != nil {
		return startAt, endAt, err
	}
	return startAt, endAt, nil
}

// PatchInput is the partial-update body. Nil means "leave unchanged".
// A date field and its clock field must be patched together so a half
// instant can never be written.
type PatchInput struct {
	Text        *string `json:"text"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	StartDate   *string `json:"startDate"`
	StartTime   *string `json:"startTime"`
	EndDate     *string `json:"endDate"`
	EndTime     *string `json:"endTime"`
}

// ValidationError marks a patch rejected before it touched the store.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(reason string) error { return &ValidationError{Reason: reason} }

type patchSet struct {
	text        *string
	description *string
	status      *string
	startAt     *time.Time
	endAt       *time.Time
}

func (p *PatchInput) validate() (patchSet, error) {
	var out patchSet
	if p.Text != nil {
		trimmed := strings.TrimSpace(*p.Text)
		if trimmed == "" {
			return out, invalid("text must not be empty")
		}
		out.text = &trimmed
	}
	if p.Description != nil {
		out.description = p.Description
	}
	if p.Status != nil {
		if !validStatus(*p.Status) {
			return out, invalid("status must be one of pending, active, done")
		}
		out.status = p.Status
	}
	if (p.StartDate == nil) != (p.StartTime == nil) {
		return out, invalid("startDate and startTime must be patched together")
	}
	if p.StartDate != nil {
		t, err := ComposeInstant(*p.StartDate, *p.StartTime)
		if err != nil {
			return out, invalid(err.Error())
		}
		out.startAt = &t
	}
	if (p.EndDate == nil) != (p.EndTime == nil) {
		return out, invalid("endDate and endTime must be patched together")
	}
	if p.EndDate != nil {
		t, err := ComposeInstant(*p.EndDate, *p.EndTime)
		if err != nil {
			return out, invalid(err.Error())
		}
		out.endAt = &t
	}
	if out.text == nil && out.description == nil && out.status == nil && out.startAt == nil && out.endAt == nil {
		return out, ErrEmptyPatch
	}
	return out, nil
}
