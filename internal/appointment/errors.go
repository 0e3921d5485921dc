package appointment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSlotUnavailable means the slot was taken or the run no longer fits.
	// The caller should re-query slots and resubmit.
	ErrSlotUnavailable         = errors.New("selected slot is no longer available")
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	// ErrStorage is returned after any provisional reservation was rolled back.
	ErrStorage = errors.New("booking could not be saved")
	// ErrSlotTaken is reported by repositories when another active
	// appointment already owns one of the slots.
	ErrSlotTaken = errors.New("slot already has an active appointment")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s %s", f.Field, f.Message))
	}
	return "invalid booking request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
