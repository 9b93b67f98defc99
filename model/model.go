// Package model holds the documents stored by the service and the domain
// rules that apply to them.
//
// A Location is the unit of storage: its conferences, their presentations and
// their attendee ids are embedded in the location document. Users live in
// their own collection and are referenced by id only.
package model

import (
	"strings"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson/primitive"

	apperr "conference-webapp/errors"
)

const dateLayout = "2006-01-02"

// Stamp returns the timestamp of a mutation that follows prev. Values are
// truncated to milliseconds, the precision of a BSON datetime, and always
// land strictly after prev.
func Stamp(now, prev time.Time) time.Time {
	now = now.UTC().Truncate(time.Millisecond)
	if !now.After(prev) {
		return prev.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return now
}

func ParseId(field, hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, oops.
			Code("INVALID_ID").
			With("field", field).
			With("value", hex).
			Wrapf(apperr.ErrInvalidIdentifier, "%s %q", field, hex)
	}
	return id, nil
}

// ParseDate accepts a calendar date (2025-03-01) or an RFC 3339 timestamp.
func ParseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, invalid(field, "%s must be a date formatted as YYYY-MM-DD, got %q", field, value)
	}
	return t.UTC(), nil
}

func invalid(field, format string, args ...any) error {
	return oops.
		Code("VALIDATION_FAILED").
		With("field", field).
		Wrapf(apperr.ErrValidation, format, args...)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "%s must not be blank", field)
	}
	return nil
}

func nonNegative(field string, value int) error {
	if value < 0 {
		return invalid(field, "%s must not be negative", field)
	}
	return nil
}
