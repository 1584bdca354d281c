package efficiency

import (
	"errors"
	"fmt"
)

// Error classes surfaced to callers. Use errors.Is to classify.
var (
	ErrInvalidPeriodData   = errors.New("invalid period data")
	ErrEmptyPeriodSet      = errors.New("no periods provided")
	ErrMalformedIdentifier = errors.New("malformed identifier")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrNotFound            = errors.New("not found")
	ErrPersistenceFailure  = errors.New("persistence failure")
)

// PeriodError pinpoints the period and field that failed validation.
type PeriodError struct {
	Field  string
	Reason string
	Period string
	Index  int // position in the request; -1 when validating a lone period
}

func (e *PeriodError) Error() string {
	where := e.Period
	if e.Index >= 0 {
		if where == "" {
			where = fmt.Sprintf("periods[%d]", e.Index)
		} else {
			where = fmt.Sprintf("periods[%d] (%s)", e.Index, e.Period)
		}
	}
	if where == "" {
		return fmt.Sprintf("%s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", where, e.Field, e.Reason)
}

// Unwrap classifies every PeriodError as ErrInvalidPeriodData.
func (*PeriodError) Unwrap() error {
	return ErrInvalidPeriodData
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriodData) ||
		errors.Is(err, ErrEmptyPeriodSet) ||
		errors.Is(err, ErrMalformedIdentifier) ||
		errors.Is(err, ErrInvalidRequest)
}
