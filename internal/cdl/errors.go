package cdl

import (
	"errors"
	"fmt"
)

// ErrRosterMissing is returned when metadata sync starts before the roster was fetched.
var ErrRosterMissing = errors.New("patient roster missing: run the patients command first")

// StatusError reports a non-200 response from a paginated endpoint.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}
