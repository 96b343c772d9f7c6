package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx response from the catalog service, with the status
// code preserved so callers can branch (a 409 on rename is a name collision,
// a 404 on the duplicate fallback means the feature is absent).
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("catalog service: %d %s: %s", e.Code, http.StatusText(e.Code), e.Detail)
	}
	return fmt.Sprintf("catalog service: %d %s", e.Code, http.StatusText(e.Code))
}

// IsConflict reports whether err is a 409 rejection (e.g. rename collision).
func IsConflict(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusConflict
}

// IsNotFound reports whether err is a 404 rejection.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// IsRejection reports whether err carries an HTTP status at all, as opposed
// to a transport failure that never produced a response.
func IsRejection(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}
