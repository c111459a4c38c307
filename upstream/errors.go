package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedBody is returned when a 2xx response body is not valid JSON.
var ErrMalformedBody = errors.New("upstream: response body is not valid JSON")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL    string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: %s returned %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// IsStatus reports whether err carries an upstream response with status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
