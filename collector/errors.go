package collector

import (
	"fmt"
)

// QueryError means the collector's query failed on the server or transport.
type QueryError struct {
	Collector string
	Query     string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("collector %s: query failed: %s", e.Collector, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// UpdateError means the rows could not be turned into gauge values.
type UpdateError struct {
	Collector string
	Query     string
	Err       error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("collector %s: update failed: %s", e.Collector, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}
