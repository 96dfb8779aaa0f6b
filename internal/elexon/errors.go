package elexon

import "fmt"

// StatusError reports a non-success HTTP status from the BMRS API. The core
// does not interpret HTTP semantics beyond success vs not-success; anything
// other than 200 fails the whole attempt.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bmrs %s returned status %d", e.Endpoint, e.Code)
}

// FetchError reports that every fetch attempt was exhausted. It wraps the
// last transport or status error seen.
type FetchError struct {
	Attempts int
	LastErr  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *FetchError) Unwrap() error {
	return e.LastErr
}
