package ports

import "context"

// Session drives one subscription connection from dial to terminal failure.
// Run returns a non-nil error for every termination; callers reconnect by
// calling Run again.
type Session interface {
	Run(ctx context.Context) error
}
