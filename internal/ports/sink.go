package ports

import (
	"context"

	"github.com/CasaMack/tibber-subscribe/internal/domain"
)

// Sink persists single measurement points. Implementations are reused
// sequentially across sessions and need not be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, p domain.Point) error
	Name() string
	Close() error
}
