package scorequeue

import (
	"context"

	"github.com/oaracle/oaracle/internal/domain/conditions"
)

// HandlerQueue supports setting a handler for score delivery.
type HandlerQueue interface {
	conditions.ScoreQueue
	SetHandler(handler Handler)
	Close()
}

// Handler persists a delivered score.
type Handler func(ctx context.Context, record conditions.ScoreRecord) error
