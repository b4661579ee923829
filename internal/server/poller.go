package server

import (
	"context"

	"github.com/preston-bernstein/game-ingest-service/internal/poller"
)

// Poller defines the minimal poller behavior needed by the server.
type Poller interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
	Status() poller.Status
}

// Runner is a long-lived loop owned by the server, such as schedule sync.
type Runner interface {
	Run(ctx context.Context) error
}
