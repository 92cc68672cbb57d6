// Package stage defines the contract between the workflow manager and
// the pipeline stages it drives.
package stage

import (
	"context"

	"scribed/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}
