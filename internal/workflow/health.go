package workflow

import (
	"context"

	"scribed/internal/stage"
)

// HealthChecks evaluates every registered stage handler.
func (m *Manager) HealthChecks(ctx context.Context) []stage.Health {
	results := make([]stage.Health, 0, len(m.stages))
	for _, pipelineStage := range m.stages {
		results = append(results, pipelineStage.Handler.HealthCheck(ctx))
	}
	return results
}
