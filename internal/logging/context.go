package logging

import (
	"context"
	"log/slog"

	"scribed/internal/services"
)

// WithContext returns a logger annotated with any correlation values
// carried by ctx (job id, stage, request id).
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	if id, ok := services.JobIDFromContext(ctx); ok {
		logger = logger.With(Int64(FieldJobID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		logger = logger.With(String(FieldStage, stage))
	}
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		logger = logger.With(String(FieldRequestID, requestID))
	}
	return logger
}
