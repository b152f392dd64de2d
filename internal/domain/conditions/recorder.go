package conditions

import (
	"context"
	"log/slog"

	apperrors "github.com/oaracle/oaracle/pkg/errors"
	"github.com/oaracle/oaracle/pkg/metrics"
)

// Recorder persists queued scores and announces them downstream.
type Recorder struct {
	repo      Repository
	publisher ScorePublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewRecorder constructs the score queue handler.
func NewRecorder(repo Repository, publisher ScorePublisher, m *metrics.Metrics, logger *slog.Logger) *Recorder {
	return &Recorder{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logger.With("component", "conditions.recorder"),
	}
}

// Record stores the score and publishes it. A publish failure does not undo the write.
func (r *Recorder) Record(ctx context.Context, record ScoreRecord) error {
	if err := r.repo.SaveScore(ctx, record); err != nil {
		r.metrics.ScoresPersisted.WithLabelValues(metrics.OutcomeError).Inc()
		r.logger.Error("score not stored", "location_id", record.LocationID, "error", err)
		return apperrors.Wrap(apperrors.CodeStorage, "failed to store score", err)
	}
	r.metrics.ScoresPersisted.WithLabelValues(metrics.OutcomeSuccess).Inc()

	if r.publisher == nil {
		return nil
	}
	if err := r.publisher.PublishScore(ctx, record); err != nil {
		r.logger.Warn("score event not published", "location_id", record.LocationID, "error", err)
	}
	return nil
}
