package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sessionwatch/sessionwatch/internal/analysis"
)

// AnalysisWorker runs anomaly-analysis passes in the background. Triggers
// are a best-effort handoff from the event dispatcher: the ingestion path
// never waits on a pass and never observes its errors — failures here are
// logged and dropped.
type AnalysisWorker struct {
	aggregator *analysis.Aggregator
	analyzer   *analysis.Analyzer

	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewAnalysisWorker creates a worker over the given aggregator and analyzer.
func NewAnalysisWorker(aggregator *analysis.Aggregator, analyzer *analysis.Analyzer) *AnalysisWorker {
	return &AnalysisWorker{
		aggregator: aggregator,
		analyzer:   analyzer,
		triggerCh:  make(chan struct{}, 1), // Buffered so trigger doesn't block
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// TriggerAnalysis requests an analysis pass. Never blocks; a pending
// trigger already covers the request.
func (w *AnalysisWorker) TriggerAnalysis() {
	select {
	case w.triggerCh <- struct{}{}:
		// Signal sent
	default:
		// Channel already has a pending signal, skip
	}
}

// Run is the worker loop. It exits when Stop is called or the context is
// cancelled.
func (w *AnalysisWorker) Run(ctx context.Context) {
	defer close(w.doneCh)

	log.Debug().Msg("Analysis worker loop started")

	for {
		select {
		case <-w.triggerCh:
			w.runPass(ctx)

		case <-w.stopCh:
			log.Debug().Msg("Analysis worker stopping")
			return

		case <-ctx.Done():
			log.Debug().Msg("Analysis worker context cancelled")
			return
		}
	}
}

// Stop signals the worker to stop and waits briefly for the loop to exit.
func (w *AnalysisWorker) Stop() {
	close(w.stopCh)
	select {
	case <-w.doneCh:
		log.Debug().Msg("Analysis worker stopped gracefully")
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Analysis worker stop timeout")
	}
}

// runPass executes one aggregate-and-analyze pass. All failures are
// advisory and observed only here.
func (w *AnalysisWorker) runPass(ctx context.Context) {
	started := time.Now()

	samples, err := w.aggregator.Aggregate(ctx)
	if err != nil {
		if errors.Is(err, analysis.ErrNoHistory) {
			log.Debug().Msg("No session history, skipping analysis")
			return
		}
		log.Error().Err(err).Msg("Failed to aggregate session history")
		return
	}

	result, err := w.analyzer.Analyze(ctx, samples)
	if err != nil {
		log.Error().Err(err).Int("samples", len(samples)).Msg("Analysis pass failed")
		return
	}

	for _, user := range result.Users {
		log.Info().
			Str("user_id", user.UserID).
			Float64("mean_last_active_at", user.MeanLastActive).
			Float64("std_last_active_at", user.StdLastActive).
			Int("observations", len(user.ZScores)).
			Str("anomaly_status", user.AnomalyStatus).
			Msg("User analysis")
	}

	log.Info().
		Int("samples", len(samples)).
		Int("users", len(result.Users)).
		Int("flagged", len(result.Flagged())).
		Dur("duration", time.Since(started)).
		Msg("Analysis pass completed")
}
