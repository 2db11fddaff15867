package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/sessionwatch/sessionwatch/internal/models"
	"github.com/sessionwatch/sessionwatch/internal/store"
)

// ErrNoHistory signals that the store holds no session records, so there is
// nothing to analyze and the pipeline short-circuits.
var ErrNoHistory = errors.New("no session history to analyze")

// Sample is the per-record projection handed to the analysis service.
// Grouping by user is performed by the service, not here.
type Sample struct {
	UserID       string `json:"userId"`
	CreatedAt    int64  `json:"createdAt"`
	LastActiveAt int64  `json:"lastActiveAt"`
	AbandonAt    int64  `json:"abandonAt"`
	Status       string `json:"status"`
	ClientIP     string `json:"clientIp"`
	UserAgent    string `json:"userAgent"`
}

// Aggregator bulk-scans the session store and projects each record into an
// analysis sample. It is strictly read-only.
type Aggregator struct {
	sessions store.SessionStore
}

// NewAggregator creates an aggregator over the given session store.
func NewAggregator(sessions store.SessionStore) *Aggregator {
	return &Aggregator{
		sessions: sessions,
	}
}

// Aggregate returns all stored sessions as one ordered sample sequence.
// Returns ErrNoHistory when the store is empty.
func (a *Aggregator) Aggregate(ctx context.Context) ([]Sample, error) {
	records, err := a.sessions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan session records: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrNoHistory
	}

	samples := make([]Sample, 0, len(records))
	for _, record := range records {
		samples = append(samples, projectSample(record))
	}

	return samples, nil
}

func projectSample(record *models.SessionRecord) Sample {
	return Sample{
		UserID:       record.UserID,
		CreatedAt:    record.CreatedAt,
		LastActiveAt: record.LastActiveAt,
		AbandonAt:    record.AbandonAt,
		Status:       record.Status,
		ClientIP:     record.ClientIP,
		UserAgent:    record.UserAgent,
	}
}
