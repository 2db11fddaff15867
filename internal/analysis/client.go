package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

const (
	// maxAttempts bounds the total number of generateContent calls per
	// analysis pass, including the first.
	maxAttempts = 3

	// defaultBaseDelay is the delay unit for the linear retry backoff:
	// the wait before attempt k is (k-1) * baseDelay.
	defaultBaseDelay = time.Second
)

// Analyzer orchestrates one analysis pass: prompt construction, the
// rate-limit-governed call to the generative service, and response
// validation. Only *RateLimitError retries; every other failure aborts
// immediately.
type Analyzer struct {
	client    GenerativeClient
	baseDelay time.Duration
}

// NewAnalyzer creates an analyzer over the given generative client.
func NewAnalyzer(client GenerativeClient) *Analyzer {
	return &Analyzer{
		client:    client,
		baseDelay: defaultBaseDelay,
	}
}

// WithBaseDelay overrides the retry delay unit. Used by tests to keep
// retry runs fast.
func (a *Analyzer) WithBaseDelay(d time.Duration) *Analyzer {
	a.baseDelay = d
	return a
}

// Analyze runs the analysis over the aggregated history and returns the
// validated per-user result.
func (a *Analyzer) Analyze(ctx context.Context, samples []Sample) (*Result, error) {
	if len(samples) == 0 {
		return nil, ErrNoHistory
	}

	prompt, err := BuildPrompt(samples)
	if err != nil {
		return nil, err
	}

	attempt := 0
	operation := func() (string, error) {
		attempt++

		text, err := a.client.GenerateContent(ctx, prompt)
		if err == nil {
			return text, nil
		}

		var rateLimited *RateLimitError
		if !errors.As(err, &rateLimited) {
			return "", backoff.Permanent(err)
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Msg("Analysis call rate limited, will retry")

		return "", err
	}

	text, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(newLinearBackOff(a.baseDelay)),
		backoff.WithMaxTries(maxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("analysis call failed after %d attempt(s): %w", attempt, err)
	}

	result, err := ParseResult(text)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// linearBackOff waits base, 2*base, ... between successive attempts.
type linearBackOff struct {
	base time.Duration
	n    int64
}

func newLinearBackOff(base time.Duration) *linearBackOff {
	return &linearBackOff{base: base}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.base
}

func (b *linearBackOff) Reset() {
	b.n = 0
}

// BuildPrompt serializes the history and wraps it in the fixed analysis
// instructions. The output shape is additionally pinned server-side via the
// response schema.
func BuildPrompt(samples []Sample) (string, error) {
	history, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize session history: %w", err)
	}

	return fmt.Sprintf(`Analyze the following user session log data for anomalies.

For each userId, compute the mean and standard deviation of lastActiveAt,
then compute the Z-score of every lastActiveAt observation for that user.
Flag a user when any observation has |Z-score| > 3: set anomaly_status to
%q for flagged users and %q otherwise.

Respond with a JSON array containing one object per user with the fields
userID, mean_lastActiveAt, std_lastActiveAt, z_scores (array of objects
with lastActiveAt and z_score) and anomaly_status.

Session log data:

%s`, StatusFlagged, StatusNormal, history), nil
}
