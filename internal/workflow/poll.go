package workflow

import (
	"context"
	"time"

	"canary-speech-client/internal/canary"
	"canary-speech-client/internal/common/config"
	"canary-speech-client/internal/common/errors"
)

const progressEvery = 10

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// PollPolicy bounds the completion poll. MaxAttempts counts status answers;
// transient failures are retried within an attempt up to TransientRetries
// times, Interval apart.
type PollPolicy struct {
	Interval         time.Duration
	MaxAttempts      int
	TransientRetries int
	Sleep            SleepFunc
}

// PollPolicyFrom builds a policy from resolved configuration.
func PollPolicyFrom(cfg config.PollConfig) PollPolicy {
	return PollPolicy{
		Interval:         cfg.Interval,
		MaxAttempts:      cfg.MaxAttempts,
		TransientRetries: cfg.TransientRetries,
		Sleep:            SleepContext,
	}
}

// SleepContext is the production SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p PollPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep == nil {
		return SleepContext(ctx, d)
	}
	return p.Sleep(ctx, d)
}

// pollUntilDone polls until the assessment reaches a terminal status. It
// returns the number of attempts made. It never sleeps after a terminal
// status or after the final attempt.
func (o *Orchestrator) pollUntilDone(ctx context.Context, assessmentID string) (int, error) {
	p := o.poll
	log := o.logger.With(map[string]interface{}{"assessmentId": assessmentID})

	log.Info("Polling for scores", map[string]interface{}{
		"maxAttempts": p.MaxAttempts,
		"interval":    p.Interval.String(),
	})

	var waited time.Duration
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		o.metrics.IncPollAttempt()

		status, slept, err := o.pollOnce(ctx, assessmentID)
		waited += slept
		if err != nil {
			return attempt, err
		}

		switch {
		case status.Completed():
			log.Info("Scores ready", map[string]interface{}{"attempts": attempt})
			return attempt, nil
		case status.Failed():
			return attempt, errors.NewPollError(assessmentID, string(status))
		}

		fields := map[string]interface{}{"attempt": attempt, "status": string(status)}
		switch {
		case status != canary.StatusPending && status != canary.StatusProcessing:
			log.Warn("Unknown assessment status, still polling", fields)
		case attempt%progressEvery == 0:
			log.Info("Still processing", fields)
		default:
			log.Debug("Assessment not ready", fields)
		}

		if attempt == p.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, p.Interval); err != nil {
			return attempt, err
		}
		waited += p.Interval
	}

	return p.MaxAttempts, errors.NewTimeoutError(assessmentID, p.MaxAttempts, waited)
}

// pollOnce performs one attempt, absorbing up to TransientRetries retryable
// failures. It also returns how long it slept between retries.
func (o *Orchestrator) pollOnce(ctx context.Context, assessmentID string) (canary.Status, time.Duration, error) {
	p := o.poll
	var slept time.Duration

	for retry := 0; ; retry++ {
		status, err := o.api.PollStatus(ctx, assessmentID)
		if err == nil {
			return status, slept, nil
		}
		if ctx.Err() != nil {
			return "", slept, ctx.Err()
		}
		if !errors.IsRetryable(err) || retry >= p.TransientRetries {
			return "", slept, err
		}

		o.metrics.IncTransientRetry()
		o.logger.Warn("Poll failed, retrying...", map[string]interface{}{
			"error":       err.Error(),
			"retry":       retry + 1,
			"maxRetries":  p.TransientRetries,
			"nextRetryIn": p.Interval.String(),
		})
		if err := p.sleep(ctx, p.Interval); err != nil {
			return "", slept, err
		}
		slept += p.Interval
	}
}
