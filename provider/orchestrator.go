package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"Artsy/lib/sl"
)

const (
	defaultBackoffBase = 2 * time.Second
	defaultBackoffCap  = 30 * time.Second
)

// Orchestrator sequences generation attempts across a ranked provider list.
// Providers are tried strictly in order; transient failures are retried on
// the same provider up to its retry budget, everything else falls through to
// the next provider. Attempts within one Generate call are sequential, no
// speculative parallel calls.
type Orchestrator struct {
	providers   []Descriptor
	exec        *Executor
	log         *slog.Logger
	backoffBase time.Duration
	backoffCap  time.Duration
}

func NewOrchestrator(providers []Descriptor, exec *Executor, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		providers:   providers,
		exec:        exec,
		log:         log.With(sl.Module("orchestrator")),
		backoffBase: defaultBackoffBase,
		backoffCap:  defaultBackoffCap,
	}
}

// SetBackoff overrides the retry backoff schedule. Intended for tests and
// for deployment-level tuning, not per provider.
func (o *Orchestrator) SetBackoff(base, limit time.Duration) {
	o.backoffBase = base
	o.backoffCap = limit
}

// Generate runs the full retry/fallback sequence for one request. The
// context bounds the whole sequence: cancellation is honored between
// attempts and inside backoff waits. Always returns a finished result,
// never an error.
func (o *Orchestrator) Generate(ctx context.Context, req GenerationRequest) GenerationResult {
	if len(o.providers) == 0 {
		return GenerationResult{UserMessage: "image generation is not configured"}
	}

	log := o.log.With(slog.String("request", req.Id), sl.User(req.UserId))
	var reasons []string

	for _, p := range o.providers {
		retriesLeft := p.MaxRetries
		attempt := 1

	attempts:
		for {
			if ctx.Err() != nil {
				return GenerationResult{UserMessage: "request cancelled"}
			}

			started := time.Now()
			raw, err := o.exec.Do(ctx, p, req.Prompt)

			var outcome Outcome
			if err != nil {
				outcome = Outcome{Kind: OutcomeFatalInternal, Err: err}
			} else {
				outcome = Classify(raw, p.MinImageBytes)
			}

			logAttempt(log, Attempt{
				Provider:      p.Id,
				AttemptNumber: attempt,
				StartedAt:     started,
				Elapsed:       time.Since(started),
				Outcome:       outcome.Kind,
				Reason:        outcome.Reason,
			})

			switch outcome.Kind {
			case OutcomeSuccess:
				log.With(slog.String("provider", p.Id)).Info("image generated")
				return GenerationResult{
					Success:      true,
					ImageBytes:   outcome.Payload,
					ProviderUsed: p.Id,
				}
			case OutcomeRetry:
				if retriesLeft == 0 {
					reasons = append(reasons, fmt.Sprintf("%s: %s", p.Id, outcome.Reason))
					break attempts
				}
				if !o.wait(ctx, o.backoff(attempt)) {
					return GenerationResult{UserMessage: "request cancelled"}
				}
				retriesLeft--
				attempt++
			case OutcomeFailover:
				reasons = append(reasons, fmt.Sprintf("%s: %s", p.Id, outcome.Reason))
				break attempts
			case OutcomeFatalUser:
				return GenerationResult{UserMessage: outcome.Message}
			case OutcomeFatalInternal:
				log.Error("attempt failed", sl.Err(outcome.Err))
				return GenerationResult{UserMessage: "internal error"}
			}
		}
	}

	return GenerationResult{
		UserMessage: "all providers exhausted: " + strings.Join(reasons, "; "),
	}
}

// GenerateImage wraps Generate for callers that only have a user and a
// prompt. Implements core.ImageService.
func (o *Orchestrator) GenerateImage(ctx context.Context, userId int64, prompt string) GenerationResult {
	return o.Generate(ctx, NewGenerationRequest(userId, prompt))
}

func logAttempt(log *slog.Logger, a Attempt) {
	log.With(
		slog.String("provider", a.Provider),
		slog.Int("attempt", a.AttemptNumber),
		slog.Duration("elapsed", a.Elapsed),
		slog.String("reason", a.Reason),
	).Debug("attempt finished")
}

func (o *Orchestrator) backoff(attempt int) time.Duration {
	d := o.backoffBase * time.Duration(attempt)
	if d > o.backoffCap {
		d = o.backoffCap
	}
	return d
}

// wait sleeps for d unless the context finishes first.
func (o *Orchestrator) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
