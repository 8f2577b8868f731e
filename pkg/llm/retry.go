package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"golang.org/x/time/rate"
)

// transientMarkers are lower-case fragments of error messages worth retrying
var transientMarkers = []string{"timeout", "overloaded", "503", "temporarily"}

// IsTransient reports whether the error message looks like a temporary provider failure
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// SummarizationError is returned when a summarization request fails for good
type SummarizationError struct {
	Attempts  int
	Transient bool // the last failure was transient, the retry budget ran out
	Err       error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization failed after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap returns the last failure
func (e *SummarizationError) Unwrap() error { return e.Err }

// Backoff is a jittered exponential delay policy, usable as repeater.Strategy
type Backoff struct {
	Base   time.Duration // delay before the first retry
	Factor float64       // growth per retry
	Jitter float64       // relative spread, delay is scaled by [1-Jitter, 1+Jitter)

	random func() float64 // uniform source in [0,1), math/rand/v2 when nil
}

// DefaultBackoff starts at 1s, doubles and jitters by ±20%
var DefaultBackoff = Backoff{Base: time.Second, Factor: 2, Jitter: 0.2}

// Delay returns the wait before retry number retry (1-based) for a uniform draw u in [0,1)
func (b Backoff) Delay(retry int, u float64) time.Duration {
	if retry < 1 {
		retry = 1
	}
	d := float64(b.Base) * math.Pow(b.Factor, float64(retry-1))
	return time.Duration(math.Round(d * (1 - b.Jitter + 2*b.Jitter*u)))
}

// NextDelay implements repeater.Strategy, every call draws a fresh jitter
func (b Backoff) NextDelay(attempt int) time.Duration {
	random := b.random
	if random == nil {
		random = rand.Float64
	}
	return b.Delay(attempt, random())
}

// SummarizerConfig holds retry and pacing settings
type SummarizerConfig struct {
	MaxRetries        int           // attempts per request, including the first one
	Timeout           time.Duration // per attempt, 0 leaves it to the client
	RequestsPerSecond float64       // 0 disables rate limiting
	Backoff           Backoff       // zero value means DefaultBackoff
}

// errCritical marks failures repeater must not retry
var errCritical = errors.New("critical llm error")

// criticalError wraps an error to signal repeater to stop retrying
type criticalError struct {
	err error
}

func (e *criticalError) Error() string        { return e.err.Error() }
func (e *criticalError) Unwrap() error        { return e.err }
func (e *criticalError) Is(target error) bool { return target == errCritical }

// Summarizer renders prompts and calls the client with bounded jittered retries.
// It is safe for concurrent use, every call runs its own repeater.
type Summarizer struct {
	client     Client
	maxRetries int
	timeout    time.Duration
	backoff    Backoff
	limiter    *rate.Limiter
	strategy   repeater.Strategy
}

// NewSummarizer wraps client with retries
func NewSummarizer(client Client, cfg SummarizerConfig) *Summarizer {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 5
	}
	if cfg.Backoff.Base == 0 {
		cfg.Backoff = DefaultBackoff
	}
	s := &Summarizer{
		client:     client,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
		backoff:    cfg.Backoff,
		strategy:   cfg.Backoff,
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return s
}

// Summarize renders template with payload and returns the generated text.
// Transient failures are retried up to the configured attempts, anything else fails at once.
func (s *Summarizer) Summarize(ctx context.Context, template string, payload Payload) (string, error) {
	prompt, err := RenderPrompt(template, payload)
	if err != nil {
		return "", &SummarizationError{Err: err}
	}

	var text string
	attempts := 0
	err = repeater.NewWithStrategy(s.maxRetries, s.strategy).Do(ctx, func() error {
		if ctx.Err() != nil {
			return &criticalError{err: ctx.Err()}
		}
		attempts++
		res, err := s.attempt(ctx, prompt)
		if err == nil {
			text = res
			return nil
		}
		if ctx.Err() != nil || !IsTransient(err) {
			return &criticalError{err: err}
		}
		if attempts < s.maxRetries {
			lgr.Printf("[WARN] transient error calling llm (attempt %d/%d): %v, retrying", attempts, s.maxRetries, err)
		}
		return err
	}, errCritical)
	if err == nil {
		return text, nil
	}

	var ce *criticalError
	if errors.As(err, &ce) {
		err = ce.err
	}
	return "", &SummarizationError{Attempts: attempts, Transient: ctx.Err() == nil && IsTransient(err), Err: err}
}

// attempt makes one call, limited by rate and the per attempt timeout
func (s *Summarizer) attempt(ctx context.Context, prompt string) (string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	if s.timeout <= 0 {
		return s.client.Complete(ctx, prompt)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := s.client.Complete(attemptCtx, prompt)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("request timeout after %s: %w", s.timeout, err)
	}
	return text, err
}
