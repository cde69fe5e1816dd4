package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ryan258/insight-capsule/internal/domain"
)

// Config tunes the gateway's retry+fallback policy.
type Config struct {
	// LocalAttempts is the retry budget for the local backend; the remote
	// backend is always attempted at most once.
	LocalAttempts int
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	Temperature   float64 // used when a request does not set its own
}

// Gateway routes generation requests through an ordered chain of backends
// with a uniform retry policy per backend. Every generation role in the
// system goes through here; callers never add their own retry loops.
type Gateway struct {
	local  Backend
	remote Backend
	cfg    Config
	logger *log.Logger
	sleep  func(time.Duration)
}

type strategy struct {
	backend  Backend
	attempts int
}

// NewGateway builds a gateway over an optional local and optional remote
// backend. Either may be nil.
func NewGateway(local, remote Backend, cfg Config, logger *log.Logger) *Gateway {
	if cfg.LocalAttempts <= 0 {
		cfg.LocalAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 200 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 5 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{local: local, remote: remote, cfg: cfg, logger: logger, sleep: time.Sleep}
}

// Generate runs the request through the fallback chain. It fails with a
// GenerationError marked exhausted only once every backend is out of attempts.
func (g *Gateway) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	temp := req.Temperature
	if temp == 0 {
		temp = g.cfg.Temperature
	}

	var errs []error
	attempts := 0
	for _, st := range g.chain(req.PreferLocal) {
		if st.backend == nil {
			continue
		}
		name := st.backend.Name()
		if !st.backend.Available(ctx) {
			g.logger.Printf("[generation] %s unavailable, skipping", name)
			errs = append(errs, fmt.Errorf("%s: unavailable", name))
			continue
		}
		for i := 0; i < st.attempts; i++ {
			if i > 0 {
				g.sleep(g.retryDelay(i - 1))
			}
			if ctx.Err() != nil {
				return "", &domain.GenerationError{Attempts: attempts, Err: ctx.Err()}
			}
			attempts++
			g.logger.Printf("[generation] %s role=%s attempt %d/%d", name, req.Role, i+1, st.attempts)
			text, err := st.backend.Complete(ctx, req.Prompt, Params{Temperature: temp})
			if err == nil {
				if out := strings.TrimSpace(text); out != "" {
					return out, nil
				}
				err = errors.New("empty response")
			}
			g.logger.Printf("[generation] %s attempt %d failed: %v", name, i+1, err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return "", &domain.GenerationError{Exhausted: true, Attempts: attempts, Err: errors.Join(errs...)}
}

func (g *Gateway) chain(preferLocal bool) []strategy {
	local := strategy{g.local, g.cfg.LocalAttempts}
	remote := strategy{g.remote, 1}
	if preferLocal {
		return []strategy{local, remote}
	}
	return []strategy{remote, local}
}

func (g *Gateway) retryDelay(attempt int) time.Duration {
	d := g.cfg.BackoffBase << attempt
	if d > g.cfg.BackoffMax || d <= 0 {
		d = g.cfg.BackoffMax
	}
	return d
}
