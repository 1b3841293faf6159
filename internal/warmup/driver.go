package warmup

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"infergate/internal/config"
)

// State of the readiness driver. Transitions are strictly forward:
// Starting -> PollingHealth -> WarmingUp -> Ready, with Aborted terminal
// from any prior state.
type State int

const (
	StateStarting State = iota
	StatePollingHealth
	StateWarmingUp
	StateReady
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StatePollingHealth:
		return "polling_health"
	case StateWarmingUp:
		return "warming_up"
	case StateReady:
		return "ready"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Liveness is the slice of the backend process handle the driver needs to
// detect a child that dies before becoming healthy.
type Liveness interface {
	Done() <-chan struct{}
	Err() error
}

// planPause is the settle time between warm-up requests.
var planPause = time.Second

// Driver serializes startup: it blocks its caller until the backend is
// healthy and warmed, and no live traffic may be accepted before it returns.
type Driver struct {
	rt     *config.Runtime
	client *http.Client
	log    zerolog.Logger
	state  State
}

func New(rt *config.Runtime, log zerolog.Logger) *Driver {
	// Timeout=0 on the client: each request carries its own context deadline.
	return &Driver{rt: rt, client: &http.Client{Timeout: 0}, log: log}
}

// State returns the last state the driver reached. The driver runs on a
// single goroutine; this accessor exists for logging and tests.
func (d *Driver) State() State { return d.state }

// Run polls the backend until healthy, then executes the warm-up plan.
// A nil return means Ready. Any error means Aborted: the backend never
// became healthy, died first, or the context was canceled.
func (d *Driver) Run(ctx context.Context, proc Liveness) error {
	d.state = StatePollingHealth
	if err := d.pollHealth(ctx, proc); err != nil {
		d.state = StateAborted
		return err
	}
	if !d.rt.WarmupEnabled {
		d.log.Info().Msg("warm-up disabled, skipping")
		d.state = StateReady
		return nil
	}
	d.state = StateWarmingUp
	d.runPlan(ctx, BuildPlan(d.rt.ModelID, DefaultLengths))
	d.state = StateReady
	return nil
}

// pollHealth probes the backend health endpoint at a fixed interval until
// the first 2xx, the overall deadline, process exit, or cancellation.
func (d *Driver) pollHealth(ctx context.Context, proc Liveness) error {
	url := d.rt.BackendBaseURL + d.rt.HealthPath
	deadline := time.Now().Add(d.rt.StartupTimeout)
	d.log.Info().Str("url", url).Dur("timeout", d.rt.StartupTimeout).Msg("waiting for backend health")

	ticker := time.NewTicker(d.rt.PollInterval)
	defer ticker.Stop()
	start := time.Now()
	polls := 0
	for {
		polls++
		if d.probe(ctx, url) {
			d.log.Info().Dur("elapsed", time.Since(start)).Int("polls", polls).Msg("backend healthy")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("backend not healthy within %s", d.rt.StartupTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-proc.Done():
			return fmt.Errorf("backend exited before becoming healthy: %v", proc.Err())
		case <-ticker.C:
		}
	}
}

func (d *Driver) probe(ctx context.Context, url string) bool {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(pctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// runPlan issues every plan entry sequentially. Warm-up is best-effort:
// individual failures are logged and skipped, the plan always runs to
// completion, and the driver proceeds to Ready regardless.
func (d *Driver) runPlan(ctx context.Context, plan []Entry) {
	url := d.rt.BackendBaseURL + "/v1/completions"
	d.log.Info().Int("requests", len(plan)).Msg("starting warm-up")
	start := time.Now()
	ok := 0
	for i, e := range plan {
		if ctx.Err() != nil {
			d.log.Warn().Msg("warm-up interrupted by shutdown")
			return
		}
		reqStart := time.Now()
		if err := d.warmOne(ctx, url, e.Body); err != nil {
			d.log.Warn().Err(err).
				Int("request", i+1).Int("of", len(plan)).Int("tokens", e.Tokens).
				Msg("warm-up request failed")
		} else {
			ok++
			d.log.Info().
				Int("request", i+1).Int("of", len(plan)).Int("tokens", e.Tokens).
				Dur("dur", time.Since(reqStart)).
				Msg("warm-up request done")
		}
		if i < len(plan)-1 {
			// Small pause between shapes, as the backend settles.
			select {
			case <-ctx.Done():
			case <-time.After(planPause):
			}
		}
	}
	d.log.Info().Int("ok", ok).Int("total", len(plan)).Dur("dur", time.Since(start)).Msg("warm-up complete")
}

func (d *Driver) warmOne(ctx context.Context, url string, body []byte) error {
	rctx, cancel := context.WithTimeout(ctx, d.rt.WarmupTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(rctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("completion returned %s", resp.Status)
	}
	return nil
}
