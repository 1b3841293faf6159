package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"infergate/internal/backend"
	"infergate/internal/config"
	"infergate/internal/gateway"
	"infergate/internal/keystore"
	"infergate/internal/warmup"
)

// Supervisor owns the whole lifecycle: launch the backend, drive readiness
// and warm-up, load credentials, start the gateway, then join on the first
// unit to exit. Partial operation is never an acceptable steady state; if
// either unit dies the sibling is torn down and Run returns an error.
type Supervisor struct {
	rt  *config.Runtime
	log zerolog.Logger
}

func New(rt *config.Runtime, log zerolog.Logger) *Supervisor {
	return &Supervisor{rt: rt, log: log}
}

// Run blocks until shutdown. A nil return means graceful shutdown (signal
// delivered via ctx cancellation) and the process should exit zero; any
// error is a fatal condition and the process should exit non-zero.
func (s *Supervisor) Run(ctx context.Context) error {
	proc, err := backend.Launch(s.rt, s.log)
	if err != nil {
		return err
	}
	bu := &backendUnit{proc: proc}

	// Serialized startup: no live traffic until the driver reports ready.
	drv := warmup.New(s.rt, s.log)
	if err := drv.Run(ctx, proc); err != nil {
		s.log.Error().Err(err).Str("state", drv.State().String()).Str("stderr", proc.StderrTail()).
			Msg("startup aborted")
		_ = bu.Stop(s.rt.ShutdownGrace)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("readiness aborted: %w", err)
	}

	store, err := s.loadCredentials(ctx)
	if err != nil {
		_ = bu.Stop(s.rt.ShutdownGrace)
		return err
	}

	mux, err := gateway.NewMux(gateway.Options{
		BackendURL:   s.rt.BackendBaseURL,
		Store:        store,
		ProxyTimeout: s.rt.ProxyTimeout,
		Log:          s.log,
	})
	if err != nil {
		_ = bu.Stop(s.rt.ShutdownGrace)
		return fmt.Errorf("build gateway: %w", err)
	}
	gu := newGatewayUnit(s.rt.GatewayAddr, mux)
	gu.Start()
	s.log.Info().Str("addr", s.rt.GatewayAddr).Str("backend", s.rt.BackendBaseURL).Msg("gateway serving")

	return s.supervise(ctx, gu, bu)
}

// loadCredentials performs the initial credential load. Failing here with no
// prior set is fatal: a gateway that can never authorize anyone is useless.
func (s *Supervisor) loadCredentials(ctx context.Context) (*keystore.Store, error) {
	src, err := keystore.NewSource(s.rt.SecretSource, s.rt.SecretName)
	if err != nil {
		return nil, err
	}
	store := keystore.NewStore(src, s.log)
	if err := store.Load(ctx); err != nil {
		return nil, fmt.Errorf("initial credential load: %w", err)
	}
	return store, nil
}

// supervise joins on the first unit to exit. On ctx cancellation the gateway
// stops first so no request arrives for a backend that is going away.
func (s *Supervisor) supervise(ctx context.Context, gw, be Unit) error {
	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutdown signal received")
		if err := gw.Stop(s.rt.ShutdownGrace); err != nil {
			s.log.Warn().Err(err).Msg("gateway shutdown was not clean")
		}
		if err := be.Stop(s.rt.ShutdownGrace); err != nil {
			s.log.Warn().Err(err).Msg("backend shutdown was not clean")
		}
		s.log.Info().Msg("shutdown complete")
		return nil

	case <-be.Done():
		s.log.Error().Err(be.Err()).Msg("backend exited unexpectedly")
		_ = gw.Stop(s.rt.ShutdownGrace)
		return fmt.Errorf("backend exited unexpectedly: %v", be.Err())

	case <-gw.Done():
		s.log.Error().Err(gw.Err()).Msg("gateway exited unexpectedly")
		_ = be.Stop(s.rt.ShutdownGrace)
		return fmt.Errorf("gateway exited unexpectedly: %v", gw.Err())
	}
}
