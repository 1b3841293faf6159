package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"infergate/internal/backend"
)

// Unit is a supervised task: the backend child process and the in-process
// gateway server both implement it, so the controller can join on whichever
// exits first without caring which was logically "foreground".
type Unit interface {
	Name() string
	// Done is closed when the unit has stopped, expectedly or not.
	Done() <-chan struct{}
	// Err reports why the unit stopped. Valid once Done is closed.
	Err() error
	// Stop requests graceful termination and escalates after grace.
	Stop(grace time.Duration) error
}

// backendUnit adapts a backend process handle to the Unit interface.
type backendUnit struct {
	proc *backend.Process
}

func (u *backendUnit) Name() string                   { return "backend" }
func (u *backendUnit) Done() <-chan struct{}          { return u.proc.Done() }
func (u *backendUnit) Err() error                     { return u.proc.Err() }
func (u *backendUnit) Stop(grace time.Duration) error { return u.proc.Stop(grace) }

// gatewayUnit runs an http.Server as a supervised task.
type gatewayUnit struct {
	srv  *http.Server
	done chan struct{}
	err  error
}

func newGatewayUnit(addr string, handler http.Handler) *gatewayUnit {
	return &gatewayUnit{
		srv:  &http.Server{Addr: addr, Handler: handler},
		done: make(chan struct{}),
	}
}

// Start begins serving. The unit's Done closes when Serve returns for any
// reason other than a requested shutdown.
func (u *gatewayUnit) Start() {
	go func() {
		err := u.srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			u.err = err
		}
		close(u.done)
	}()
}

func (u *gatewayUnit) Name() string          { return "gateway" }
func (u *gatewayUnit) Done() <-chan struct{} { return u.done }
func (u *gatewayUnit) Err() error            { return u.err }

// Stop drains in-flight requests for up to grace, then closes connections.
func (u *gatewayUnit) Stop(grace time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := u.srv.Shutdown(ctx); err != nil {
		_ = u.srv.Close()
		return err
	}
	return nil
}
