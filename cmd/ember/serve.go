package main

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/ember/server"
)

// shutdownTimeout bounds how long in-flight requests may take once a stop
// signal arrives.
const shutdownTimeout = 5 * time.Second

// serve runs the evaluation server until ctx is cancelled or the listener
// fails.
func serve(ctx context.Context, addr string) error {
	srv := server.New()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
