package pprofserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/myrjola/lifeplan/internal/errors"
)

func Handle(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
}

func newServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	Handle(mux)
	return mux
}

// Addr returns the IPv6 loopback address for port.
func Addr(port string) string {
	return fmt.Sprintf("[::1]:%s", port)
}

// Launch a standard pprof server at ipv6 loopback address ::1 and given port. It stops when ctx is done.
func Launch(ctx context.Context, port string, logger *slog.Logger) {
	srv := &http.Server{ //nolint:exhaustruct // profiling endpoints need no timeouts
		Addr:              Addr(port),
		Handler:           newServeMux(),
		ReadHeaderTimeout: time.Second,
	}
	go func() {
		logger.LogAttrs(ctx, slog.LevelInfo, "starting pprof server", slog.String("pprof_addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.LogAttrs(ctx, slog.LevelError, "pprof server stopped",
				errors.SlogError(errors.Wrap(err, "listen and serve", slog.String("pprof_addr", srv.Addr))))
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}
