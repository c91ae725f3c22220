package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pechorka/quire/internal/bootstrap"
	"github.com/pechorka/quire/internal/handler"
	"github.com/pechorka/quire/pkg/sizeconverter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the library over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, a.Close()) }()

		loc, closer, err := bootstrap.I18n(a.cfg.I18n, a.log)
		if err != nil {
			return err
		}
		a.addCloser(closer)

		mx := chi.NewRouter()
		mx.Use(middleware.RequestID, middleware.Recoverer)
		handler.NewHandlers(handler.Config{
			Service:     a.svc,
			I18n:        loc,
			Log:         a.log,
			MaxFileSize: a.cfg.Import.MaxFileSize,
		}).Register(mx)

		srv := &http.Server{
			Addr:         a.cfg.HTTP.Listen,
			Handler:      mx,
			ReadTimeout:  a.cfg.HTTP.ReadTimeout,
			WriteTimeout: a.cfg.HTTP.WriteTimeout,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		serveErr := make(chan error, 1)
		go func() {
			a.log.Info("listening",
				zap.String("addr", srv.Addr),
				zap.String("max_file_size", sizeconverter.HumanReadableSize(a.cfg.Import.MaxFileSize)),
			)
			serveErr <- srv.ListenAndServe()
		}()

		select {
		case err = <-serveErr:
			return errors.Wrap(err, "http server stopped")
		case <-ctx.Done():
		}

		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
