package main

import (
	"io"

	"github.com/pechorka/quire/internal/bootstrap"
	"github.com/pechorka/quire/internal/config"
	"github.com/pechorka/quire/internal/service"
	"github.com/pechorka/quire/internal/storage"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// app holds everything a command needs. Close releases it in reverse order.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *storage.Storage
	svc     *service.Service
	closers []func() error
}

func newApp(cmd *cobra.Command) (a *app, err error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfiguration(path)
	if err != nil {
		return nil, err
	}
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.Close())
		}
	}()

	log, closeLog, err := cfg.Logging.Prepare()
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare logger")
	}
	a.log = log
	a.closers = append(a.closers, closeLog, func() error {
		// stdout and stderr syncs fail on terminals
		_ = log.Sync()
		return nil
	})

	a.store, err = bootstrap.Storage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	a.svc = service.NewService(a.store, log, service.Config{
		MaxFileSize:         cfg.Import.MaxFileSize,
		DownloadTimeout:     cfg.Import.DownloadTimeout,
		TmpDir:              cfg.Import.TmpDir,
		InflateControlFiles: cfg.Import.InflateControlFiles,
		MaxInflateSize:      cfg.Import.MaxInflateSize,
		PageSize:            cfg.Reader.PageSize,
	})
	a.closers = append(a.closers, a.svc.Close)
	return a, nil
}

func (a *app) addCloser(c io.Closer) {
	a.closers = append(a.closers, c.Close)
}

func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
