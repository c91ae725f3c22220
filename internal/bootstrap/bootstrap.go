package bootstrap

import (
	"bytes"
	_ "embed"
	"io"

	"github.com/pechorka/quire/internal/config"
	"github.com/pechorka/quire/internal/importer"
	"github.com/pechorka/quire/internal/storage"
	"github.com/pechorka/quire/pkg/i18n"
	"github.com/pechorka/quire/pkg/watcher"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//go:embed i18n.json
var defaultTranslations []byte

// Storage opens the configured database and brings its schema up to date.
func Storage(cfg config.StorageConfig) (*storage.Storage, error) {
	var (
		store *storage.Storage
		err   error
	)
	if cfg.Temp {
		store, err = storage.NewTempStorage()
	} else {
		store, err = storage.NewStorage(cfg.Path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to open bolt db")
	}
	if err = store.Migrate(importer.DBVersion, importer.Stores); err != nil {
		store.Close()
		return nil, errors.Wrap(err, "failed to migrate bolt db")
	}
	return store, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// I18n loads translations from cfg.Path, reloading them on change when
// cfg.Watch is set. Without a path the built-in translations are used.
func I18n(cfg config.I18nConfig, log *zap.Logger) (*i18n.Localies, io.Closer, error) {
	loc := i18n.New(cfg.DefaultLang)
	if cfg.Path == "" {
		if err := loc.LoadFrom(bytes.NewReader(defaultTranslations)); err != nil {
			return nil, nil, err
		}
		return loc, nopCloser{}, nil
	}
	if !cfg.Watch {
		if err := loc.Load(cfg.Path); err != nil {
			return nil, nil, errors.Wrap(err, "failed to load translations")
		}
		return loc, nopCloser{}, nil
	}
	w, err := watcher.LoadAndWatch(cfg.Path, loc, log.Named("i18n"))
	if err != nil {
		return nil, nil, err
	}
	return loc, w, nil
}
