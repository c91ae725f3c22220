// Package host implements the importer host on top of the local file
// system and the bbolt storage. Slow work runs on its own goroutine and
// reports back through the Loop.
package host

import (
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/pechorka/quire/internal/importer"
	"github.com/pechorka/quire/internal/storage"
	"github.com/pechorka/quire/pkg/zipindex"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultMaxInflateSize = 256 << 20

var ErrTooLarge = errors.New("decompressed payload is too large")

type Config struct {
	// MaxInflateSize bounds a single decompressed entry.
	MaxInflateSize int64
}

type Host struct {
	loop       *Loop
	store      *storage.Storage
	log        *zap.Logger
	maxInflate int64

	wg sync.WaitGroup
}

func New(loop *Loop, store *storage.Storage, log *zap.Logger, cfg Config) *Host {
	if cfg.MaxInflateSize <= 0 {
		cfg.MaxInflateSize = defaultMaxInflateSize
	}
	return &Host{
		loop:       loop,
		store:      store,
		log:        log.Named("host"),
		maxInflate: cfg.MaxInflateSize,
	}
}

var _ importer.Host = (*Host)(nil)

func (h *Host) async(work func() func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.loop.Post(work())
	}()
}

// Wait blocks until every background request has posted its completion.
func (h *Host) Wait() {
	h.wg.Wait()
}

func (h *Host) OpenFile(ref string, done func(importer.File, error)) {
	h.async(func() func() {
		f, err := openFile(ref)
		if err != nil {
			return func() { done(nil, err) }
		}
		return func() { done(f, nil) }
	})
}

func (h *Host) Decompress(f importer.File, e zipindex.Entry, done func(importer.Blob, error)) {
	h.async(func() func() {
		data, err := h.inflate(f, e)
		if err != nil {
			return func() { done(nil, err) }
		}
		return func() { done(&blob{data: data}, nil) }
	})
}

func (h *Host) inflate(f importer.File, e zipindex.Entry) ([]byte, error) {
	if e.Method != zipindex.Deflate {
		return nil, zipindex.ErrUnsupportedCompression
	}
	if e.DataOffset < 0 {
		return nil, errors.Errorf("no payload offset for %s", e.Name)
	}
	if int64(e.UncompressedSize) > h.maxInflate {
		return nil, errors.Wrapf(ErrTooLarge, "%s declares %d bytes", e.Name, e.UncompressedSize)
	}
	r := flate.NewReader(io.NewSectionReader(f, e.DataOffset, int64(e.CompressedSize)))
	defer r.Close()
	data, err := io.ReadAll(io.LimitReader(r, h.maxInflate+1))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inflate %s", e.Name)
	}
	if int64(len(data)) > h.maxInflate {
		return nil, errors.Wrap(ErrTooLarge, e.Name)
	}
	return data, nil
}

func (h *Host) OpenStore(name string, version int, stores []string, done func(error)) {
	h.async(func() func() {
		err := h.store.Migrate(version, stores)
		if err != nil {
			err = errors.Wrapf(err, "failed to open store %s", name)
		}
		return func() { done(err) }
	})
}

func (h *Host) Put(store, key string, data []byte) error {
	return h.store.Put(store, key, data)
}

// PutBlob takes the blob bytes before returning so the caller may free it at any time.
func (h *Host) PutBlob(store, key string, b importer.Blob, done func(error)) {
	data := b.Bytes()
	h.async(func() func() {
		err := h.store.Put(store, key, data)
		return func() { done(err) }
	})
}

type file struct {
	*os.File
	size int64
}

func openFile(path string) (*file, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	if st.IsDir() {
		f.Close()
		return nil, errors.Errorf("%s is a directory", path)
	}
	return &file{File: f, size: st.Size()}, nil
}

func (f *file) Size() int64 {
	return f.size
}

type blob struct {
	data []byte
}

func (b *blob) Bytes() []byte { return b.data }
func (b *blob) Size() int64   { return int64(len(b.data)) }
func (b *blob) Free()         { b.data = nil }
