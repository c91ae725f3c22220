package importer

import (
	"bytes"
	"compress/flate"
	"io"
	"os"

	"github.com/pechorka/quire/pkg/zipindex"
	"github.com/pkg/errors"
)

// fakeHost queues completions instead of running them so tests decide
// when each host request finishes.
type fakeHost struct {
	files   map[string][]byte
	pending []func()
	stores  map[string]map[string][]byte

	openStoreErr error
	putErr       map[string]error
	inflateErr   map[string]error

	openFiles   []*fakeFile
	blobs       []*fakeBlob
	maxInFlight int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		files:      make(map[string][]byte),
		stores:     make(map[string]map[string][]byte),
		putErr:     make(map[string]error),
		inflateErr: make(map[string]error),
	}
}

func (h *fakeHost) enqueue(fn func()) {
	h.pending = append(h.pending, fn)
	if len(h.pending) > h.maxInFlight {
		h.maxInFlight = len(h.pending)
	}
}

// step completes the oldest pending request.
func (h *fakeHost) step() bool {
	if len(h.pending) == 0 {
		return false
	}
	next := h.pending[0]
	h.pending = h.pending[1:]
	next()
	return true
}

func (h *fakeHost) drain() {
	for h.step() {
	}
}

func (h *fakeHost) OpenFile(ref string, done func(File, error)) {
	h.enqueue(func() {
		data, ok := h.files[ref]
		if !ok {
			done(nil, os.ErrNotExist)
			return
		}
		f := &fakeFile{Reader: bytes.NewReader(data)}
		h.openFiles = append(h.openFiles, f)
		done(f, nil)
	})
}

func (h *fakeHost) Decompress(f File, e zipindex.Entry, done func(Blob, error)) {
	h.enqueue(func() {
		if err := h.inflateErr[e.Name]; err != nil {
			done(nil, err)
			return
		}
		r := flate.NewReader(io.NewSectionReader(f, e.DataOffset, int64(e.CompressedSize)))
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			done(nil, err)
			return
		}
		b := &fakeBlob{data: data}
		h.blobs = append(h.blobs, b)
		done(b, nil)
	})
}

func (h *fakeHost) OpenStore(name string, version int, stores []string, done func(error)) {
	h.enqueue(func() {
		if h.openStoreErr != nil {
			done(h.openStoreErr)
			return
		}
		for _, s := range stores {
			if h.stores[s] == nil {
				h.stores[s] = make(map[string][]byte)
			}
		}
		done(nil)
	})
}

func (h *fakeHost) Put(store, key string, data []byte) error {
	if err := h.putErr[key]; err != nil {
		return err
	}
	bkt, ok := h.stores[store]
	if !ok {
		return errors.Errorf("unknown store %s", store)
	}
	bkt[key] = append([]byte(nil), data...)
	return nil
}

func (h *fakeHost) PutBlob(store, key string, b Blob, done func(error)) {
	data := append([]byte(nil), b.Bytes()...)
	h.enqueue(func() {
		done(h.Put(store, key, data))
	})
}

func (h *fakeHost) allBlobsFreed() bool {
	for _, b := range h.blobs {
		if !b.freed {
			return false
		}
	}
	return true
}

func (h *fakeHost) allFilesClosed() bool {
	for _, f := range h.openFiles {
		if !f.closed {
			return false
		}
	}
	return true
}

type fakeFile struct {
	*bytes.Reader
	closed bool
}

func (f *fakeFile) Close() error {
	f.closed = true
	return nil
}

type fakeBlob struct {
	data  []byte
	freed bool
}

func (b *fakeBlob) Bytes() []byte { return b.data }
func (b *fakeBlob) Size() int64   { return int64(len(b.data)) }
func (b *fakeBlob) Free()         { b.freed = true; b.data = nil }
