package importer

import (
	"io"

	"github.com/pechorka/quire/pkg/zipindex"
)

// Database layout requested from the host when an import reaches OPENING_DB.
const (
	DBName    = "quire"
	DBVersion = 1

	StoreBooks     = "books"
	StoreChapters  = "chapters"
	StoreResources = "resources"
	StoreSettings  = "settings"
)

var Stores = []string{StoreBooks, StoreChapters, StoreResources, StoreSettings}

// File is an opened book file.
type File interface {
	io.ReaderAt
	Size() int64
	Close() error
}

// Blob is a host owned buffer holding a decompressed payload.
type Blob interface {
	Bytes() []byte
	Size() int64
	Free()
}

// Host performs the slow work of an import. Every method taking a done
// callback returns immediately and calls done exactly once later, on the
// goroutine that drives the Machine.
type Host interface {
	OpenFile(ref string, done func(File, error))
	Decompress(f File, e zipindex.Entry, done func(Blob, error))
	OpenStore(name string, version int, stores []string, done func(error))
	// Put stores data synchronously.
	Put(store, key string, data []byte) error
	PutBlob(store, key string, b Blob, done func(error))
}
