package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pechorka/quire/internal/library"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUnknownBucket = errors.New("unknown bucket")
)

var (
	bktBooks     = []byte("books")
	bktChapters  = []byte("chapters")
	bktResources = []byte("resources")
	bktSettings  = []byte("settings")
)

var (
	libraryKey     = []byte("library")
	bookKeyPrefix  = "book-"
	checksumPrefix = "checksum-"
)

// Storage is a wrapper around bolt.DB
type Storage struct {
	db        *bolt.DB
	closeFunc func() error
}

// NewStorage creates a new storage
func NewStorage(path string) (*Storage, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	return &Storage{
		db:        db,
		closeFunc: db.Close,
	}, nil
}

// NewTempStorage creates a storage in the temp dir that is removed on Close.
func NewTempStorage() (*Storage, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("quire-%s.db", uuid.New().String()))
	storage, err := NewStorage(path)
	if err != nil {
		return nil, err
	}
	originalCloseFunc := storage.closeFunc
	storage.closeFunc = func() error {
		if err := originalCloseFunc(); err != nil {
			return err
		}
		return os.Remove(path)
	}
	return storage, nil
}

// Close closes the storage
func (s *Storage) Close() error {
	return s.closeFunc()
}

// Put stores value under key in the named bucket. The bucket must exist.
func (s *Storage) Put(bucket, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return errors.Wrap(ErrUnknownBucket, bucket)
		}
		return b.Put([]byte(key), value)
	})
}

func (s *Storage) Get(bucket, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		value = append([]byte(nil), v...)
		return nil
	})
	return value, err
}

// Keys lists the keys of a bucket starting with prefix.
func (s *Storage) Keys(bucket, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		p := []byte(prefix)
		c := b.Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

func (s *Storage) GetLibrary() (*library.Library, error) {
	var lib *library.Library
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		lib, err = getLibrary(tx.Bucket(bktBooks))
		return err
	})
	return lib, err
}

type UpdateLibraryFunc func(lib *library.Library) error

// UpdateLibrary loads the catalog, applies updFunc and stores the result
// in one transaction. Nothing is written when updFunc fails.
func (s *Storage) UpdateLibrary(updFunc UpdateLibraryFunc) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bktBooks)
		if err != nil {
			return err
		}
		lib, err := getLibrary(b)
		if err != nil {
			return err
		}
		if err = updFunc(lib); err != nil {
			return err
		}
		return putLibrary(b, lib)
	})
}

// AddBook stores the book metadata and catalogs it. The catalog index of the book is returned.
func (s *Storage) AddBook(book library.Book) (int, error) {
	encoded, err := library.MarshalBook(book)
	if err != nil {
		return -1, err
	}
	index := -1
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bktBooks)
		if err != nil {
			return err
		}
		if err = b.Put(bookKey(book.BookID), encoded); err != nil {
			return err
		}
		lib, err := getLibrary(b)
		if err != nil {
			return err
		}
		index, err = lib.Add(library.Entry{
			BookID:     book.BookID,
			Title:      book.Title,
			Author:     book.Author,
			SpineCount: len(book.Spine),
		})
		if err != nil {
			// the book stays readable by id even when the catalog is full
			return nil
		}
		return putLibrary(b, lib)
	})
	if err == nil && index < 0 {
		return -1, library.ErrFull
	}
	return index, err
}

func (s *Storage) GetBook(bookID string) (library.Book, error) {
	var book library.Book
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bktBooks)
		if b == nil {
			return ErrNotFound
		}
		v := b.Get(bookKey(bookID))
		if v == nil {
			return ErrNotFound
		}
		var err error
		book, err = library.UnmarshalBook(v)
		return errors.Wrapf(err, "failed to decode book %s", bookID)
	})
	return book, err
}

// DeleteBook removes the book metadata, its catalog row and every stored payload.
func (s *Storage) DeleteBook(bookID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bktBooks)
		if b == nil || b.Get(bookKey(bookID)) == nil {
			return ErrNotFound
		}
		if err := b.Delete(bookKey(bookID)); err != nil {
			return err
		}
		lib, err := getLibrary(b)
		if err != nil {
			return err
		}
		if lib.Remove(bookID) {
			if err = putLibrary(b, lib); err != nil {
				return err
			}
		}
		if err = deleteChecksums(b, bookID); err != nil {
			return err
		}
		prefix := []byte(library.KeyPrefix(bookID))
		for _, name := range [][]byte{bktChapters, bktResources} {
			if err = deletePrefix(tx.Bucket(name), prefix); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) AddProcessedFile(pf ProcessedFile) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bktBooks)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(pf)
		if err != nil {
			return err
		}
		return b.Put(checksumKey(pf.CheckSum), encoded)
	})
}

func (s *Storage) GetProcessedFileByChecksum(checksum []byte) (ProcessedFile, error) {
	var pf ProcessedFile
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bktBooks)
		if b == nil {
			return ErrNotFound
		}
		v := b.Get(checksumKey(checksum))
		if v == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(v, &pf); err != nil {
			return errors.Wrap(err, "failed to unmarshal processed file")
		}
		return nil
	})
	return pf, err
}

func bookKey(bookID string) []byte {
	return []byte(bookKeyPrefix + bookID)
}

func checksumKey(checksum []byte) []byte {
	return []byte(fmt.Sprintf("%s%x", checksumPrefix, checksum))
}

func getLibrary(b *bolt.Bucket) (*library.Library, error) {
	lib := &library.Library{}
	if b == nil {
		return lib, nil
	}
	v := b.Get(libraryKey)
	if v == nil {
		return lib, nil
	}
	if err := lib.UnmarshalBinary(v); err != nil {
		return nil, errors.Wrap(err, "failed to decode library")
	}
	return lib, nil
}

func putLibrary(b *bolt.Bucket, lib *library.Library) error {
	encoded, err := lib.MarshalBinary()
	if err != nil {
		return err
	}
	return b.Put(libraryKey, encoded)
}

func deleteChecksums(b *bolt.Bucket, bookID string) error {
	var stale [][]byte
	prefix := []byte(checksumPrefix)
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var pf ProcessedFile
		if err := json.Unmarshal(v, &pf); err != nil {
			continue
		}
		if pf.BookID == bookID {
			stale = append(stale, append([]byte(nil), k...))
		}
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// deletePrefix removes keys starting with prefix. Keys are collected first
// since deleting under a cursor skips entries.
func deletePrefix(b *bolt.Bucket, prefix []byte) error {
	if b == nil {
		return nil
	}
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
