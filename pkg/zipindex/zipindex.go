// Package zipindex builds a dense, random access index over the central
// directory of a ZIP archive.
package zipindex

import (
	"archive/zip"
	"io"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrInvalidZip             = errors.New("invalid zip file")
	ErrOutOfRange             = errors.New("entry index out of range")
	ErrUnsupportedCompression = errors.New("unsupported compression method")
	ErrTooLarge               = errors.New("entry is too large")
)

// Method is the ZIP compression method of an entry.
type Method uint16

const (
	Stored  = Method(zip.Store)
	Deflate = Method(zip.Deflate)
)

// maxEntrySize bounds a single inflated entry read through the index.
const maxEntrySize = 256 << 20

// Entry describes one member of the archive.
type Entry struct {
	Name             string
	Method           Method
	CompressedSize   uint64
	UncompressedSize uint64
	// DataOffset is the absolute offset of the entry payload, past the local header.
	DataOffset int64
}

// Supported reports whether the entry payload can be read.
func (e Entry) Supported() bool {
	return e.Method == Stored || e.Method == Deflate
}

// IsDir reports whether the entry is a directory placeholder.
func (e Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

type Index struct {
	r       io.ReaderAt
	zr      *zip.Reader
	entries []Entry
	byName  map[string]int
}

// Open reads the central directory of the archive held by r.
// Archives that can not be read or carry no entries are rejected with ErrInvalidZip.
func Open(r io.ReaderAt, size int64) (*Index, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidZip, err.Error())
	}
	if len(zr.File) == 0 {
		return nil, ErrInvalidZip
	}
	ix := &Index{
		r:       r,
		zr:      zr,
		entries: make([]Entry, 0, len(zr.File)),
		byName:  make(map[string]int, len(zr.File)),
	}
	for i, f := range zr.File {
		off, err := f.DataOffset()
		if err != nil {
			// unreadable local header, payload reads will fail later
			off = -1
		}
		ix.entries = append(ix.entries, Entry{
			Name:             f.Name,
			Method:           Method(f.Method),
			CompressedSize:   f.CompressedSize64,
			UncompressedSize: f.UncompressedSize64,
			DataOffset:       off,
		})
		if _, ok := ix.byName[f.Name]; !ok {
			ix.byName[f.Name] = i
		}
	}
	return ix, nil
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

func (ix *Index) Entry(i int) (Entry, error) {
	if i < 0 || i >= len(ix.entries) {
		return Entry{}, ErrOutOfRange
	}
	return ix.entries[i], nil
}

// Find returns the index of the first entry whose name equals name exactly.
func (ix *Index) Find(name string) (int, bool) {
	i, ok := ix.byName[name]
	return i, ok
}

// FindSuffix returns the index of the first entry whose name ends in suffix.
func (ix *Index) FindSuffix(suffix string) (int, bool) {
	for i := range ix.entries {
		if strings.HasSuffix(ix.entries[i].Name, suffix) {
			return i, true
		}
	}
	return -1, false
}

func (ix *Index) NameEndsWith(i int, suffix string) bool {
	if i < 0 || i >= len(ix.entries) {
		return false
	}
	return strings.HasSuffix(ix.entries[i].Name, suffix)
}

func (ix *Index) NameEquals(i int, name string) bool {
	if i < 0 || i >= len(ix.entries) {
		return false
	}
	return ix.entries[i].Name == name
}

func (ix *Index) DataOffset(i int) (int64, error) {
	e, err := ix.Entry(i)
	if err != nil {
		return 0, err
	}
	if e.DataOffset < 0 {
		return 0, errors.Errorf("no local header for %q", e.Name)
	}
	return e.DataOffset, nil
}

// ReadStored reads the payload of a STORED entry straight from the underlying reader.
func (ix *Index) ReadStored(i int) ([]byte, error) {
	e, err := ix.Entry(i)
	if err != nil {
		return nil, err
	}
	if e.Method != Stored {
		return nil, ErrUnsupportedCompression
	}
	if e.CompressedSize > maxEntrySize {
		return nil, ErrTooLarge
	}
	off, err := ix.DataOffset(i)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, e.CompressedSize)
	if _, err := io.ReadFull(io.NewSectionReader(ix.r, off, int64(e.CompressedSize)), buf); err != nil {
		return nil, errors.Wrapf(err, "failed to read %q", e.Name)
	}
	return buf, nil
}

// ReadAll returns the decompressed payload of any supported entry.
func (ix *Index) ReadAll(i int) ([]byte, error) {
	e, err := ix.Entry(i)
	if err != nil {
		return nil, err
	}
	if !e.Supported() {
		return nil, ErrUnsupportedCompression
	}
	if e.UncompressedSize > maxEntrySize {
		return nil, ErrTooLarge
	}
	rc, err := ix.zr.File[i].Open()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", e.Name)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inflate %q", e.Name)
	}
	if len(data) > maxEntrySize {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Close drops the index. The underlying reader is owned by the caller.
func (ix *Index) Close() error {
	ix.entries = nil
	ix.byName = nil
	ix.zr = nil
	return nil
}
