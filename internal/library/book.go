// Package library holds the persisted shape of imported books and the
// reading catalog, together with their binary encodings.
package library

import "github.com/pkg/errors"

const chapterKeySep = "/"

type TocEntry struct {
	Label string
	// SpineIndex is -1 when the entry does not point into the spine.
	SpineIndex int
	Level      int
}

// Book is the metadata of one imported book.
type Book struct {
	BookID string
	Title  string
	Author string
	OpfDir string
	// Spine holds manifest hrefs relative to OpfDir in reading order.
	Spine []string
	Toc   []TocEntry
}

// ChapterKey returns the storage key of spine item i.
func (b Book) ChapterKey(i int) (string, bool) {
	if i < 0 || i >= len(b.Spine) {
		return "", false
	}
	return ResourceKey(b.BookID, b.OpfDir+b.Spine[i]), true
}

// ChapterTitle returns the label of the first TOC entry pointing at spine item i.
func (b Book) ChapterTitle(i int) (string, bool) {
	for _, e := range b.Toc {
		if e.SpineIndex == i {
			return e.Label, true
		}
	}
	return "", false
}

// ResourceKey returns the storage key of an archive entry of a book.
func ResourceKey(bookID, entryName string) string {
	return bookID + chapterKeySep + entryName
}

// KeyPrefix returns the common prefix of every payload key of a book.
func KeyPrefix(bookID string) string {
	return bookID + chapterKeySep
}

// MarshalBook encodes b as
//
//	str bookId, str title, str author, str opfDir,
//	u16 spineCount, spineCount * str href,
//	u16 tocCount, tocCount * (u16 labelLen, i16 spineIndex, u16 level, label)
//
// where str is a u16 length followed by the bytes, all little-endian.
func MarshalBook(b Book) ([]byte, error) {
	var w writer
	w.str(b.BookID)
	w.str(b.Title)
	w.str(b.Author)
	w.str(b.OpfDir)
	w.u16(len(b.Spine))
	for _, href := range b.Spine {
		w.str(href)
	}
	w.u16(len(b.Toc))
	for _, e := range b.Toc {
		w.u16(len(e.Label))
		w.i16(e.SpineIndex)
		w.u16(e.Level)
		w.raw(e.Label)
	}
	data, err := w.bytes()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode book %s", b.BookID)
	}
	return data, nil
}

func UnmarshalBook(data []byte) (Book, error) {
	r := reader{data: data}
	var b Book
	b.BookID = r.str()
	b.Title = r.str()
	b.Author = r.str()
	b.OpfDir = r.str()
	if n := r.u16(); r.err == nil {
		b.Spine = make([]string, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			b.Spine = append(b.Spine, r.str())
		}
	}
	if n := r.u16(); r.err == nil {
		b.Toc = make([]TocEntry, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			labelLen := r.u16()
			e := TocEntry{SpineIndex: r.i16(), Level: r.u16()}
			e.Label = string(r.take(labelLen))
			b.Toc = append(b.Toc, e)
		}
	}
	if r.err != nil {
		return Book{}, r.err
	}
	return b, nil
}
