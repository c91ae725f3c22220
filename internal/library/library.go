package library

import "github.com/pkg/errors"

const (
	MaxBooks    = 32
	bookIDWidth = 8
)

var (
	ErrFull     = errors.New("library is full")
	ErrNotFound = errors.New("book not found")
)

// Entry is one catalog row.
type Entry struct {
	BookID         string `json:"bookId"`
	Title          string `json:"title"`
	Author         string `json:"author"`
	CurrentChapter int    `json:"currentChapter"`
	CurrentPage    int    `json:"currentPage"`
	SpineCount     int    `json:"spineCount"`
}

// Library is the ordered reading catalog.
type Library struct {
	Books []Entry
}

func (l *Library) Find(bookID string) int {
	for i := range l.Books {
		if l.Books[i].BookID == bookID {
			return i
		}
	}
	return -1
}

// Add appends e unless a book with the same id is present, in which case
// the existing row gets the new spine count and its index is returned.
func (l *Library) Add(e Entry) (int, error) {
	if i := l.Find(e.BookID); i >= 0 {
		l.Books[i].SpineCount = e.SpineCount
		return i, nil
	}
	if len(l.Books) >= MaxBooks {
		return -1, ErrFull
	}
	l.Books = append(l.Books, e)
	return len(l.Books) - 1, nil
}

func (l *Library) Remove(bookID string) bool {
	i := l.Find(bookID)
	if i < 0 {
		return false
	}
	l.Books = append(l.Books[:i], l.Books[i+1:]...)
	return true
}

// SetPosition records the reading position of a book.
func (l *Library) SetPosition(bookID string, chapter, page int) error {
	i := l.Find(bookID)
	if i < 0 {
		return ErrNotFound
	}
	if chapter < 0 || page < 0 {
		return errors.Errorf("invalid position %d:%d", chapter, page)
	}
	e := &l.Books[i]
	if e.SpineCount > 0 && chapter >= e.SpineCount {
		return errors.Errorf("chapter %d out of range, book has %d", chapter, e.SpineCount)
	}
	e.CurrentChapter = chapter
	e.CurrentPage = page
	return nil
}

// MarshalBinary encodes the catalog as
//
//	u16 count, count * (8 byte zero padded bookId, str title, str author,
//	u16 currentChapter, u16 currentPage, u16 spineCount)
func (l *Library) MarshalBinary() ([]byte, error) {
	var w writer
	w.u16(len(l.Books))
	for _, e := range l.Books {
		w.fixed(e.BookID, bookIDWidth)
		w.str(e.Title)
		w.str(e.Author)
		w.u16(e.CurrentChapter)
		w.u16(e.CurrentPage)
		w.u16(e.SpineCount)
	}
	data, err := w.bytes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode library")
	}
	return data, nil
}

func (l *Library) UnmarshalBinary(data []byte) error {
	r := reader{data: data}
	n := r.u16()
	books := make([]Entry, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		books = append(books, Entry{
			BookID:         r.fixed(bookIDWidth),
			Title:          r.str(),
			Author:         r.str(),
			CurrentChapter: r.u16(),
			CurrentPage:    r.u16(),
			SpineCount:     r.u16(),
		})
	}
	if r.err != nil {
		return r.err
	}
	l.Books = books
	return nil
}
