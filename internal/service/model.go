package service

import (
	"github.com/pechorka/quire/internal/importer"
	"github.com/pechorka/quire/internal/library"
)

// Result is delivered once per started import.
type Result struct {
	Status importer.Status
	Entry  library.Entry
	// Duplicate is set when the file was imported before and the pipeline did not run.
	Duplicate bool
	// Warnings lists non-fatal problems, such as a full library.
	Warnings []string
	Err      error
}

type Chapter struct {
	BookID string
	Index  int
	Key    string
	Title  string
	Data   []byte
}

type ChapterText struct {
	BookID     string
	Index      int
	Title      string
	Paragraphs []string
}

type Page struct {
	BookID  string
	Chapter int
	Title   string
	Index   int
	Count   int
	Text    string
}

type BookInfo struct {
	library.Book
	Entry    library.Entry
	Chapters []ChapterInfo
}

type ChapterInfo struct {
	Index int
	Key   string
	Title string
}
