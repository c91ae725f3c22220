package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pechorka/quire/internal/host"
	"github.com/pechorka/quire/internal/importer"
	"github.com/pechorka/quire/internal/library"
	"github.com/pechorka/quire/internal/storage"
	"github.com/pechorka/quire/pkg/filechecksum"
	"github.com/pechorka/quire/pkg/fileloader"
	"github.com/pechorka/quire/pkg/htmltext"
	"github.com/pechorka/quire/pkg/pager"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrChapterNotFound  = errors.New("chapter not found")
	ErrPageNotFound     = errors.New("page not found")
	ErrImportInProgress = errors.New("import in progress")
	ErrImportCancelled  = errors.New("import cancelled")
	ErrServiceClosed    = errors.New("service closed")
)

type Config struct {
	MaxFileSize         int64
	DownloadTimeout     time.Duration
	TmpDir              string
	InflateControlFiles bool
	MaxInflateSize      int64
	PageSize            int
}

const defaultPageSize = 1500

type Service struct {
	store    *storage.Storage
	loop     *host.Loop
	host     *host.Host
	machine  *importer.Machine
	loader   *fileloader.Loader
	log      *zap.Logger
	tmpDir   string
	pageSize int

	// current is only touched on the loop goroutine.
	current *pendingImport
}

type pendingImport struct {
	name     string
	path     string
	temp     bool
	checksum []byte
	result   chan Result
}

// NewService starts the import loop. Close stops it; the storage stays owned by the caller.
func NewService(store *storage.Storage, log *zap.Logger, cfg Config) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	loop := host.NewLoop()
	s := &Service{
		store:    store,
		loop:     loop,
		log:      log.Named("service"),
		tmpDir:   cfg.TmpDir,
		pageSize: cfg.PageSize,
		loader: fileloader.NewLoader(fileloader.Config{
			MaxFileSize: cfg.MaxFileSize,
			HttpTimeout: cfg.DownloadTimeout,
		}),
	}
	s.host = host.New(loop, store, log, host.Config{MaxInflateSize: cfg.MaxInflateSize})
	s.machine = importer.New(importer.Config{
		Host:                s.host,
		Log:                 log.Named("importer"),
		InflateControlFiles: cfg.InflateControlFiles,
		OnFinish:            s.onFinish,
	})
	go loop.Run()
	return s
}

func (s *Service) Close() error {
	s.loop.Do(func() {
		s.machine.Cancel()
		s.abandon(ErrServiceClosed)
	})
	s.host.Wait()
	// stale completions release their files and blobs
	s.loop.Do(func() {})
	s.loop.Stop()
	return nil
}

// StartImport begins importing the EPUB at path. The returned channel
// receives exactly one Result. When temp is set the file is removed once
// the import ends.
func (s *Service) StartImport(path, name string, temp bool) (<-chan Result, error) {
	checksum, err := filechecksum.CalculateFile(path)
	if err != nil {
		s.cleanup(path, temp)
		return nil, err
	}
	result := make(chan Result, 1)
	if entry, ok := s.processed(checksum); ok {
		s.log.Info("file already imported", zap.String("name", name), zap.String("book_id", entry.BookID))
		s.cleanup(path, temp)
		result <- Result{Status: importer.Status{State: importer.StateDone, Progress: 100, BookID: entry.BookID, Title: entry.Title, Author: entry.Author}, Entry: entry, Duplicate: true}
		return result, nil
	}

	var startErr error
	ran := s.loop.Do(func() {
		if s.machine.State().Active() {
			startErr = ErrImportInProgress
			return
		}
		s.machine.Reset()
		if startErr = s.machine.StartImport(path); startErr != nil {
			return
		}
		s.current = &pendingImport{name: name, path: path, temp: temp, checksum: checksum, result: result}
	})
	if !ran {
		startErr = ErrServiceClosed
	}
	if startErr != nil {
		s.cleanup(path, temp)
		return nil, startErr
	}
	return result, nil
}

// Import runs an import to completion. Cancelling ctx cancels the import.
func (s *Service) Import(ctx context.Context, path string) (Result, error) {
	result, err := s.StartImport(path, filepath.Base(path), false)
	if err != nil {
		return Result{}, err
	}
	select {
	case res := <-result:
		return res, res.Err
	case <-ctx.Done():
		s.CancelImport()
		return Result{}, ctx.Err()
	}
}

// ImportURL downloads the book at URL and starts importing it.
func (s *Service) ImportURL(ctx context.Context, URL string) (<-chan Result, error) {
	path, err := s.loader.DownloadToFile(ctx, URL, s.tmpDir)
	if err != nil {
		return nil, err
	}
	return s.StartImport(path, fileloader.FileName(URL), true)
}

// Upload stores body as a temporary file and starts importing it.
func (s *Service) Upload(name string, body []byte) (<-chan Result, error) {
	f, err := os.CreateTemp(s.tmpDir, "upload-*.epub")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create upload file")
	}
	if _, err = f.Write(body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, errors.Wrap(err, "failed to write upload file")
	}
	if err = f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, errors.Wrap(err, "failed to write upload file")
	}
	return s.StartImport(f.Name(), name, true)
}

// TooLarge reports whether err rejected a download over the size limit.
func (s *Service) TooLarge(err error) bool {
	return errors.Is(err, s.loader.MaxSizeErr())
}

func (s *Service) Status() importer.Status {
	var st importer.Status
	if !s.loop.Do(func() { st = s.machine.Status() }) {
		return importer.Status{State: importer.StateIdle}
	}
	return st
}

func (s *Service) CancelImport() {
	s.loop.Do(func() {
		s.machine.Cancel()
		s.abandon(ErrImportCancelled)
	})
}

func (s *Service) processed(checksum []byte) (library.Entry, bool) {
	pf, err := s.store.GetProcessedFileByChecksum(checksum)
	if err != nil {
		return library.Entry{}, false
	}
	lib, err := s.store.GetLibrary()
	if err != nil {
		return library.Entry{}, false
	}
	i := lib.Find(pf.BookID)
	if i < 0 {
		return library.Entry{}, false
	}
	return lib.Books[i], true
}

// onFinish runs on the loop once the machine reaches DONE or ERROR.
func (s *Service) onFinish(state importer.State) {
	p := s.current
	s.current = nil
	if p == nil {
		return
	}
	defer s.cleanup(p.path, p.temp)

	res := Result{Status: s.machine.Status(), Warnings: s.machine.Warnings()}
	if state == importer.StateError {
		res.Err = errors.Wrap(s.machine.Failure(), s.machine.Err())
		p.result <- res
		return
	}

	book, err := s.machine.Book()
	if err == nil {
		res.Entry, err = s.catalog(book)
	}
	if errors.Is(err, library.ErrFull) {
		s.log.Warn("library is full, book is stored but not listed", zap.String("book_id", book.BookID))
		res.Warnings = append(res.Warnings, err.Error())
		err = nil
	}
	if err != nil {
		res.Err = errors.Wrap(err, "failed to save book")
		p.result <- res
		return
	}
	err = s.store.AddProcessedFile(storage.ProcessedFile{
		CheckSum:   p.checksum,
		BookID:     book.BookID,
		Name:       p.name,
		ImportedAt: time.Now(),
	})
	if err != nil {
		s.log.Warn("failed to remember processed file", zap.Error(err))
	}
	p.result <- res
}

func (s *Service) catalog(book library.Book) (library.Entry, error) {
	if _, err := s.store.AddBook(book); err != nil {
		return library.Entry{BookID: book.BookID, Title: book.Title, Author: book.Author, SpineCount: len(book.Spine)}, err
	}
	lib, err := s.store.GetLibrary()
	if err != nil {
		return library.Entry{}, err
	}
	return lib.Books[lib.Find(book.BookID)], nil
}

// abandon answers the pending import with err. Must run on the loop.
func (s *Service) abandon(err error) {
	p := s.current
	s.current = nil
	if p == nil {
		return
	}
	s.cleanup(p.path, p.temp)
	p.result <- Result{Status: importer.Status{State: importer.StateIdle}, Err: err}
}

func (s *Service) cleanup(path string, temp bool) {
	if !temp {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to remove temp file", zap.String("path", path), zap.Error(err))
	}
}

func (s *Service) Library() ([]library.Entry, error) {
	lib, err := s.store.GetLibrary()
	if err != nil {
		return nil, err
	}
	return lib.Books, nil
}

func (s *Service) Book(bookID string) (BookInfo, error) {
	book, err := s.book(bookID)
	if err != nil {
		return BookInfo{}, err
	}
	info := BookInfo{Book: book, Chapters: make([]ChapterInfo, 0, len(book.Spine))}
	if lib, err := s.store.GetLibrary(); err == nil {
		if i := lib.Find(bookID); i >= 0 {
			info.Entry = lib.Books[i]
		}
	}
	for i := range book.Spine {
		key, _ := book.ChapterKey(i)
		title, _ := book.ChapterTitle(i)
		info.Chapters = append(info.Chapters, ChapterInfo{Index: i, Key: key, Title: title})
	}
	return info, nil
}

func (s *Service) book(bookID string) (library.Book, error) {
	book, err := s.store.GetBook(bookID)
	if errors.Is(err, storage.ErrNotFound) {
		return book, ErrNotFound
	}
	return book, err
}

// Chapter returns the stored XHTML of spine item index.
func (s *Service) Chapter(bookID string, index int) (Chapter, error) {
	book, err := s.book(bookID)
	if err != nil {
		return Chapter{}, err
	}
	key, ok := book.ChapterKey(index)
	if !ok {
		return Chapter{}, ErrChapterNotFound
	}
	data, err := s.store.Get(importer.StoreChapters, key)
	if errors.Is(err, storage.ErrNotFound) {
		return Chapter{}, ErrChapterNotFound
	}
	if err != nil {
		return Chapter{}, err
	}
	title, _ := book.ChapterTitle(index)
	return Chapter{BookID: bookID, Index: index, Key: key, Title: title, Data: data}, nil
}

// ChapterText returns the readable text of a chapter. Chapters without a
// TOC entry are titled by their first heading.
func (s *Service) ChapterText(bookID string, index int) (ChapterText, error) {
	ch, err := s.Chapter(bookID, index)
	if err != nil {
		return ChapterText{}, err
	}
	text, err := htmltext.Extract(ch.Data)
	if err != nil {
		return ChapterText{}, err
	}
	title := ch.Title
	if title == "" {
		title = text.Heading
	}
	return ChapterText{BookID: bookID, Index: index, Title: title, Paragraphs: text.Paragraphs}, nil
}

// Page returns one page of a chapter's text. Pages are cut on sentence
// boundaries, so their number depends on the configured page size.
func (s *Service) Page(bookID string, chapter, page int) (Page, error) {
	text, err := s.ChapterText(bookID, chapter)
	if err != nil {
		return Page{}, err
	}
	pages := pager.Paginate(text.Paragraphs, s.pageSize)
	if page < 0 || page >= len(pages) {
		return Page{}, ErrPageNotFound
	}
	return Page{
		BookID:  bookID,
		Chapter: chapter,
		Title:   text.Title,
		Index:   page,
		Count:   len(pages),
		Text:    pages[page],
	}, nil
}

// Resource returns a stored archive entry of a book by its full entry name.
func (s *Service) Resource(bookID, name string) ([]byte, error) {
	key := library.ResourceKey(bookID, name)
	for _, store := range []string{importer.StoreResources, importer.StoreChapters} {
		data, err := s.store.Get(store, key)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (s *Service) SetPosition(bookID string, chapter, page int) error {
	err := s.store.UpdateLibrary(func(lib *library.Library) error {
		return lib.SetPosition(bookID, chapter, page)
	})
	if errors.Is(err, library.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Service) DeleteBook(bookID string) error {
	err := s.store.DeleteBook(bookID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
