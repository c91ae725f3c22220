// Package importer drives the import of one EPUB file at a time through a
// resumable state machine. The machine never blocks: each step either
// finishes synchronously or issues exactly one host request and returns,
// to be resumed by the request's completion callback.
package importer

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pechorka/quire/internal/epub"
	"github.com/pechorka/quire/internal/library"
	"github.com/pechorka/quire/pkg/zipindex"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	Host Host
	Log  *zap.Logger
	// InflateControlFiles allows DEFLATE compressed container.xml, OPF and NCX.
	InflateControlFiles bool
	// OnFinish is called once when an import reaches DONE or ERROR.
	OnFinish func(State)
}

// Machine is not safe for concurrent use. All calls, including host
// callbacks, must come from a single goroutine.
type Machine struct {
	host     Host
	log      *zap.Logger
	inflate  bool
	onFinish func(State)

	s *session
}

func New(cfg Config) *Machine {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		host:     cfg.Host,
		log:      log,
		inflate:  cfg.InflateControlFiles,
		onFinish: cfg.OnFinish,
	}
}

type session struct {
	id       string
	ref      string
	state    State
	progress int
	err      error
	log      *zap.Logger

	file File
	zip  *zipindex.Index
	blob Blob

	pkg *epub.Package
	toc []epub.TocEntry
	// control marks container.xml, the OPF and the NCX.
	control map[int]bool
	// chapters marks archive entries referenced by the spine as XHTML.
	chapters map[int]bool

	cursor   int
	total    int
	stored   int
	skipped  int
	warnings []string
}

// StartImport begins importing the file identified by ref.
func (m *Machine) StartImport(ref string) error {
	if m.s != nil && m.s.state != StateIdle {
		return ErrImportActive
	}
	s := &session{
		id:      uuid.New().String(),
		ref:     ref,
		state:   StateOpeningFile,
		control: make(map[int]bool),
	}
	s.log = m.log.With(zap.String("session", s.id), zap.String("file", ref))
	m.s = s
	s.log.Info("import started")
	m.host.OpenFile(ref, func(f File, err error) { m.onFileOpened(s, f, err) })
	return nil
}

func (m *Machine) current(s *session) bool {
	return m.s == s
}

func (m *Machine) onFileOpened(s *session, f File, err error) {
	if !m.current(s) {
		if f != nil {
			f.Close()
		}
		return
	}
	if err != nil {
		m.fail(s, errors.Wrap(ErrFileOpenFailed, err.Error()))
		return
	}
	s.file = f

	s.state = StateParsingZip
	zr, err := zipindex.Open(f, f.Size())
	if err != nil {
		m.fail(s, err)
		return
	}
	s.zip = zr
	s.total = zr.Len()

	s.state = StateReadingContainer
	opfPath, err := m.readContainer(s)
	if err != nil {
		m.fail(s, err)
		return
	}

	s.state = StateReadingOpf
	if err := m.readPackage(s, opfPath); err != nil {
		m.fail(s, err)
		return
	}
	m.readToc(s)

	s.state = StateOpeningDB
	m.host.OpenStore(DBName, DBVersion, Stores, func(err error) { m.onStoreOpened(s, err) })
}

func (m *Machine) readContainer(s *session) (string, error) {
	i, ok := s.zip.Find(epub.ContainerPath)
	if !ok {
		return "", ErrMissingContainerXML
	}
	s.control[i] = true
	data, err := m.readControl(s, i)
	if err != nil {
		if errors.Is(err, zipindex.ErrUnsupportedCompression) {
			return "", errContainerCompressed
		}
		return "", errors.Wrap(ErrMissingContainerXML, err.Error())
	}
	return epub.ParseContainer(data)
}

func (m *Machine) readPackage(s *session, opfPath string) error {
	i, ok := s.zip.Find(opfPath)
	if !ok {
		return errors.Wrap(ErrOpfNotFound, opfPath)
	}
	s.control[i] = true
	data, err := m.readControl(s, i)
	if err != nil {
		if errors.Is(err, zipindex.ErrUnsupportedCompression) {
			return errOpfCompressed
		}
		return errors.Wrap(epub.ErrOpfParseFailed, err.Error())
	}
	pkg, err := epub.ParseOpf(data, opfPath, s.zip)
	if err != nil {
		return err
	}
	s.pkg = pkg
	for _, w := range pkg.Warnings {
		m.warn(s, w)
	}
	s.chapters = make(map[int]bool, len(pkg.Spine))
	for _, mi := range pkg.Spine {
		item := pkg.Manifest[mi]
		if item.MediaType == epub.MediaXHTML && item.InArchive() {
			s.chapters[item.ZipIndex] = true
		}
	}
	s.log.Info("package parsed",
		zap.String("title", pkg.Title),
		zap.String("author", pkg.Author),
		zap.String("book_id", pkg.BookID),
		zap.Int("manifest", len(pkg.Manifest)),
		zap.Int("spine", len(pkg.Spine)),
	)
	return nil
}

// readToc is best effort: a missing or broken NCX leaves the TOC empty.
func (m *Machine) readToc(s *session) {
	i, ok := s.zip.FindSuffix(".ncx")
	if !ok {
		return
	}
	s.control[i] = true
	data, err := m.readControl(s, i)
	if err != nil {
		m.warn(s, fmt.Sprintf("ncx skipped: %v", err))
		return
	}
	toc, warnings, err := epub.ParseNcx(data, s.pkg)
	if err != nil {
		m.warn(s, fmt.Sprintf("ncx skipped: %v", err))
		return
	}
	for _, w := range warnings {
		m.warn(s, w)
	}
	s.toc = toc
}

func (m *Machine) readControl(s *session, i int) ([]byte, error) {
	e, err := s.zip.Entry(i)
	if err != nil {
		return nil, err
	}
	switch {
	case e.Method == zipindex.Stored:
		return s.zip.ReadStored(i)
	case e.Method == zipindex.Deflate && m.inflate:
		return s.zip.ReadAll(i)
	default:
		return nil, errors.Wrapf(zipindex.ErrUnsupportedCompression, "%s uses method %d", e.Name, e.Method)
	}
}

func (m *Machine) onStoreOpened(s *session, err error) {
	if !m.current(s) {
		return
	}
	if err != nil {
		m.fail(s, errors.Wrap(ErrDatabaseOpenFailed, err.Error()))
		return
	}
	s.state = StateDecompressing
	m.advance(s)
}

// advance walks archive entries from the cursor. STORED payloads are
// written in the same turn, a DEFLATE payload suspends the walk until the
// host has inflated and stored it.
func (m *Machine) advance(s *session) {
	for s.cursor < s.total {
		i := s.cursor
		e, _ := s.zip.Entry(i)
		if e.IsDir() || e.UncompressedSize == 0 || s.control[i] {
			m.step(s)
			continue
		}
		store, key := m.target(s, i, e)
		switch e.Method {
		case zipindex.Stored:
			data, err := s.zip.ReadStored(i)
			if err == nil {
				err = m.host.Put(store, key, data)
			}
			m.record(s, e, err)
			m.step(s)
		case zipindex.Deflate:
			m.host.Decompress(s.file, e, func(b Blob, err error) { m.onDecompressed(s, store, key, e, b, err) })
			return
		default:
			m.record(s, e, zipindex.ErrUnsupportedCompression)
			m.step(s)
		}
	}
	m.finish(s)
}

func (m *Machine) onDecompressed(s *session, store, key string, e zipindex.Entry, b Blob, err error) {
	if !m.current(s) {
		if b != nil {
			b.Free()
		}
		return
	}
	if err != nil {
		if b != nil {
			b.Free()
		}
		m.record(s, e, err)
		m.step(s)
		m.advance(s)
		return
	}
	s.blob = b
	s.state = StateStoring
	m.host.PutBlob(store, key, b, func(err error) { m.onStored(s, e, err) })
}

func (m *Machine) onStored(s *session, e zipindex.Entry, err error) {
	if !m.current(s) {
		return
	}
	if s.blob != nil {
		s.blob.Free()
		s.blob = nil
	}
	m.record(s, e, err)
	m.step(s)
	s.state = StateDecompressing
	m.advance(s)
}

func (m *Machine) target(s *session, i int, e zipindex.Entry) (string, string) {
	key := library.ResourceKey(s.pkg.BookID, e.Name)
	if s.chapters[i] {
		return StoreChapters, key
	}
	return StoreResources, key
}

func (m *Machine) record(s *session, e zipindex.Entry, err error) {
	if err != nil {
		s.skipped++
		s.log.Warn("entry skipped", zap.String("entry", e.Name), zap.Error(err))
		return
	}
	s.stored++
}

// step moves the cursor past the current entry. Progress never goes
// backwards and reaches 100 only in finish.
func (m *Machine) step(s *session) {
	s.cursor++
	if s.cursor >= s.total {
		return
	}
	if p := s.cursor * 100 / s.total; p > s.progress {
		s.progress = p
	}
}

func (m *Machine) finish(s *session) {
	m.release(s)
	s.state = StateDone
	s.progress = 100
	s.log.Info("import finished",
		zap.String("book_id", s.pkg.BookID),
		zap.Int("stored", s.stored),
		zap.Int("skipped", s.skipped),
	)
	m.notify(StateDone)
}

func (m *Machine) fail(s *session, err error) {
	m.release(s)
	s.err = err
	s.state = StateError
	s.log.Error("import failed", zap.Error(err))
	m.notify(StateError)
}

func (m *Machine) notify(st State) {
	if m.onFinish != nil {
		m.onFinish(st)
	}
}

func (m *Machine) warn(s *session, msg string) {
	s.warnings = append(s.warnings, msg)
	s.log.Warn(msg)
}

func (m *Machine) release(s *session) {
	if s.blob != nil {
		s.blob.Free()
		s.blob = nil
	}
	if s.zip != nil {
		s.zip.Close()
		s.zip = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			s.log.Warn("failed to close file", zap.Error(err))
		}
		s.file = nil
	}
}

// Cancel abandons the current import, releases every held resource and
// returns the machine to IDLE. Completions of requests issued before the
// cancel are ignored.
func (m *Machine) Cancel() {
	s := m.s
	if s == nil {
		return
	}
	if s.state.Active() {
		s.log.Info("import cancelled", zap.Stringer("state", s.state))
	}
	m.release(s)
	m.s = nil
}

// Reset clears a finished or failed import so a new one can start.
func (m *Machine) Reset() {
	m.Cancel()
}
