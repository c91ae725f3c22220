package importer

import (
	"github.com/pechorka/quire/internal/library"
)

// Status is a point in time view of the current import.
type Status struct {
	SessionID string `json:"sessionId,omitempty"`
	State     State  `json:"state"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	BookID    string `json:"bookId,omitempty"`
	Chapters  int    `json:"chapters"`
	Stored    int    `json:"stored"`
	Skipped   int    `json:"skipped"`
}

func (m *Machine) Status() Status {
	s := m.s
	if s == nil {
		return Status{State: StateIdle}
	}
	st := Status{
		SessionID: s.id,
		State:     s.state,
		Progress:  s.progress,
		Error:     m.Err(),
		Title:     m.Title(),
		Author:    m.Author(),
		BookID:    m.BookID(),
		Chapters:  m.ChapterCount(),
		Stored:    s.stored,
		Skipped:   s.skipped,
	}
	return st
}

func (m *Machine) State() State {
	if m.s == nil {
		return StateIdle
	}
	return m.s.state
}

func (m *Machine) Progress() int {
	if m.s == nil {
		return 0
	}
	return m.s.progress
}

// Err returns the display message of a failed import, "" otherwise.
func (m *Machine) Err() string {
	if m.s == nil || m.s.err == nil {
		return ""
	}
	return failureMessage(m.s.err)
}

// Failure returns the error that moved the import to ERROR.
func (m *Machine) Failure() error {
	if m.s == nil {
		return nil
	}
	return m.s.err
}

func (m *Machine) Warnings() []string {
	if m.s == nil {
		return nil
	}
	return append([]string(nil), m.s.warnings...)
}

func (m *Machine) pkgReady() bool {
	return m.s != nil && m.s.pkg != nil
}

func (m *Machine) Title() string {
	if !m.pkgReady() {
		return ""
	}
	return m.s.pkg.Title
}

func (m *Machine) Author() string {
	if !m.pkgReady() {
		return ""
	}
	return m.s.pkg.Author
}

func (m *Machine) BookID() string {
	if !m.pkgReady() {
		return ""
	}
	return m.s.pkg.BookID
}

func (m *Machine) ChapterCount() int {
	if !m.pkgReady() {
		return 0
	}
	return len(m.s.pkg.Spine)
}

// ChapterKey returns the storage key of spine item i.
func (m *Machine) ChapterKey(i int) (string, bool) {
	if !m.pkgReady() {
		return "", false
	}
	p, ok := m.s.pkg.ChapterPath(i)
	if !ok {
		return "", false
	}
	return library.ResourceKey(m.s.pkg.BookID, p), true
}

func (m *Machine) TocCount() int {
	if m.s == nil {
		return 0
	}
	return len(m.s.toc)
}

func (m *Machine) TocLabel(i int) string {
	if m.s == nil || i < 0 || i >= len(m.s.toc) {
		return ""
	}
	return m.s.toc[i].Label
}

// TocChapter returns the spine index of TOC entry i, -1 when it has none.
func (m *Machine) TocChapter(i int) int {
	if m.s == nil || i < 0 || i >= len(m.s.toc) {
		return -1
	}
	return m.s.toc[i].SpineIndex
}

func (m *Machine) TocLevel(i int) int {
	if m.s == nil || i < 0 || i >= len(m.s.toc) {
		return 0
	}
	return m.s.toc[i].Level
}

// ChapterTitle returns the label of the first TOC entry pointing at spine item i.
func (m *Machine) ChapterTitle(i int) (string, bool) {
	if m.s == nil {
		return "", false
	}
	for _, e := range m.s.toc {
		if e.SpineIndex == i {
			return e.Label, true
		}
	}
	return "", false
}

// Book returns the persistable metadata of a finished import.
func (m *Machine) Book() (library.Book, error) {
	if m.State() != StateDone {
		return library.Book{}, ErrNotDone
	}
	pkg := m.s.pkg
	b := library.Book{
		BookID: pkg.BookID,
		Title:  pkg.Title,
		Author: pkg.Author,
		OpfDir: pkg.OpfDir,
		Spine:  pkg.SpineHrefs(),
		Toc:    make([]library.TocEntry, 0, len(m.s.toc)),
	}
	for _, e := range m.s.toc {
		b.Toc = append(b.Toc, library.TocEntry{Label: e.Label, SpineIndex: e.SpineIndex, Level: e.Level})
	}
	return b, nil
}
