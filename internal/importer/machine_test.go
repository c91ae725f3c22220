package importer

import (
	"testing"

	"github.com/pechorka/quire/internal/epub"
	"github.com/pechorka/quire/internal/epub/epubtest"
	"github.com/pechorka/quire/internal/library"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const bookRef = "book.epub"

type harness struct {
	host     *fakeHost
	m        *Machine
	finished []State
}

func newHarness(t *testing.T, files []epubtest.File, inflate bool) *harness {
	t.Helper()
	data, err := epubtest.Build(files...)
	require.NoError(t, err)
	h := &harness{host: newFakeHost()}
	h.host.files[bookRef] = data
	h.m = New(Config{
		Host:                h.host,
		Log:                 zaptest.NewLogger(t),
		InflateControlFiles: inflate,
		OnFinish:            func(s State) { h.finished = append(h.finished, s) },
	})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.m.StartImport(bookRef))
	require.Equal(t, StateOpeningFile, h.m.State())
}

// runUntil completes host requests until the machine reaches state.
func (h *harness) runUntil(t *testing.T, state State) {
	t.Helper()
	for h.m.State() != state {
		require.True(t, h.host.step(), "stuck in %s waiting for %s", h.m.State(), state)
	}
}

func TestImport_Sample(t *testing.T) {
	so := require.New(t)
	h := newHarness(t, epubtest.SampleFiles(), false)
	h.start(t)

	progress := []int{h.m.Progress()}
	for h.host.step() {
		progress = append(progress, h.m.Progress())
	}
	for i := 1; i < len(progress); i++ {
		so.GreaterOrEqual(progress[i], progress[i-1], "progress must not go backwards")
		if progress[i] == 100 {
			so.Equal(len(progress)-1, i)
		}
	}
	so.Equal(1, h.host.maxInFlight)

	so.Equal(StateDone, h.m.State())
	so.Equal(100, h.m.Progress())
	so.Empty(h.m.Err())
	so.Equal([]State{StateDone}, h.finished)

	bookID := epub.BookID("Alpha", "Zed")
	so.Equal("Alpha", h.m.Title())
	so.Equal("Zed", h.m.Author())
	so.Equal(bookID, h.m.BookID())
	so.Equal(2, h.m.ChapterCount())

	key, ok := h.m.ChapterKey(0)
	so.True(ok)
	so.Equal(bookID+"/OEBPS/ch1.xhtml", key)
	_, ok = h.m.ChapterKey(2)
	so.False(ok)

	so.Equal(2, h.m.TocCount())
	so.Equal("One", h.m.TocLabel(0))
	so.Equal("Two", h.m.TocLabel(1))
	so.Equal(0, h.m.TocChapter(0))
	so.Equal(1, h.m.TocChapter(1))
	so.Equal(0, h.m.TocLevel(1))
	so.Equal(-1, h.m.TocChapter(5))
	title, ok := h.m.ChapterTitle(1)
	so.True(ok)
	so.Equal("Two", title)

	chapters := h.host.stores[StoreChapters]
	so.Len(chapters, 2)
	so.Contains(string(chapters[bookID+"/OEBPS/ch1.xhtml"]), "First chapter text.")
	so.Contains(string(chapters[bookID+"/OEBPS/ch2.xhtml"]), "Second chapter text.")

	resources := h.host.stores[StoreResources]
	so.Equal("body { margin: 0; }", string(resources[bookID+"/OEBPS/style.css"]))
	so.Equal("application/epub+zip", string(resources[bookID+"/mimetype"]))
	so.NotContains(resources, bookID+"/OEBPS/content.opf")
	so.NotContains(resources, bookID+"/OEBPS/toc.ncx")
	so.NotContains(resources, bookID+"/META-INF/container.xml")

	st := h.m.Status()
	so.Equal(4, st.Stored)
	so.Equal(0, st.Skipped)
	so.Equal(bookID, st.BookID)

	so.True(h.host.allBlobsFreed())
	so.True(h.host.allFilesClosed())

	book, err := h.m.Book()
	so.NoError(err)
	so.Equal(library.Book{
		BookID: bookID,
		Title:  "Alpha",
		Author: "Zed",
		OpfDir: "OEBPS/",
		Spine:  []string{"ch1.xhtml", "ch2.xhtml"},
		Toc: []library.TocEntry{
			{Label: "One", SpineIndex: 0, Level: 0},
			{Label: "Two", SpineIndex: 1, Level: 0},
		},
	}, book)

	data, err := library.MarshalBook(book)
	so.NoError(err)
	restored, err := library.UnmarshalBook(data)
	so.NoError(err)
	so.Equal(book, restored)
	restoredKey, _ := restored.ChapterKey(0)
	so.Equal(key, restoredKey)
}

func TestImport_Failures(t *testing.T) {
	base := epubtest.SampleFiles()
	without := func(name string) []epubtest.File {
		var out []epubtest.File
		for _, f := range base {
			if f.Name != name {
				out = append(out, f)
			}
		}
		return out
	}
	replace := func(f epubtest.File) []epubtest.File {
		out := append([]epubtest.File(nil), base...)
		for i := range out {
			if out[i].Name == f.Name {
				out[i] = f
			}
		}
		return out
	}

	tests := []struct {
		name    string
		files   []epubtest.File
		wantMsg string
		wantErr error
	}{
		{
			name:    "missing container",
			files:   without(epub.ContainerPath),
			wantMsg: "Missing container.xml",
			wantErr: ErrMissingContainerXML,
		},
		{
			name:    "compressed container",
			files:   replace(epubtest.File{Name: epub.ContainerPath, Body: epubtest.Container("OEBPS/content.opf"), Compress: true}),
			wantMsg: "Unsupported compression in container.xml",
		},
		{
			name:    "no rootfile",
			files:   replace(epubtest.File{Name: epub.ContainerPath, Body: `<container><rootfiles/></container>`}),
			wantMsg: "Missing rootfile in container.xml",
			wantErr: epub.ErrMissingRootfile,
		},
		{
			name:    "missing opf",
			files:   without("OEBPS/content.opf"),
			wantMsg: "OPF file not found",
			wantErr: ErrOpfNotFound,
		},
		{
			name:    "compressed opf",
			files:   replace(epubtest.File{Name: "OEBPS/content.opf", Body: base[2].Body, Compress: true}),
			wantMsg: "Unsupported compression in OPF",
		},
		{
			name:    "broken opf",
			files:   replace(epubtest.File{Name: "OEBPS/content.opf", Body: `<package><metadata/></package>`}),
			wantMsg: "Failed to parse OPF",
			wantErr: epub.ErrOpfParseFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.files, false)
			h.start(t)
			h.host.drain()

			require.Equal(t, StateError, h.m.State())
			require.Equal(t, tt.wantMsg, h.m.Err())
			if tt.wantErr != nil {
				require.ErrorIs(t, h.m.Failure(), tt.wantErr)
			}
			require.Equal(t, []State{StateError}, h.finished)
			require.True(t, h.host.allFilesClosed())
			require.Empty(t, h.host.stores[StoreChapters])
		})
	}
}

func TestImport_InvalidZip(t *testing.T) {
	h := newHarness(t, nil, false)
	h.host.files[bookRef] = []byte("this is not a zip archive at all")
	h.start(t)
	h.host.drain()

	require.Equal(t, StateError, h.m.State())
	require.Equal(t, "Invalid ZIP file", h.m.Err())
	require.True(t, h.host.allFilesClosed())
}

func TestImport_FileOpenFailed(t *testing.T) {
	h := newHarness(t, epubtest.SampleFiles(), false)
	require.NoError(t, h.m.StartImport("missing.epub"))
	h.host.drain()

	require.Equal(t, StateError, h.m.State())
	require.Equal(t, "Failed to open file", h.m.Err())
	require.ErrorIs(t, h.m.Failure(), ErrFileOpenFailed)
}

func TestImport_DatabaseFailure(t *testing.T) {
	h := newHarness(t, epubtest.SampleFiles(), false)
	h.host.openStoreErr = errors.New("quota exceeded")
	h.start(t)
	h.host.drain()

	require.Equal(t, StateError, h.m.State())
	require.Equal(t, "Failed to open database", h.m.Err())
	require.Equal(t, "Alpha", h.m.Title(), "metadata parsed before the failure stays queryable")
}

func TestImport_InflateControlFiles(t *testing.T) {
	files := epubtest.SampleFiles()
	for i := range files {
		files[i].Compress = true
	}
	h := newHarness(t, files, true)
	h.start(t)
	h.host.drain()

	require.Equal(t, StateDone, h.m.State())
	require.Equal(t, 2, h.m.TocCount())
	require.Len(t, h.host.stores[StoreChapters], 2)
}

func TestImport_CompressedNcxIsNotFatal(t *testing.T) {
	files := epubtest.SampleFiles()
	files[3].Compress = true
	h := newHarness(t, files, false)
	h.start(t)
	h.host.drain()

	require.Equal(t, StateDone, h.m.State())
	require.Equal(t, 0, h.m.TocCount())
	require.NotEmpty(t, h.m.Warnings())
	_, ok := h.m.ChapterTitle(0)
	require.False(t, ok)
}

func TestImport_SkipsFailedEntries(t *testing.T) {
	so := require.New(t)
	h := newHarness(t, epubtest.SampleFiles(), false)
	bookID := epub.BookID("Alpha", "Zed")
	h.host.putErr[bookID+"/OEBPS/ch1.xhtml"] = errors.New("disk full")
	h.host.inflateErr["OEBPS/style.css"] = errors.New("corrupt stream")
	h.start(t)
	h.host.drain()

	so.Equal(StateDone, h.m.State())
	st := h.m.Status()
	so.Equal(2, st.Skipped)
	so.Equal(2, st.Stored)
	so.Len(h.host.stores[StoreChapters], 1)
	so.True(h.host.allBlobsFreed())
}

func TestImport_SkipsDirectoriesAndEmptyEntries(t *testing.T) {
	files := append(epubtest.SampleFiles(),
		epubtest.File{Name: "OEBPS/images/"},
		epubtest.File{Name: "OEBPS/empty.txt"},
	)
	h := newHarness(t, files, false)
	h.start(t)
	h.host.drain()

	require.Equal(t, StateDone, h.m.State())
	require.Equal(t, 4, h.m.Status().Stored)
	require.Equal(t, 0, h.m.Status().Skipped)
}

func TestImport_UnresolvedChapterIsResource(t *testing.T) {
	items := []epubtest.Item{
		{ID: "c1", Href: "ch1.xhtml", MediaType: "application/xhtml+xml"},
		{ID: "img", Href: "cover.png", MediaType: "image/png"},
	}
	files := []epubtest.File{
		{Name: epub.ContainerPath, Body: epubtest.Container("content.opf")},
		{Name: "content.opf", Body: epubtest.Package("", "", items, []string{"c1", "img"})},
		{Name: "ch1.xhtml", Body: epubtest.Chapter("One", "text"), Compress: true},
		{Name: "cover.png", Body: "\x89PNG fake"},
		{Name: "extra.xhtml", Body: epubtest.Chapter("Extra", "not in spine")},
	}
	h := newHarness(t, files, false)
	h.start(t)
	h.host.drain()

	so := require.New(t)
	so.Equal(StateDone, h.m.State())
	so.Equal(epub.Unknown, h.m.Title())
	bookID := epub.BookID(epub.Unknown, epub.Unknown)
	so.Equal(2, h.m.ChapterCount())
	so.Len(h.host.stores[StoreChapters], 1)
	so.Contains(h.host.stores[StoreChapters], bookID+"/ch1.xhtml")
	so.Contains(h.host.stores[StoreResources], bookID+"/cover.png", "non xhtml spine items are resources")
	so.Contains(h.host.stores[StoreResources], bookID+"/extra.xhtml", "xhtml outside the spine is a resource")
}

func TestCancel_WhileDecompressing(t *testing.T) {
	so := require.New(t)
	h := newHarness(t, epubtest.SampleFiles(), false)
	h.start(t)
	h.runUntil(t, StateDecompressing)
	so.Len(h.host.pending, 1, "decompress request in flight")

	h.m.Cancel()
	so.Equal(StateIdle, h.m.State())
	so.Equal(0, h.m.Progress())
	so.Empty(h.m.Title())
	so.True(h.host.allFilesClosed())

	// the stale completion must not resume the abandoned import
	h.host.drain()
	so.Equal(StateIdle, h.m.State())
	so.Empty(h.host.stores[StoreChapters])
	so.True(h.host.allBlobsFreed())
	so.Empty(h.finished)

	// a fresh import runs to completion
	h.start(t)
	h.host.drain()
	so.Equal(StateDone, h.m.State())
	so.Len(h.host.stores[StoreChapters], 2)
}

func TestCancel_WhileStoring(t *testing.T) {
	so := require.New(t)
	h := newHarness(t, epubtest.SampleFiles(), false)
	h.start(t)
	h.runUntil(t, StateStoring)
	so.Len(h.host.blobs, 1)
	so.False(h.host.blobs[0].freed)

	h.m.Cancel()
	so.True(h.host.blobs[0].freed, "held blob is released on cancel")
	h.host.drain()
	so.Equal(StateIdle, h.m.State())
}

func TestCancel_WhileOpening(t *testing.T) {
	h := newHarness(t, epubtest.SampleFiles(), false)
	h.start(t)
	h.m.Cancel()
	h.host.drain()

	require.Equal(t, StateIdle, h.m.State())
	require.Len(t, h.host.openFiles, 1)
	require.True(t, h.host.allFilesClosed(), "late file handle is closed")
}

func TestStartImport_OneAtATime(t *testing.T) {
	so := require.New(t)
	h := newHarness(t, epubtest.SampleFiles(), false)
	h.start(t)
	so.ErrorIs(h.m.StartImport(bookRef), ErrImportActive)

	h.host.drain()
	so.Equal(StateDone, h.m.State())
	so.ErrorIs(h.m.StartImport(bookRef), ErrImportActive, "finished import must be reset first")

	h.m.Reset()
	so.Equal(StateIdle, h.m.State())
	_, err := h.m.Book()
	so.ErrorIs(err, ErrNotDone)
	h.start(t)
}

func TestStatus_Idle(t *testing.T) {
	m := New(Config{Host: newFakeHost()})
	st := m.Status()
	require.Equal(t, StateIdle, st.State)
	require.Equal(t, "", m.Err())
	require.Equal(t, 0, m.TocCount())
	require.Equal(t, "IDLE", StateIdle.String())
	require.Equal(t, "ERROR", StateError.String())
	require.Equal(t, 99, int(StateError))
}
