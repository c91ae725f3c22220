package handler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pechorka/quire/internal/handler/internal/request"
	"github.com/pechorka/quire/internal/handler/internal/respond"
	"github.com/pechorka/quire/internal/importer"
	"github.com/pechorka/quire/internal/library"
	"github.com/pechorka/quire/internal/service"
	"github.com/pechorka/quire/pkg/contenttype"
	"github.com/pechorka/quire/pkg/i18n"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Service interface {
	Upload(name string, body []byte) (<-chan service.Result, error)
	ImportURL(ctx context.Context, URL string) (<-chan service.Result, error)
	Status() importer.Status
	CancelImport()
	TooLarge(err error) bool

	Library() ([]library.Entry, error)
	Book(bookID string) (service.BookInfo, error)
	Chapter(bookID string, index int) (service.Chapter, error)
	ChapterText(bookID string, index int) (service.ChapterText, error)
	Page(bookID string, chapter, page int) (service.Page, error)
	Resource(bookID, name string) ([]byte, error)
	SetPosition(bookID string, chapter, page int) error
	DeleteBook(bookID string) error
}

type Config struct {
	Service     Service
	I18n        *i18n.Localies
	Log         *zap.Logger
	MaxFileSize int64
}

const defaultMaxFileSize = 20 * 1024 * 1024 // 20 MB

type Handlers struct {
	svc         Service
	i18n        *i18n.Localies
	log         *zap.Logger
	maxFileSize int64
}

func NewHandlers(cfg Config) *Handlers {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	return &Handlers{
		svc:         cfg.Service,
		i18n:        cfg.I18n,
		log:         log.Named("http"),
		maxFileSize: cfg.MaxFileSize,
	}
}

func (h *Handlers) Register(mx chi.Router) {
	mx.Post("/books", h.UploadBook)
	mx.Post("/books/url", h.ImportURL)
	mx.Get("/import", h.ImportStatus)
	mx.Delete("/import", h.CancelImport)

	mx.Get("/books", h.Library)
	mx.Get("/books/{id}", h.Book)
	mx.Delete("/books/{id}", h.DeleteBook)
	mx.Put("/books/{id}/position", h.SetPosition)
	mx.Get("/books/{id}/chapters/{n}", h.Chapter)
	mx.Get("/books/{id}/chapters/{n}/text", h.ChapterText)
	mx.Get("/books/{id}/chapters/{n}/pages/{p}", h.Page)
	mx.Get("/books/{id}/resources/*", h.Resource)
}

type ImportResponse struct {
	Status    importer.Status `json:"status"`
	Message   string          `json:"message"`
	Book      *library.Entry  `json:"book,omitempty"`
	Duplicate bool            `json:"duplicate,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
}

// UploadBook accepts an EPUB as the raw request body or as the "file"
// field of a multipart form. With ?wait=true the response is sent once the
// import ends.
func (h *Handlers) UploadBook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	name, body, err := h.readUpload(r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respond.ErrorWithCode(w, http.StatusRequestEntityTooLarge, respond.CODE_FILE_TOO_BIG)
			return
		}
		respond.ErrorWithText(w, http.StatusBadRequest, respond.CODE_INVALID_FILE, err.Error())
		return
	}
	result, err := h.svc.Upload(name, body)
	h.started(w, r, result, err)
}

func (h *Handlers) readUpload(r *http.Request) (string, []byte, error) {
	ct := r.Header.Get("Content-Type")
	if contenttype.IsMultipart(ct) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return "", nil, err
		}
		defer f.Close()
		body, err := io.ReadAll(f)
		return hdr.Filename, body, err
	}
	if !contenttype.IsEPUB(ct) {
		return "", nil, errors.Errorf("unsupported content type %q", ct)
	}
	body, err := io.ReadAll(r.Body)
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.epub"
	}
	return name, body, err
}

type ImportURLRequest struct {
	URL string `json:"url"`
}

func (h *Handlers) ImportURL(w http.ResponseWriter, r *http.Request) {
	var req ImportURLRequest
	if err := request.DecodeJSON(r.Body, &req); err != nil {
		respond.ErrorWithCode(w, http.StatusBadRequest, respond.CODE_INVALID_JSON)
		return
	}
	if !contenttype.IsURL(req.URL) {
		respond.ErrorWithCode(w, http.StatusBadRequest, respond.CODE_INVALID_URL)
		return
	}
	result, err := h.svc.ImportURL(r.Context(), strings.TrimSpace(req.URL))
	h.started(w, r, result, err)
}

func (h *Handlers) started(w http.ResponseWriter, r *http.Request, result <-chan service.Result, err error) {
	lang := request.Language(r)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImportInProgress):
			respond.ErrorWithCode(w, http.StatusConflict, respond.CODE_IMPORT_IN_PROGRESS)
		case h.svc.TooLarge(err):
			respond.ErrorWithCode(w, http.StatusRequestEntityTooLarge, respond.CODE_FILE_TOO_BIG)
		default:
			h.log.Error("failed to start import", zap.Error(err))
			respond.ErrorWithText(w, http.StatusBadRequest, respond.CODE_INVALID_FILE, err.Error())
		}
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		st := h.svc.Status()
		respond.JSONWithStatus(w, http.StatusAccepted, ImportResponse{Status: st, Message: h.statusMessage(lang, st)})
		return
	}

	select {
	case res := <-result:
		resp := ImportResponse{
			Status:    res.Status,
			Message:   h.statusMessage(lang, res.Status),
			Duplicate: res.Duplicate,
			Warnings:  res.Warnings,
		}
		switch {
		case errors.Is(res.Err, service.ErrImportCancelled), errors.Is(res.Err, service.ErrServiceClosed):
			respond.ErrorWithCode(w, http.StatusConflict, respond.CODE_IMPORT_CANCELLED)
		case res.Err != nil:
			respond.ErrorWithText(w, http.StatusUnprocessableEntity, respond.CODE_IMPORT_FAILED, res.Status.Error)
		default:
			resp.Book = &res.Entry
			respond.JSONWithStatus(w, http.StatusCreated, resp)
		}
	case <-r.Context().Done():
		h.log.Info("client left while waiting for import", zap.Error(r.Context().Err()))
	}
}

func (h *Handlers) ImportStatus(w http.ResponseWriter, r *http.Request) {
	st := h.svc.Status()
	respond.JSON(w, ImportResponse{Status: st, Message: h.statusMessage(request.Language(r), st)})
}

func (h *Handlers) CancelImport(w http.ResponseWriter, r *http.Request) {
	h.svc.CancelImport()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) statusMessage(lang string, st importer.Status) string {
	id, ok := stateMsgIds[st.State]
	if !ok || h.i18n == nil {
		return st.State.String()
	}
	text, err := h.i18n.GetWithArgs(lang, id, map[string]string{
		"title":    st.Title,
		"progress": strconv.Itoa(st.Progress),
		"error":    st.Error,
	})
	if err != nil {
		h.log.Warn("failed to get i18n text", zap.String("id", id), zap.String("lang", lang), zap.Error(err))
		return fallbackMsg
	}
	return text
}

type LibraryResponse struct {
	Books []library.Entry `json:"books"`
}

func (h *Handlers) Library(w http.ResponseWriter, r *http.Request) {
	books, err := h.svc.Library()
	if err != nil {
		h.internalError(w, "failed to read library", err)
		return
	}
	if books == nil {
		books = []library.Entry{}
	}
	respond.JSON(w, LibraryResponse{Books: books})
}

type BookResponse struct {
	BookID         string            `json:"bookId"`
	Title          string            `json:"title"`
	Author         string            `json:"author"`
	CurrentChapter int               `json:"currentChapter"`
	CurrentPage    int               `json:"currentPage"`
	Chapters       []ChapterListItem `json:"chapters"`
	Toc            []TocItem         `json:"toc"`
}

type ChapterListItem struct {
	Index int    `json:"index"`
	Title string `json:"title,omitempty"`
}

type TocItem struct {
	Label   string `json:"label"`
	Chapter int    `json:"chapter"`
	Level   int    `json:"level"`
}

func (h *Handlers) Book(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Book(chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, "failed to read book", err)
		return
	}
	resp := BookResponse{
		BookID:         info.BookID,
		Title:          info.Title,
		Author:         info.Author,
		CurrentChapter: info.Entry.CurrentChapter,
		CurrentPage:    info.Entry.CurrentPage,
		Chapters:       make([]ChapterListItem, 0, len(info.Chapters)),
		Toc:            make([]TocItem, 0, len(info.Toc)),
	}
	for _, ch := range info.Chapters {
		resp.Chapters = append(resp.Chapters, ChapterListItem{Index: ch.Index, Title: ch.Title})
	}
	for _, t := range info.Toc {
		resp.Toc = append(resp.Toc, TocItem{Label: t.Label, Chapter: t.SpineIndex, Level: t.Level})
	}
	respond.JSON(w, resp)
}

func (h *Handlers) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBook(chi.URLParam(r, "id")); err != nil {
		h.serviceError(w, "failed to delete book", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type SetPositionRequest struct {
	Chapter int `json:"chapter"`
	Page    int `json:"page"`
}

func (h *Handlers) SetPosition(w http.ResponseWriter, r *http.Request) {
	var req SetPositionRequest
	if err := request.DecodeJSON(r.Body, &req); err != nil {
		respond.ErrorWithCode(w, http.StatusBadRequest, respond.CODE_INVALID_JSON)
		return
	}
	err := h.svc.SetPosition(chi.URLParam(r, "id"), req.Chapter, req.Page)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrNotFound):
		respond.ErrorWithCode(w, http.StatusNotFound, respond.CODE_NOT_FOUND)
	default:
		respond.ErrorWithText(w, http.StatusBadRequest, respond.CODE_INVALID_POSITION, err.Error())
	}
}

func (h *Handlers) Chapter(w http.ResponseWriter, r *http.Request) {
	n, err := request.IntParam(r, "n")
	if err != nil {
		respond.ErrorWithCode(w, http.StatusBadRequest, respond.CODE_INVALID_CHAPTER)
		return
	}
	ch, err := h.svc.Chapter(chi.URLParam(r, "id"), n)
	if err != nil {
		h.serviceError(w, "failed to read chapter", err)
		return
	}
	respond.Bytes(w, contenttype.ByExtension(ch.Key), ch.Data)
}

type ChapterTextResponse struct {
	Index      int      `json:"index"`
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
}

func (h *Handlers) ChapterText(w http.ResponseWriter, r *http.Request) {
	n, err := request.IntParam(r, "n")
	if err != nil {
		respond.ErrorWithCode(w, http.StatusBadRequest, respond.CODE_INVALID_CHAPTER)
		return
	}
	text, err := h.svc.ChapterText(chi.URLParam(r, "id"), n)
	if err != nil {
		h.serviceError(w, "failed to read chapter text", err)
		return
	}
	if text.Paragraphs == nil {
		text.Paragraphs = []string{}
	}
	respond.JSON(w, ChapterTextResponse{Index: text.Index, Title: text.Title, Paragraphs: text.Paragraphs})
}

type PageResponse struct {
	Chapter int    `json:"chapter"`
	Title   string `json:"title"`
	Page    int    `json:"page"`
	Pages   int    `json:"pages"`
	Text    string `json:"text"`
}

func (h *Handlers) Page(w http.ResponseWriter, r *http.Request) {
	n, err := request.IntParam(r, "n")
	if err != nil {
		respond.ErrorWithCode(w, http.StatusBadRequest, respond.CODE_INVALID_CHAPTER)
		return
	}
	p, err := request.IntParam(r, "p")
	if err != nil {
		respond.ErrorWithCode(w, http.StatusBadRequest, respond.CODE_INVALID_PAGE)
		return
	}
	page, err := h.svc.Page(chi.URLParam(r, "id"), n, p)
	if err != nil {
		h.serviceError(w, "failed to read page", err)
		return
	}
	respond.JSON(w, PageResponse{
		Chapter: page.Chapter,
		Title:   page.Title,
		Page:    page.Index,
		Pages:   page.Count,
		Text:    page.Text,
	})
}

// Resource serves an archive entry by its full name, e.g. OEBPS/images/cover.png.
func (h *Handlers) Resource(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || name == "" {
		respond.ErrorWithCode(w, http.StatusNotFound, respond.CODE_NOT_FOUND)
		return
	}
	data, err := h.svc.Resource(chi.URLParam(r, "id"), name)
	if err != nil {
		h.serviceError(w, "failed to read resource", err)
		return
	}
	respond.Bytes(w, contenttype.ByExtension(name), data)
}

func (h *Handlers) serviceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respond.ErrorWithCode(w, http.StatusNotFound, respond.CODE_NOT_FOUND)
	case errors.Is(err, service.ErrChapterNotFound):
		respond.ErrorWithCode(w, http.StatusNotFound, respond.CODE_CHAPTER_NOT_FOUND)
	case errors.Is(err, service.ErrPageNotFound):
		respond.ErrorWithCode(w, http.StatusNotFound, respond.CODE_PAGE_NOT_FOUND)
	default:
		h.internalError(w, msg, err)
	}
}

func (h *Handlers) internalError(w http.ResponseWriter, msg string, err error) {
	h.log.Error(msg, zap.Error(err))
	respond.ErrorWithCode(w, http.StatusInternalServerError, respond.CODE_INTERNAL_ERROR)
}
