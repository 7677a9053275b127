package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/slug"
)

// DocumentLoader is the part of the content loader the API serves from.
type DocumentLoader interface {
	Load(ctx context.Context, ref string) (*models.ResolvedDocument, error)
	Locate(ref string) (string, error)
	Cached() int
	Clear()
}

// Handler holds API route handlers.
type Handler struct {
	docs DocumentLoader
	idx  index.DocumentIndex
}

// NewHandler creates a new Handler. idx may be nil, in which case the
// listing, search and backlink routes answer 503.
func NewHandler(docs DocumentLoader, idx index.DocumentIndex) *Handler {
	return &Handler{docs: docs, idx: idx}
}

// refParam extracts the reference from the URL (everything after the route prefix).
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fsetup.md).
func refParam(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// loadError maps a loader error onto a response.
func loadError(w http.ResponseWriter, ref string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	slog.Error("load document failed", slog.String("ref", ref), slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

func (h *Handler) requireIndex(w http.ResponseWriter) bool {
	if h.idx == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("index unavailable"))
		return false
	}
	return true
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List indexed documents with optional pagination and filtering
//	@Tags			documents
//	@Produce		json
//	@Param			kind	query		string	false	"Filter by kind"	Enums(topic, map)
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	DocumentListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	if !h.requireIndex(w) {
		return
	}
	q := r.URL.Query()
	lq := listQuery{Kind: q.Get("kind"), Tag: q.Get("tag")}
	lq.Limit, _ = strconv.Atoi(q.Get("limit"))
	lq.Offset, _ = strconv.Atoi(q.Get("offset"))
	if err := lq.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	rows, total, err := h.idx.ListDocuments(lq.Kind, lq.Tag, lq.Limit, lq.Offset)
	if err != nil {
		slog.Error("list documents failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if rows == nil {
		rows = []index.DocumentRow{}
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: rows, Total: total})
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Resolve and render a document
//	@Tags			documents
//	@Produce		json,html,xml
//	@Param			path	path		string	true	"Document reference"
//	@Param			format	query		string	false	"Output format"	Enums(json, html, xml)
//	@Success		200		{object}	DocumentResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	ref := refParam(r)
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("reference is required"))
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = formatJSON
	}
	if format != formatJSON && format != formatHTML && format != formatXML {
		writeJSON(w, http.StatusBadRequest, errorBody("format must be one of json, html, xml"))
		return
	}

	doc, err := h.docs.Load(r.Context(), ref)
	if err != nil {
		loadError(w, ref, err)
		return
	}

	var contentType string
	var body []byte
	switch format {
	case formatHTML:
		contentType, body = "text/html; charset=utf-8", []byte(doc.HTML)
	case formatXML:
		contentType, body = "application/xml; charset=utf-8", []byte(doc.XML)
	default:
		contentType = "application/json; charset=utf-8"
		if body, err = json.Marshal(newDocumentResponse(doc)); err != nil {
			slog.Error("json encode failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		body = append(body, '\n')
	}

	// The tag covers the served bytes, so spliced embeds and the format
	// both change it.
	etag := checksum.ETag(checksum.Sum(body))
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeBody(w, contentType, body)
}

// GetTOC handles GET /api/toc/*.
//
//	@Summary		Get the table of contents of a document
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document reference"
//	@Success		200		{object}	TocResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/toc/{path} [get]
func (h *Handler) GetTOC(w http.ResponseWriter, r *http.Request) {
	ref := refParam(r)
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("reference is required"))
		return
	}
	doc, err := h.docs.Load(r.Context(), ref)
	if err != nil {
		loadError(w, ref, err)
		return
	}
	toc := doc.TOC
	if toc == nil {
		toc = []models.TocEntry{}
	}
	writeJSON(w, http.StatusOK, TocResponse{Slug: doc.Slug, Title: doc.Title(), TOC: toc})
}

// Locate handles GET /api/locate.
//
//	@Summary		Map a logical reference onto its source file
//	@Tags			documents
//	@Produce		json
//	@Param			ref	query		string	true	"Logical reference"
//	@Success		200	{object}	LocateResponse
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/locate [get]
func (h *Handler) Locate(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if strings.TrimSpace(ref) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'ref' is required"))
		return
	}
	p, err := h.docs.Locate(ref)
	if err != nil {
		loadError(w, ref, err)
		return
	}
	writeJSON(w, http.StatusOK, LocateResponse{Ref: ref, Slug: slug.Normalize(p), Path: p})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across indexed documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if !h.requireIndex(w) {
		return
	}
	sq := searchQuery{Q: r.URL.Query().Get("q")}
	sq.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if err := sq.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	results, err := h.idx.Search(sq.Q, sq.Limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", sq.Q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Backlinks handles GET /api/backlinks/*.
//
//	@Summary		List documents linking to or embedding a document
//	@Tags			search
//	@Produce		json
//	@Param			path	path		string	true	"Document reference"
//	@Success		200		{object}	BacklinksResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	if !h.requireIndex(w) {
		return
	}
	target := slug.Normalize(refParam(r))
	if target == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("reference is required"))
		return
	}
	links, err := h.idx.Backlinks(target)
	if err != nil {
		slog.Error("backlinks failed", slog.String("target", target), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if links == nil {
		links = []index.Backlink{}
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Target: target, Backlinks: links})
}

// ClearCache handles POST /api/cache/clear.
//
//	@Summary		Drop every cached document
//	@Tags			cache
//	@Produce		json
//	@Success		200	{object}	CacheClearResponse
//	@Security		BearerAuth
//	@Router			/cache/clear [post]
func (h *Handler) ClearCache(w http.ResponseWriter, _ *http.Request) {
	n := h.docs.Cached()
	h.docs.Clear()
	slog.Info("loader cache cleared", slog.Int("evicted", n))
	writeJSON(w, http.StatusOK, CacheClearResponse{Evicted: n})
}
