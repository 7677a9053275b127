package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/models"
)

const maxPageSize = 500

// Response formats for GET /documents/*.
const (
	formatJSON = "json"
	formatHTML = "html"
	formatXML  = "xml"
)

// DocumentResponse is the JSON rendering of a resolved document.
type DocumentResponse struct {
	*models.ResolvedDocument
	Title string      `json:"title" example:"Getting Started"`
	Kind  models.Kind `json:"kind" example:"topic"`
}

func newDocumentResponse(doc *models.ResolvedDocument) DocumentResponse {
	return DocumentResponse{
		ResolvedDocument: doc,
		Title:            doc.Title(),
		Kind:             doc.Metadata.Kind(),
	}
}

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []index.DocumentRow `json:"documents" validate:"required"`
	Total     int                 `json:"total" example:"42" validate:"required"`
}

// TocResponse lists the headings of a document.
type TocResponse struct {
	Slug  string            `json:"slug" example:"guides/setup" validate:"required"`
	Title string            `json:"title" example:"Setup" validate:"required"`
	TOC   []models.TocEntry `json:"toc" validate:"required"`
}

// LocateResponse maps a reference to its source file.
type LocateResponse struct {
	Ref  string `json:"ref" example:"setup" validate:"required"`
	Slug string `json:"slug" example:"setup" validate:"required"`
	Path string `json:"path" example:"topics/setup.md" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// BacklinksResponse lists documents linking to or embedding a slug.
type BacklinksResponse struct {
	Target    string           `json:"target" example:"setup" validate:"required"`
	Backlinks []index.Backlink `json:"backlinks" validate:"required"`
}

// CacheClearResponse reports how many documents were evicted.
type CacheClearResponse struct {
	Evicted int `json:"evicted" example:"12"`
}

// listQuery is the parsed query string of GET /documents.
type listQuery struct {
	Kind   string
	Tag    string
	Limit  int
	Offset int
}

// Validate validates the listing parameters.
func (q listQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Kind, validation.In(string(models.KindTopic), string(models.KindMap))),
		validation.Field(&q.Limit, validation.Min(0), validation.Max(maxPageSize)),
		validation.Field(&q.Offset, validation.Min(0)),
	)
}

// searchQuery is the parsed query string of GET /search.
type searchQuery struct {
	Q     string
	Limit int
}

// Validate validates the search parameters.
func (q searchQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Q, validation.Required.Error("query parameter 'q' is required")),
		validation.Field(&q.Limit, validation.Min(0), validation.Max(maxPageSize)),
	)
}
