package models

import (
	"time"

	"github.com/starford/quire/internal/doctree"
)

// SourceInfo is a lightweight representation returned by storage list operations.
type SourceInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TocEntry is one heading of a resolved document.
type TocEntry struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// Footnote is a bound footnote definition in display order.
type Footnote struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	// Refs counts the references bound to this definition.
	Refs int `json:"refs"`
}

// EmbedRef records one embed discovered in a document and how it resolved.
type EmbedRef struct {
	Source  string            `json:"source"`
	Slug    string            `json:"slug,omitempty"`
	Section string            `json:"section,omitempty"`
	Media   doctree.MediaKind `json:"media"`
	Path    string            `json:"path,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Link is a directed edge from a document to a referenced slug.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"` // "wikilink" or "embed"
}

// TopicRef is one entry of a map's topic list.
type TopicRef struct {
	Ref        string `json:"ref"`
	Slug       string `json:"slug"`
	Path       string `json:"path,omitempty"`
	Title      string `json:"title,omitempty"`
	Found      bool   `json:"found"`
	Compatible bool   `json:"compatible"`
}

// Severity grades a diagnostic.
type Severity string

// Diagnostic severities.
const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a recoverable problem found while resolving a document.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

// Diagnostic codes.
const (
	CodeMalformedPreamble = "malformed_preamble"
	CodeUnboundFootnote   = "unbound_footnote"
	CodeUnusedFootnote    = "unused_footnote"
	CodeEmbedNotFound     = "embed_not_found"
	CodeCircularEmbed     = "circular_embed"
	CodeMissingSection    = "missing_section"
	CodeMissingTopic      = "missing_topic"
	CodeAudienceMismatch  = "audience_mismatch"
	CodeUnsupportedNode   = "unsupported_node"
)

// ResolvedDocument is the loader's work product. It is owned by the cache
// and must be treated as read-only by every consumer.
type ResolvedDocument struct {
	Slug        string        `json:"slug"`
	Path        string        `json:"path"`
	Checksum    string        `json:"checksum"`
	Metadata    Metadata      `json:"metadata"`
	Tags        []string      `json:"tags,omitempty"`
	Tree        *doctree.Node `json:"-"`
	HTML        string        `json:"html"`
	XML         string        `json:"xml"`
	Embeds      []EmbedRef    `json:"embeds,omitempty"`
	Links       []Link        `json:"links,omitempty"`
	Footnotes   []Footnote    `json:"footnotes,omitempty"`
	TOC         []TocEntry    `json:"toc,omitempty"`
	Topics      []TopicRef    `json:"topics,omitempty"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty"`
	LoadedAt    time.Time     `json:"loaded_at"`
}

// Title returns the document title, falling back to the slug.
func (d *ResolvedDocument) Title() string {
	if d.Metadata != nil {
		if t := d.Metadata.Topic().Title; t != "" {
			return t
		}
	}
	return d.Slug
}
