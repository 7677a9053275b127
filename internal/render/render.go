// Package render serializes transformed document trees to presentational
// HTML and to a DITA-style XML interchange format.
package render

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/slug"
)

// Format names an output representation.
type Format string

// Supported formats.
const (
	FormatHTML Format = "html"
	FormatXML  Format = "xml"
)

// ParseFormat validates a format name. The empty string selects HTML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "html":
		return FormatHTML, nil
	case "xml", "dita":
		return FormatXML, nil
	}
	return "", fmt.Errorf("render: unknown format %q", s)
}

// Resolver maps a wikilink target to the slug of an existing document.
type Resolver func(target string) (string, bool)

// Options control link generation.
type Options struct {
	// PageBase prefixes page hrefs. Defaults to "/".
	PageBase string
	// AssetBase prefixes asset hrefs. Defaults to "/assets/".
	AssetBase string
	// Resolve reports whether a page target exists. Without it every page
	// link is assumed to resolve to its normalized slug.
	Resolve Resolver
	// OnUnsupported is called for each node the target format cannot express.
	OnUnsupported func(kind doctree.Kind)
}

func (o Options) withDefaults() Options {
	if o.PageBase == "" {
		o.PageBase = "/"
	}
	if o.AssetBase == "" {
		o.AssetBase = "/assets/"
	}
	return o
}

// Serialize renders doc in the requested format.
func Serialize(format Format, doc *models.ResolvedDocument, opts Options) (string, error) {
	switch format {
	case FormatHTML:
		return HTML(doc.Tree, opts), nil
	case FormatXML:
		return XML(doc, opts), nil
	}
	return "", fmt.Errorf("render: unknown format %q", format)
}

// pageTarget resolves a page or section wikilink to a slug.
func (o Options) pageTarget(target string) (string, bool) {
	if o.Resolve != nil {
		return o.Resolve(target)
	}
	return slug.Normalize(target), true
}

func (o Options) assetHref(target string) string {
	return strings.TrimSuffix(o.AssetBase, "/") + "/" + strings.TrimLeft(target, "/")
}

// mediaHref leaves absolute URLs alone and places everything else under the
// asset base.
func (o Options) mediaHref(source string) string {
	if strings.Contains(source, "://") {
		return source
	}
	return o.assetHref(source)
}

// wikiHref returns the presentational href of a wikilink and whether its
// target is missing.
func (o Options) wikiHref(w *doctree.WikilinkInfo) (string, bool) {
	switch w.Class {
	case doctree.LinkExternal:
		return w.Target, false
	case doctree.LinkImage, doctree.LinkDocument:
		return o.assetHref(w.Target), false
	}
	fragment := ""
	if w.Fragment != "" {
		fragment = "#" + slug.Anchor(w.Fragment)
	}
	if w.Target == "" {
		return fragment, false
	}
	s, ok := o.pageTarget(w.Target)
	if !ok {
		s = slug.Normalize(w.Target)
	}
	return o.PageBase + s + fragment, !ok
}

// TopicID derives an XML identifier from a slug.
func TopicID(s string) string {
	id := slug.Anchor(strings.ReplaceAll(s, "/", "-"))
	if id == "" {
		return "topic"
	}
	if c := id[0]; c >= '0' && c <= '9' {
		return "t-" + id
	}
	return id
}

var (
	dimensionsRe = regexp.MustCompile(`^(\d+)(?:x(\d+))?$`)
	keyValueRe   = regexp.MustCompile(`^([A-Za-z][\w-]*)=(\S+)$`)
)

// sizeAttrs converts an embed size to width/height attribute pairs.
func sizeAttrs(size string) [][2]string {
	if m := dimensionsRe.FindStringSubmatch(size); m != nil {
		attrs := [][2]string{{"width", m[1]}}
		if m[2] != "" {
			attrs = append(attrs, [2]string{"height", m[2]})
		}
		return attrs
	}
	if m := keyValueRe.FindStringSubmatch(size); m != nil {
		key := strings.ToLower(m[1])
		if key != "width" && key != "height" {
			key = "data-" + key
		}
		return [][2]string{{key, m[2]}}
	}
	return nil
}

var mimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".ogv":  "video/ogg",
	".avi":  "video/x-msvideo",
	".pdf":  "application/pdf",
}

func mimeType(source string) string {
	if t, ok := mimeTypes[strings.ToLower(path.Ext(source))]; ok {
		return t
	}
	return "application/octet-stream"
}

// calloutTitle is the explicit title or the capitalized type.
func calloutTitle(c *doctree.CalloutInfo) string {
	if c.Title != "" {
		return c.Title
	}
	if c.Type == "" {
		return "Note"
	}
	return strings.ToUpper(c.Type[:1]) + c.Type[1:]
}

// embedLabel is the visible text of an embed that is shown as a link.
func embedLabel(e *doctree.EmbedInfo) string {
	if e.Alt != "" {
		return e.Alt
	}
	return path.Base(e.Source)
}
