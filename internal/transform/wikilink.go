package transform

import (
	"path"
	"slices"
	"strings"

	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/syntax"
)

var (
	imageExts    = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".bmp", ".avif", ".ico"}
	audioExts    = []string{".mp3", ".wav", ".ogg", ".m4a", ".flac", ".aac"}
	videoExts    = []string{".mp4", ".webm", ".mov", ".mkv", ".ogv", ".avi"}
	documentExts = []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt", ".ods", ".odp", ".rtf", ".csv"}
)

// Wikilinks replaces [[target]] and [[target|alias]] runs with wikilink nodes.
func Wikilinks(root *doctree.Node, _ *Context) *doctree.Node {
	return doctree.Rewrite(root, tokenRewriter(syntax.Wikilink, func(tok syntax.Token) *doctree.Node {
		info := ParseWikilink(tok.Body)
		if info.Target == "" && info.Fragment == "" {
			return nil
		}
		return &doctree.Node{Kind: doctree.KindWikilink, Wikilink: info}
	}))
}

// ParseWikilink splits the body of a wikilink and classifies its target.
func ParseWikilink(body string) *doctree.WikilinkInfo {
	// Unescaping also turns the table-safe \| into a separator.
	body = doctree.Unescape(body)
	target, alias, _ := strings.Cut(body, "|")
	info := &doctree.WikilinkInfo{
		Target: strings.TrimSpace(target),
		Alias:  strings.TrimSpace(alias),
	}
	if !isExternal(info.Target) {
		if t, frag, ok := strings.Cut(info.Target, "#"); ok {
			info.Target = strings.TrimSpace(t)
			info.Fragment = strings.TrimSpace(frag)
		}
	}
	info.Class = classify(info.Target, info.Fragment)
	return info
}

func classify(target, fragment string) doctree.LinkClass {
	ext := strings.ToLower(path.Ext(target))
	switch {
	case isExternal(target):
		return doctree.LinkExternal
	case slices.Contains(imageExts, ext):
		return doctree.LinkImage
	case slices.Contains(documentExts, ext):
		return doctree.LinkDocument
	case fragment != "":
		return doctree.LinkSection
	}
	return doctree.LinkPage
}

func isExternal(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "mailto:")
}

// mediaKind classifies an embed source by extension.
func mediaKind(source string) doctree.MediaKind {
	ext := strings.ToLower(path.Ext(source))
	switch {
	case slices.Contains(imageExts, ext):
		return doctree.MediaImage
	case slices.Contains(audioExts, ext):
		return doctree.MediaAudio
	case slices.Contains(videoExts, ext):
		return doctree.MediaVideo
	case ext == ".pdf":
		return doctree.MediaPDF
	}
	return doctree.MediaDocument
}
