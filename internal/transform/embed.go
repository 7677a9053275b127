package transform

import (
	"regexp"
	"strings"

	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/syntax"
)

// sizeRe matches a bare width, WxH, or a key=value dimension.
var sizeRe = regexp.MustCompile(`^(?:\d+|\d+x\d+|[A-Za-z][\w-]*=[^\s=]+)$`)

// Embeds replaces ![[source|alt|size]] runs with embed nodes. A paragraph
// holding nothing but a document embed is replaced by the embed itself.
func Embeds(root *doctree.Node, _ *Context) *doctree.Node {
	root = doctree.Rewrite(root, tokenRewriter(syntax.Embed, func(tok syntax.Token) *doctree.Node {
		info := ParseEmbed(tok.Body)
		if info.Source == "" {
			return nil
		}
		return &doctree.Node{Kind: doctree.KindEmbed, Embed: info}
	}))
	return hoistBlocks(root, func(n *doctree.Node) bool {
		return n.Kind == doctree.KindEmbed && n.Embed.Media == doctree.MediaDocument
	})
}

// ParseEmbed splits the body of an embed. The first segment after the source
// is the size when it matches the size pattern and the alt text otherwise; a
// third segment fills whichever is still empty. An alt text that looks like
// a size, e.g. "100x50", is read as a size.
func ParseEmbed(body string) *doctree.EmbedInfo {
	parts := strings.Split(doctree.Unescape(body), "|")
	info := &doctree.EmbedInfo{}

	src := strings.TrimSpace(parts[0])
	if s, section, ok := strings.Cut(src, "#"); ok {
		src = strings.TrimSpace(s)
		info.Section = strings.TrimSpace(section)
	}
	info.Source = src
	info.Media = mediaKind(src)

	if len(parts) > 1 {
		first := strings.TrimSpace(parts[1])
		if IsSize(first) {
			info.Size = first
		} else {
			info.Alt = first
		}
	}
	if len(parts) > 2 {
		second := strings.TrimSpace(strings.Join(parts[2:], "|"))
		if info.Size == "" {
			info.Size = second
		} else {
			info.Alt = second
		}
	}
	return info
}

// IsSize reports whether s matches the embed size pattern.
func IsSize(s string) bool {
	return sizeRe.MatchString(s)
}
