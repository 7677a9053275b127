package mcpserver

// SyntaxURI identifies the source syntax reference resource.
const SyntaxURI = "quire://syntax"

// SyntaxReference describes the source syntax quire resolves. It is served
// to LLM consumers so they can author content the engine understands.
const SyntaxReference = `# quire Source Syntax

Documents are Markdown files (` + "`.md`, `.markdown`, `.mdx`" + `) below the content root.
Topics live anywhere, conventionally under ` + "`topics/`" + `; maps under ` + "`maps/`" + `.

## Preamble

An optional YAML block fenced by ` + "`---`" + ` at the very top of the file.

` + "```" + `yaml
---
title: Configure the proxy        # falls back to the first heading
author: Jane Doe
created: 2025-01-15               # also: date
modified: 2025-02-01              # also: updated, lastmod
tags: [networking, proxy]         # also: keywords; inline #tags are merged in
audience: intermediate            # general < beginner < intermediate < advanced < expert < internal
publish: true
access-level: public
conditions:
  platform: linux
---
` + "```" + `

A map is a document whose preamble has ` + "`topics:`" + ` (or ` + "`type: map`" + `):

` + "```" + `yaml
---
title: Operator handbook
topics: [install, configure-the-proxy, troubleshooting]
version: "2.1"
editor: Sam Roe
featured: true
---
` + "```" + `

A malformed preamble never fails the document: it is reported as a
` + "`malformed_preamble`" + ` diagnostic and the whole file is treated as body.

## References

A reference names a document independently of where it is stored:
` + "`setup`" + `, ` + "`topics/setup.md`" + ` and ` + "`./setup`" + ` all resolve to the same slug.
Lookup order: the path as given, the slug with each extension, the slug under
each category (` + "`topics`, `maps`, `articles`, `docs`" + `), then a search of the
whole tree by file name.

## Wikilinks

- ` + "`[[target]]`" + ` links to a page.
- ` + "`[[target|label]]`" + ` overrides the displayed text.
- ` + "`[[target#Heading]]`" + ` links to a section; ` + "`[[#Heading]]`" + ` stays in the page.
- ` + "`[[https://example.com]]`" + ` is an external link.
- Targets that resolve to nothing render as broken links.

## Embeds

- ` + "`![[other-doc]]`" + ` splices another document in place.
- ` + "`![[other-doc#Section]]`" + ` splices one section (heading to next heading of
  the same or higher level).
- ` + "`![[diagram.png]]`, `![[diagram.png|Alt text]]`, `![[diagram.png|320]]`, `![[diagram.png|320x200]]`" + `
  embed media; a ` + "`WxH`" + ` or bare number is always a size.
- Embeds that cannot be found, or that would embed a document into itself,
  render a visible placeholder and a diagnostic instead of failing.

## Callouts

` + "```" + `markdown
> [!warning]- Data loss
> Back up first.
` + "```" + `

Types: note, abstract/summary/tldr, info, todo, tip/hint, important,
success/check/done, question/help/faq, warning/attention, caution,
failure/fail/missing, danger/error, bug, example, quote/cite. Unknown types
render as note. ` + "`+`" + ` makes the callout foldable and open, ` + "`-`" + ` folded.

## Footnotes

` + "`Text[^1]`" + ` with a definition ` + "`[^1]: The note.`" + ` anywhere in the file. Footnotes
are numbered in order of first reference.

## Math

` + "`$inline$` or `\\(inline\\)`" + `, and ` + "`$$display$$` or `\\[display\\]`" + `. TeX is kept
verbatim for a client-side typesetter.

## Outputs

Every document renders to HTML and to a DITA-style XML topic (maps render a
` + "`<map>`" + ` of ` + "`<topicref>`" + `s). Constructs without an XML equivalent are kept
as comments and reported as ` + "`unsupported_node`" + ` diagnostics.
`
