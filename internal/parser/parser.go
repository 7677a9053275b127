// Package parser splits a source file into its YAML preamble and a semantic
// document tree.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/models"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Result holds the output of parsing a source file.
type Result struct {
	Metadata models.Metadata
	// Fields is the raw preamble; nil when absent or malformed.
	Fields map[string]any
	Root   *doctree.Node
	Body   string
	// Tags merges preamble tags with inline #tags found in prose.
	Tags []string
	// Warnings are recoverable problems, e.g. apperr.ErrMalformedPreamble.
	Warnings []error
}

// Parse converts raw source bytes into metadata and a document tree. hint
// selects the map variant for files stored under the maps category. Parse
// never fails: a malformed preamble degrades to an empty record and the whole
// input is treated as body.
func Parse(data []byte, hint models.Kind) *Result {
	fields, body, err := splitFrontmatter(data)
	res := &Result{Fields: fields, Body: body}
	if err != nil {
		res.Warnings = append(res.Warnings, err)
	}

	kind := models.KindTopic
	if hint == models.KindMap || models.IsMapPreamble(fields) {
		kind = models.KindMap
	}
	if fields != nil {
		res.Metadata = models.MetadataFromFields(fields, kind)
	} else {
		res.Metadata = models.EmptyMetadata(kind)
	}

	res.Root = convert([]byte(body))

	if topic := res.Metadata.Topic(); topic.Title == "" {
		topic.Title = deriveTitle(res.Root)
	}
	res.Tags = extractTags(res.Root, res.Metadata.Topic().Tags)
	return res
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Without a leading delimiter the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	first, rest, _ := bytes.Cut(trimmed, []byte("\n"))
	if !bytes.Equal(bytes.TrimRight(first, " \t\r"), []byte(delim)) {
		return nil, string(data), nil
	}

	var yamlBlock, afterDelim []byte
	if bytes.HasPrefix(rest, []byte(delim)) {
		afterDelim = rest[len(delim):]
	} else if idx := bytes.Index(rest, []byte("\n"+delim)); idx >= 0 {
		yamlBlock, afterDelim = rest[:idx], rest[idx+1+len(delim):]
	} else {
		return nil, string(data), fmt.Errorf("parser: no closing delimiter: %w", apperr.ErrMalformedPreamble)
	}
	// Body starts on the line after the closing delimiter.
	if nl := bytes.IndexByte(afterDelim, '\n'); nl >= 0 {
		afterDelim = afterDelim[nl+1:]
	} else {
		afterDelim = nil
	}
	body := string(bytes.TrimLeft(afterDelim, "\n\r"))

	if len(bytes.TrimSpace(yamlBlock)) == 0 {
		return nil, body, nil
	}

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data), fmt.Errorf("parser: decode preamble: %w: %w", apperr.ErrMalformedPreamble, err)
	}
	return fm, body, nil
}

// extractTags merges preamble tags with inline #tags from prose text.
func extractTags(root *doctree.Node, preamble []string) []string {
	out := slices.Clone(preamble)
	doctree.Walk(root, func(n *doctree.Node) bool {
		switch n.Kind {
		case doctree.KindCode, doctree.KindCodeSpan, doctree.KindLink, doctree.KindHTML:
			return false
		case doctree.KindText:
			for _, m := range tagRe.FindAllStringSubmatch(n.Value, -1) {
				if !slices.Contains(out, m[1]) {
					out = append(out, m[1])
				}
			}
		}
		return true
	})
	return out
}
