// Package transform rewrites a parsed document tree through the ordered
// extension stages: wikilinks, embeds, callouts, footnotes and math.
package transform

import (
	"fmt"

	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/models"
)

// Context carries per-document state through the stages. Stages only
// append to it; the tree itself is never mutated in place.
type Context struct {
	Slug        string
	Diagnostics []models.Diagnostic
	Footnotes   []models.Footnote
	TOC         []models.TocEntry
}

// NewContext returns an empty context for the document slug.
func NewContext(slug string) *Context {
	return &Context{Slug: slug}
}

// Warn records a recoverable problem.
func (c *Context) Warn(code, format string, args ...any) {
	c.Diagnostics = append(c.Diagnostics, models.Diagnostic{
		Severity: models.SeverityWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Stage is one named rewrite of the tree.
type Stage struct {
	Name  string
	Apply func(root *doctree.Node, ctx *Context) *doctree.Node
}

// Pipeline applies its stages in order and then builds the outline.
type Pipeline struct {
	stages []Stage
}

// NewPipeline returns a pipeline running stages in the given order.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Default returns the pipeline in its mandatory order.
func Default() *Pipeline {
	return NewPipeline(
		Stage{Name: "wikilink", Apply: Wikilinks},
		Stage{Name: "embed", Apply: Embeds},
		Stage{Name: "callout", Apply: Callouts},
		Stage{Name: "footnote", Apply: Footnotes},
		Stage{Name: "math", Apply: Math},
	)
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Transform runs every stage over root, assigns heading anchors and fills
// ctx.TOC. The input tree is left untouched.
func (p *Pipeline) Transform(root *doctree.Node, ctx *Context) *doctree.Node {
	for _, s := range p.stages {
		root = s.Apply(root, ctx)
	}
	root, ctx.TOC = Outline(root)
	return root
}
