// Package models defines the domain types produced by the content engine.
package models

import (
	"slices"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Kind discriminates the two metadata variants.
type Kind string

// Metadata kinds.
const (
	KindTopic Kind = "topic"
	KindMap   Kind = "map"
)

// Metadata is the preamble record of a document. It is either
// *TopicMetadata or *MapMetadata; consumers switch on the concrete type.
type Metadata interface {
	Kind() Kind
	// Topic returns the fields shared by both variants.
	Topic() *TopicMetadata
	sealed()
}

// TopicMetadata describes an atomic content unit.
type TopicMetadata struct {
	Title       string            `json:"title,omitempty"`
	Author      string            `json:"author,omitempty"`
	Date        string            `json:"date,omitempty"`
	Modified    string            `json:"modified,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Audience    string            `json:"audience,omitempty"`
	Publish     bool              `json:"publish"`
	AccessLevel string            `json:"access_level,omitempty"`
	Conditions  map[string]string `json:"conditions,omitempty"`
}

// Kind implements Metadata.
func (m *TopicMetadata) Kind() Kind { return KindTopic }

// Topic implements Metadata.
func (m *TopicMetadata) Topic() *TopicMetadata { return m }

func (m *TopicMetadata) sealed() {}

// MapMetadata describes a collection of topics.
type MapMetadata struct {
	TopicMetadata
	Topics      []string `json:"topics,omitempty"`
	PublishDate string   `json:"publish_date,omitempty"`
	Editor      string   `json:"editor,omitempty"`
	Reviewer    string   `json:"reviewer,omitempty"`
	Version     string   `json:"version,omitempty"`
	Featured    bool     `json:"featured"`
}

// Kind implements Metadata.
func (m *MapMetadata) Kind() Kind { return KindMap }

// Topic implements Metadata.
func (m *MapMetadata) Topic() *TopicMetadata { return &m.TopicMetadata }

func (m *MapMetadata) sealed() {}

// EmptyMetadata returns the metadata of a document without a usable preamble.
func EmptyMetadata(kind Kind) Metadata {
	if kind == KindMap {
		return &MapMetadata{TopicMetadata: TopicMetadata{Publish: true}}
	}
	return &TopicMetadata{Publish: true}
}

// IsMapPreamble reports whether raw preamble fields describe a map.
func IsMapPreamble(fields map[string]any) bool {
	for _, key := range []string{"type", "kind", "role"} {
		if strings.EqualFold(cast.ToString(fields[key]), string(KindMap)) {
			return true
		}
	}
	_, ok := fields["topics"]
	return ok
}

// MetadataFromFields builds typed metadata from loosely typed preamble fields.
// Unknown or mistyped fields are ignored.
func MetadataFromFields(fields map[string]any, kind Kind) Metadata {
	topic := TopicMetadata{
		Title:       str(fields, "title"),
		Author:      str(fields, "author"),
		Date:        date(fields, "date", "created"),
		Modified:    date(fields, "modified", "updated", "lastmod"),
		Tags:        list(fields, "tags", "keywords"),
		Audience:    str(fields, "audience"),
		Publish:     true,
		AccessLevel: str(fields, "access", "access_level", "accessLevel"),
		Conditions:  conditions(fields),
	}
	if v, ok := fields["publish"]; ok {
		if b, err := cast.ToBoolE(v); err == nil {
			topic.Publish = b
		}
	}
	if kind != KindMap {
		return &topic
	}
	m := &MapMetadata{
		TopicMetadata: topic,
		Topics:        list(fields, "topics"),
		PublishDate:   date(fields, "publish_date", "publishDate"),
		Editor:        str(fields, "editor"),
		Reviewer:      str(fields, "reviewer"),
		Version:       str(fields, "version"),
	}
	if v, ok := fields["featured"]; ok {
		m.Featured = cast.ToBool(v)
	}
	return m
}

func str(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			if s := strings.TrimSpace(cast.ToString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func date(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		if t, isTime := v.(time.Time); isTime {
			if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
				return t.Format(time.DateOnly)
			}
			return t.Format(time.RFC3339)
		}
		if s := strings.TrimSpace(cast.ToString(v)); s != "" {
			return s
		}
	}
	return ""
}

func list(fields map[string]any, keys ...string) []string {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		var items []string
		if s, isString := v.(string); isString {
			items = strings.Split(s, ",")
		} else {
			items = cast.ToStringSlice(v)
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			it = strings.TrimSpace(it)
			if it != "" && !slices.Contains(out, it) {
				out = append(out, it)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func conditions(fields map[string]any) map[string]string {
	for _, k := range []string{"conditions", "props", "flags"} {
		if v, ok := fields[k]; ok && v != nil {
			m := cast.ToStringMapString(v)
			if len(m) > 0 {
				return m
			}
		}
	}
	return nil
}

// audienceRank orders audience levels from least to most experienced.
var audienceRank = map[string]int{
	"general":      0,
	"beginner":     1,
	"novice":       1,
	"intermediate": 2,
	"advanced":     3,
	"expert":       4,
	"internal":     5,
}

// AudienceCompatible reports whether a topic written for topicAudience may
// appear in a map aimed at mapAudience. An empty audience on either side is
// compatible; values outside the known ranking are incompatible.
func AudienceCompatible(topicAudience, mapAudience string) bool {
	t := strings.ToLower(strings.TrimSpace(topicAudience))
	m := strings.ToLower(strings.TrimSpace(mapAudience))
	if t == "" || m == "" {
		return true
	}
	tr, tok := audienceRank[t]
	mr, mok := audienceRank[m]
	if !tok || !mok {
		return false
	}
	return tr <= mr
}
