// Package document defines the corpus document model shared by the storage
// layer, the index builder, and the ranker. A Document is immutable once
// indexed; consumers reference it by ID and hydrate content through the
// storage layer.
package document

import (
	"strings"
	"time"
)

// Kind discriminates the document variants in the corpus.
type Kind string

const (
	KindQuestion Kind = "question"
	KindAnswer   Kind = "answer"
	KindTag      Kind = "tag"
)

// Field names a logical region of a document's text. Term occurrences are
// tracked per field so that scoring can weight them independently.
type Field uint8

const (
	FieldTitle Field = iota
	FieldBody
	FieldCode
	FieldTag
)

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldBody:
		return "body"
	case FieldCode:
		return "code"
	case FieldTag:
		return "tag"
	default:
		return "unknown"
	}
}

// Document is one indexable unit. Questions carry a title, body, and tags;
// answers carry only a body plus a ParentID pointing at their question. The
// indexer and ranker never branch on Kind directly: they consume FieldText
// and Meta, which every variant provides.
type Document struct {
	ID          int64
	Kind        Kind
	Title       string
	Body        string
	Tags        []string
	SourceScore int
	CreatedAt   time.Time
	Link        string

	// ParentID links an answer to its question for citation purposes.
	// Zero for questions and tags.
	ParentID int64

	// Accepted marks an answer accepted by the question author.
	Accepted bool
}

// FieldText holds the raw text of one document field.
type FieldText struct {
	Field Field
	Text  string
}

// TextByField returns the document's raw text region by region. Tags are
// emitted one FieldText each so the indexer can treat them as exact-match
// identifiers.
func (d *Document) TextByField() []FieldText {
	out := make([]FieldText, 0, 2+len(d.Tags))
	if d.Title != "" {
		out = append(out, FieldText{Field: FieldTitle, Text: d.Title})
	}
	if d.Body != "" {
		out = append(out, FieldText{Field: FieldBody, Text: d.Body})
	}
	for _, tag := range d.Tags {
		out = append(out, FieldText{Field: FieldTag, Text: tag})
	}
	return out
}

// Meta carries the scoring metadata the ranker needs without hydrating the
// full document.
type Meta struct {
	Kind        Kind
	SourceScore int
	CreatedAt   time.Time
	Tags        []string
	ParentID    int64
}

// Meta returns the document's scoring metadata.
func (d *Document) Meta() Meta {
	return Meta{
		Kind:        d.Kind,
		SourceScore: d.SourceScore,
		CreatedAt:   d.CreatedAt,
		Tags:        d.Tags,
		ParentID:    d.ParentID,
	}
}

// HasTag reports whether the document carries the given tag
// (case-insensitive exact match).
func (m Meta) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
