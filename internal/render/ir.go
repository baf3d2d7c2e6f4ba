// Package render turns questions plus a presentation template into a
// format-agnostic intermediate representation, and encodes that IR into
// the supported output formats. Adding a format touches only this
// package's renderers; adding a question type touches only the engine.
package render

import (
	"github.com/openqbank/qbexport/internal/qbank"
	"github.com/openqbank/qbexport/internal/template"
)

type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
	BlockList      BlockType = "list"
	BlockTable     BlockType = "table"
	BlockAnswerKey BlockType = "answer_key"
	BlockMediaRef  BlockType = "media_ref"
)

// Block is a tagged union: Type selects which member is set.
type Block struct {
	Type      BlockType       `json:"type"`
	Heading   *Heading        `json:"heading,omitempty"`
	Paragraph *Paragraph      `json:"paragraph,omitempty"`
	List      *ListBlock      `json:"list,omitempty"`
	Table     *TableBlock     `json:"table,omitempty"`
	AnswerKey *AnswerKeyBlock `json:"answer_key,omitempty"`
	Media     *MediaRef       `json:"media,omitempty"`
}

type Heading struct {
	Text  string `json:"text"`
	Level int    `json:"level"` // 1 = document title, 2 = question
}

type Paragraph struct {
	Text string `json:"text"`
}

type ListItem struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

type ListBlock struct {
	Ordered bool       `json:"ordered"`
	Items   []ListItem `json:"items"`
}

type Cell struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"` // renderers mark these visually
}

type TableBlock struct {
	Headers   []string `json:"headers,omitempty"`
	Rows      [][]Cell `json:"rows"`
	WidthsPct []int    `json:"widths_pct,omitempty"`
}

// AnswerKeyBlock carries the correct answers for layouts that do not
// surface them in a list or table of their own.
type AnswerKeyBlock struct {
	Entries []string `json:"entries"`
}

// MediaRef points at media embedded in a question body. Renderers resolve
// it to a relative link or a plain name, consistently within one artifact.
type MediaRef struct {
	Target string `json:"target"`
}

type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// QuestionSection groups the blocks rendered for one question and keeps
// the source question for renderers that flatten rather than lay out
// (the spreadsheet renderer).
type QuestionSection struct {
	Number int            `json:"number"`
	Source qbank.Question `json:"source"`
	Blocks []Block        `json:"blocks"`
}

// Document is the IR consumed by every renderer.
type Document struct {
	Title       string            `json:"title"`
	FrontMatter []Field           `json:"front_matter,omitempty"`
	Styles      template.Styles   `json:"styles"`
	Questions   []QuestionSection `json:"questions"`
}
