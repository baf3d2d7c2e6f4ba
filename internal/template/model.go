// Package template owns presentation and metadata templates: the layout
// rules a question type is rendered with, and the front-matter field sets
// merged into exported documents.
package template

import (
	"github.com/openqbank/qbexport/internal/qbank"
)

// AppliesAny makes a presentation template a fallback for every question
// type. Type-specific templates always win over an "any" template.
const AppliesAny = "any"

const ConfigVersion = 2

// Block kinds, closed set.
const (
	BlockLine   = "line"
	BlockSpacer = "spacer"
	BlockList   = "list"
	BlockTable  = "table"
)

// Answer sources a list or table block can iterate over.
const (
	SourceAnswersAll     = "answers_all"
	SourceAnswersCorrect = "answers_correct"
	SourceMatchingPairs  = "matching_pairs"
)

type Styles struct {
	HeaderColor string `json:"header_color,omitempty"` // "#RRGGBB"
	TitleSize   int    `json:"title_size,omitempty"`
	HeaderSize  int    `json:"header_size,omitempty"`
	BodySize    int    `json:"body_size,omitempty"`
	AnswerSize  int    `json:"answer_size,omitempty"`
}

// Block is one layout instruction. Kind selects which of the remaining
// fields apply; Validate enforces the combinations.
type Block struct {
	Kind string `json:"kind"`

	// line: Pattern like "{{question.body}} ({{question.correct_join}})"
	Pattern string `json:"pattern,omitempty"`

	// spacer
	MM int `json:"mm,omitempty"`

	// list / table
	Source string `json:"source,omitempty"`
	Bullet bool   `json:"bullet,omitempty"` // list only

	// table
	Headers      []string `json:"headers,omitempty"`
	Cols         []string `json:"cols,omitempty"` // cell expressions, one per column
	ColWidthsPct []int    `json:"col_widths_pct,omitempty"`
}

type Config struct {
	Version int     `json:"version"`
	Styles  Styles  `json:"styles"`
	Blocks  []Block `json:"blocks"`
}

type PresentationTemplate struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AppliesTo  string `json:"applies_to"` // qbank.Type or AppliesAny
	Config     Config `json:"config"`
	Owner      string `json:"owner"`
	CreatedAt  int64  `json:"created_at"`
	ModifiedAt int64  `json:"modified_at"`
}

// MetadataTemplate fields are decorative front matter; they substitute into
// rendered documents and have no effect on layout logic.
type MetadataTemplate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PKPrefix    string `json:"pk_prefix"`
	PKID        string `json:"pk_id"`
	IPKPrefix   string `json:"ipk_prefix"`
	IPKID       string `json:"ipk_id"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner"`
	CreatedAt   int64  `json:"created_at"`
}

func validAppliesTo(s string) bool {
	return s == AppliesAny || qbank.IsKnownType(qbank.Type(s))
}
