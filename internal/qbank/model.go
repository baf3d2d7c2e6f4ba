package qbank

// Type is the closed set of question kinds the export core understands.
// Anything else survives parsing as TypeUnsupported and keeps its raw
// fragment for lossless re-export.
type Type string

const (
	TypeMultichoice Type = "multichoice"
	TypeTrueFalse   Type = "truefalse"
	TypeShortAnswer Type = "shortanswer"
	TypeEssay       Type = "essay"
	TypeMatching    Type = "matching"
	TypeNumerical   Type = "numerical"
	TypeCloze       Type = "cloze"
	TypeUnsupported Type = "unsupported"
)

// KnownTypes lists every exportable type, in a stable order.
func KnownTypes() []Type {
	return []Type{
		TypeMultichoice, TypeTrueFalse, TypeShortAnswer, TypeEssay,
		TypeMatching, TypeNumerical, TypeCloze,
	}
}

func IsKnownType(t Type) bool {
	for _, k := range KnownTypes() {
		if t == k {
			return true
		}
	}
	return false
}

type Answer struct {
	Text      string  `json:"text"`
	IsCorrect bool    `json:"is_correct"`
	Feedback  string  `json:"feedback,omitempty"`
	Weight    float64 `json:"weight"`
	// MatchText is the right-hand side of a matching pair.
	MatchText string `json:"match_text,omitempty"`
	// Tolerance applies to numerical answers only.
	Tolerance float64 `json:"tolerance,omitempty"`
}

type Question struct {
	ID              string   `json:"id"` // stable within one parse session
	Type            Type     `json:"type"`
	CategoryPath    []string `json:"category_path"`
	Title           string   `json:"title"`
	BodyHTML        string   `json:"body_html"`
	Answers         []Answer `json:"answers,omitempty"`
	GeneralFeedback string   `json:"general_feedback,omitempty"`
	RawXML          string   `json:"-"`
}

// CorrectAnswers returns the answers flagged correct, in input order.
func (q Question) CorrectAnswers() []Answer {
	var out []Answer
	for _, a := range q.Answers {
		if a.IsCorrect {
			out = append(out, a)
		}
	}
	return out
}

type ParseWarning struct {
	QuestionID string `json:"question_id"`
	Type       string `json:"type"`
	Message    string `json:"message"`
}
