package qbank

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/openqbank/qbexport/internal/errs"
)

// typeAliases maps vendor-specific Moodle type attrs onto the canonical set.
// "essay_gigachat" is a plugin variant of essay that carries a reference answer.
var typeAliases = map[string]Type{
	"essay_gigachat": TypeEssay,
	"multianswer":    TypeCloze,
}

// xmlText matches Moodle's <elem><text>...</text></elem> wrapping.
type xmlText struct {
	Text string `xml:"text"`
}

type xmlAnswer struct {
	Fraction  string  `xml:"fraction,attr"`
	Text      string  `xml:"text"`
	Feedback  xmlText `xml:"feedback"`
	Tolerance string  `xml:"tolerance"`
}

type xmlSubquestion struct {
	Text   string  `xml:"text"`
	Answer xmlText `xml:"answer"`
}

type xmlQuestion struct {
	Type            string           `xml:"type,attr"`
	RawXML          string           `xml:",innerxml"`
	Name            xmlText          `xml:"name"`
	QuestionText    xmlText          `xml:"questiontext"`
	GeneralFeedback xmlText          `xml:"generalfeedback"`
	ReferenceAnswer xmlText          `xml:"referenceanswer"`
	GraderInfo      xmlText          `xml:"graderinfo"`
	Category        xmlText          `xml:"category"`
	Answers         []xmlAnswer      `xml:"answer"`
	Subquestions    []xmlSubquestion `xml:"subquestion"`
}

// Parse reads a Moodle question-bank XML export and returns the canonical
// question sequence plus warnings for questions it had to keep as
// unsupported. It is a pure function of the input bytes: no I/O, identical
// input yields identical output.
//
// Malformed XML fails with *errs.MalformedInputError carrying the byte
// offset of the first fatal error; no questions are returned in that case.
func Parse(xmlBytes []byte) ([]Question, []ParseWarning, error) {
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))

	var (
		questions []Question
		warnings  []ParseWarning
		category  []string
		n         int
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, &errs.MalformedInputError{Offset: dec.InputOffset(), Err: err}
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "question" {
			continue
		}

		var xq xmlQuestion
		if err := dec.DecodeElement(&xq, &se); err != nil {
			return nil, nil, &errs.MalformedInputError{Offset: dec.InputOffset(), Err: err}
		}

		if xq.Type == "category" {
			if p := categoryPath(xq.Category.Text); p != nil {
				category = p
			}
			continue
		}

		n++
		q := buildQuestion(xq, n, category)
		if q.Type == TypeUnsupported {
			warnings = append(warnings, ParseWarning{
				QuestionID: q.ID,
				Type:       xq.Type,
				Message:    fmt.Sprintf("unsupported question type %q kept as raw fragment", xq.Type),
			})
		}
		questions = append(questions, q)
	}

	return questions, warnings, nil
}

func buildQuestion(xq xmlQuestion, seq int, category []string) Question {
	t := Type(xq.Type)
	if alias, ok := typeAliases[xq.Type]; ok {
		t = alias
	}
	if !IsKnownType(t) {
		t = TypeUnsupported
	}

	q := Question{
		ID:              fmt.Sprintf("q%04d", seq),
		Type:            t,
		CategoryPath:    category,
		Title:           strings.TrimSpace(xq.Name.Text),
		BodyHTML:        unwrapCDATA(xq.QuestionText.Text),
		GeneralFeedback: unwrapCDATA(xq.GeneralFeedback.Text),
		RawXML:          xq.RawXML,
	}
	if len(q.CategoryPath) == 0 {
		q.CategoryPath = []string{"uncategorized"}
	}

	switch t {
	case TypeMultichoice, TypeNumerical, TypeShortAnswer, TypeCloze:
		q.Answers = plainAnswers(xq.Answers)
	case TypeTrueFalse:
		q.Answers = trueFalseAnswers(xq.Answers)
	case TypeMatching:
		for _, sub := range xq.Subquestions {
			item := strings.TrimSpace(unwrapCDATA(sub.Text))
			match := strings.TrimSpace(sub.Answer.Text)
			if item == "" && match == "" {
				continue
			}
			q.Answers = append(q.Answers, Answer{
				Text:      item,
				MatchText: match,
				IsCorrect: true,
				Weight:    100,
			})
		}
	case TypeEssay:
		// Reference answer lives in <referenceanswer> (plugin variant)
		// or <graderinfo> (stock Moodle essay).
		ref := strings.TrimSpace(unwrapCDATA(xq.ReferenceAnswer.Text))
		if ref == "" {
			ref = strings.TrimSpace(unwrapCDATA(xq.GraderInfo.Text))
		}
		if ref != "" {
			q.Answers = []Answer{{Text: ref, IsCorrect: true, Weight: 100}}
		}
	}
	return q
}

func plainAnswers(in []xmlAnswer) []Answer {
	var out []Answer
	for _, a := range in {
		text := strings.TrimSpace(unwrapCDATA(a.Text))
		if text == "" {
			continue
		}
		w := parseFraction(a.Fraction)
		out = append(out, Answer{
			Text:      text,
			IsCorrect: w != 0,
			Feedback:  strings.TrimSpace(unwrapCDATA(a.Feedback.Text)),
			Weight:    w,
			Tolerance: parseFraction(a.Tolerance),
		})
	}
	return out
}

// trueFalseAnswers keeps a stable true-first order regardless of how the
// export ordered the two answers.
func trueFalseAnswers(in []xmlAnswer) []Answer {
	all := plainAnswers(in)
	var out []Answer
	for _, want := range []string{"true", "false"} {
		for _, a := range all {
			if strings.EqualFold(a.Text, want) {
				out = append(out, a)
			}
		}
	}
	for _, a := range all {
		if !strings.EqualFold(a.Text, "true") && !strings.EqualFold(a.Text, "false") {
			out = append(out, a)
		}
	}
	return out
}

// categoryPath turns "$course$/top/Math/Algebra" into ["Math","Algebra"].
// Markers that name only the root ("$course$/top") reset nothing and
// return nil.
func categoryPath(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(raw, "/") {
		p = strings.TrimSpace(p)
		if p == "" || p == "top" {
			continue
		}
		if strings.HasPrefix(p, "$") && strings.HasSuffix(p, "$") {
			continue
		}
		parts = append(parts, p)
	}
	return parts
}

func parseFraction(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func unwrapCDATA(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<![CDATA[") && strings.HasSuffix(s, "]]>") {
		s = s[len("<![CDATA[") : len(s)-len("]]>")]
	}
	return s
}
