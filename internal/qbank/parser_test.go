package qbank

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/openqbank/qbexport/internal/errs"
)

const bankXML = `<?xml version="1.0" encoding="UTF-8"?>
<quiz>
  <question type="category">
    <category><text>$course$/top/Math/Algebra</text></category>
  </question>
  <question type="multichoice">
    <name><text>Addition</text></name>
    <questiontext format="html"><text><![CDATA[<p>What is 2+2?</p>]]></text></questiontext>
    <generalfeedback><text>Basic arithmetic.</text></generalfeedback>
    <answer fraction="100"><text>4</text><feedback><text>Right.</text></feedback></answer>
    <answer fraction="0"><text>5</text></answer>
    <answer fraction="0"><text>22</text></answer>
  </question>
  <question type="truefalse">
    <name><text>Zero is even</text></name>
    <questiontext format="html"><text>Zero is an even number.</text></questiontext>
    <answer fraction="0"><text>false</text></answer>
    <answer fraction="100"><text>true</text></answer>
  </question>
  <question type="category">
    <category><text>$course$/top/Geography</text></category>
  </question>
  <question type="shortanswer">
    <name><text>Capital</text></name>
    <questiontext format="html"><text>Capital of France?</text></questiontext>
    <answer fraction="100"><text>Paris</text></answer>
  </question>
</quiz>`

func TestParseBank(t *testing.T) {
	qs, warns, err := Parse([]byte(bankXML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	if len(qs) != 3 {
		t.Fatalf("want 3 questions, got %d", len(qs))
	}

	mc := qs[0]
	if mc.ID != "q0001" || mc.Type != TypeMultichoice {
		t.Fatalf("first question: id=%s type=%s", mc.ID, mc.Type)
	}
	if got := mc.CategoryPath; !reflect.DeepEqual(got, []string{"Math", "Algebra"}) {
		t.Fatalf("category path: %v", got)
	}
	if mc.BodyHTML != "<p>What is 2+2?</p>" {
		t.Fatalf("body: %q", mc.BodyHTML)
	}
	if len(mc.Answers) != 3 {
		t.Fatalf("answers: %d", len(mc.Answers))
	}
	if !mc.Answers[0].IsCorrect || mc.Answers[1].IsCorrect {
		t.Fatalf("correctness flags wrong: %+v", mc.Answers)
	}
	if mc.Answers[0].Feedback != "Right." {
		t.Fatalf("feedback: %q", mc.Answers[0].Feedback)
	}

	tf := qs[1]
	if tf.Type != TypeTrueFalse {
		t.Fatalf("second question type: %s", tf.Type)
	}
	// true always listed first regardless of source order
	if !strings.EqualFold(tf.Answers[0].Text, "true") || !tf.Answers[0].IsCorrect {
		t.Fatalf("truefalse ordering: %+v", tf.Answers)
	}

	sa := qs[2]
	if sa.ID != "q0003" {
		t.Fatalf("third question id: %s", sa.ID)
	}
	if got := sa.CategoryPath; !reflect.DeepEqual(got, []string{"Geography"}) {
		t.Fatalf("category after second marker: %v", got)
	}
}

func TestParseDeterministic(t *testing.T) {
	a, aw, err := Parse([]byte(bankXML))
	if err != nil {
		t.Fatal(err)
	}
	b, bw, err := Parse([]byte(bankXML))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) || !reflect.DeepEqual(aw, bw) {
		t.Fatal("identical input produced different output")
	}
}

func TestParseUnsupportedTypeKept(t *testing.T) {
	const xml = `<quiz>
  <question type="ddimageortext">
    <name><text>Drag</text></name>
    <questiontext><text>Place the labels.</text></questiontext>
  </question>
  <question type="essay">
    <name><text>Explain</text></name>
    <questiontext><text>Explain photosynthesis.</text></questiontext>
    <graderinfo><text>Light reactions and Calvin cycle.</text></graderinfo>
  </question>
</quiz>`
	qs, warns, err := Parse([]byte(xml))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("want both questions kept, got %d", len(qs))
	}
	if qs[0].Type != TypeUnsupported {
		t.Fatalf("want unsupported, got %s", qs[0].Type)
	}
	if qs[0].RawXML == "" {
		t.Fatal("unsupported question lost its raw fragment")
	}
	if len(warns) != 1 || warns[0].QuestionID != qs[0].ID {
		t.Fatalf("warnings: %+v", warns)
	}
	if qs[1].Type != TypeEssay || len(qs[1].Answers) != 1 {
		t.Fatalf("essay reference answer missing: %+v", qs[1])
	}
}

func TestParseTypeAliases(t *testing.T) {
	const xml = `<quiz>
  <question type="essay_gigachat">
    <name><text>AI essay</text></name>
    <questiontext><text>Describe the water cycle.</text></questiontext>
    <referenceanswer><text>Evaporation, condensation, precipitation.</text></referenceanswer>
  </question>
  <question type="multianswer">
    <name><text>Cloze</text></name>
    <questiontext><text>Fill the gaps.</text></questiontext>
  </question>
</quiz>`
	qs, warns, err := Parse([]byte(xml))
	if err != nil {
		t.Fatal(err)
	}
	if len(warns) != 0 {
		t.Fatalf("aliased types should not warn: %v", warns)
	}
	if qs[0].Type != TypeEssay {
		t.Fatalf("essay_gigachat: got %s", qs[0].Type)
	}
	if len(qs[0].Answers) != 1 || qs[0].Answers[0].Text != "Evaporation, condensation, precipitation." {
		t.Fatalf("reference answer: %+v", qs[0].Answers)
	}
	if qs[1].Type != TypeCloze {
		t.Fatalf("multianswer: got %s", qs[1].Type)
	}
}

func TestParseMatching(t *testing.T) {
	const xml = `<quiz>
  <question type="matching">
    <name><text>Capitals</text></name>
    <questiontext><text>Match country to capital.</text></questiontext>
    <subquestion><text>France</text><answer><text>Paris</text></answer></subquestion>
    <subquestion><text>Spain</text><answer><text>Madrid</text></answer></subquestion>
    <subquestion><text></text><answer><text>Rome</text></answer></subquestion>
  </question>
</quiz>`
	qs, _, err := Parse([]byte(xml))
	if err != nil {
		t.Fatal(err)
	}
	q := qs[0]
	if len(q.Answers) != 3 {
		t.Fatalf("pairs: %d", len(q.Answers))
	}
	if q.Answers[0].Text != "France" || q.Answers[0].MatchText != "Paris" {
		t.Fatalf("pair 0: %+v", q.Answers[0])
	}
	// distractor: right side without a left side
	if q.Answers[2].Text != "" || q.Answers[2].MatchText != "Rome" {
		t.Fatalf("pair 2: %+v", q.Answers[2])
	}
}

func TestParseMalformed(t *testing.T) {
	_, _, err := Parse([]byte(`<quiz><question type="essay"><name><text>x</text></quiz>`))
	if err == nil {
		t.Fatal("want error for malformed xml")
	}
	var me *errs.MalformedInputError
	if !errors.As(err, &me) {
		t.Fatalf("want MalformedInputError, got %T", err)
	}
	if me.Offset <= 0 {
		t.Fatalf("offset not reported: %d", me.Offset)
	}
}

func TestCategoryPath(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"$course$/top/Math/Algebra", []string{"Math", "Algebra"}},
		{"$course$/top", nil},
		{"top/Science", []string{"Science"}},
		{"  ", nil},
	}
	for _, c := range cases {
		if got := categoryPath(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("categoryPath(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
