package render

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/openqbank/qbexport/internal/errs"
	"github.com/openqbank/qbexport/internal/qbank"
	"github.com/openqbank/qbexport/internal/template"
)

// testDocument builds a three-question document through the real engine so
// renderer tests exercise the same IR the pipeline produces.
func testDocument(t *testing.T) *Document {
	t.Helper()
	store := template.NewMemoryStore()
	ctx := context.Background()
	if err := template.SeedPresets(ctx, store, "t1"); err != nil {
		t.Fatal(err)
	}

	questions := []qbank.Question{
		{
			ID: "q0001", Type: qbank.TypeMultichoice, Title: "Addition",
			BodyHTML: "<p>What is 2+2?</p>",
			Answers: []qbank.Answer{
				{Text: "4", IsCorrect: true, Weight: 100}, {Text: "5"},
			},
			CategoryPath: []string{"Math"},
		},
		{
			ID: "q0002", Type: qbank.TypeTrueFalse, Title: "Zero",
			BodyHTML: "Zero is even.",
			Answers: []qbank.Answer{
				{Text: "true", IsCorrect: true, Weight: 100}, {Text: "false"},
			},
			CategoryPath: []string{"Math"},
		},
		{
			ID: "q0003", Type: qbank.TypeMatching, Title: "Capitals",
			BodyHTML: "Match country to capital.",
			Answers: []qbank.Answer{
				{Text: "France", MatchText: "Paris", IsCorrect: true, Weight: 100},
				{Text: "Spain", MatchText: "Madrid", IsCorrect: true, Weight: 100},
			},
			CategoryPath: []string{"Geography"},
		},
	}

	meta := &template.MetadataTemplate{Name: "Course A", PKPrefix: "PK", PKID: "12", Description: "Spring exam"}
	supplied := template.PresentationTemplate{AppliesTo: template.AppliesAny, Owner: "t1",
		Config: template.DefaultConfig(template.AppliesAny)}

	doc, err := NewEngine(store).RenderDocument(ctx, "Spring quiz", questions, supplied, meta)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestHTMLRender(t *testing.T) {
	out, err := htmlRenderer{}.Render(testDocument(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if n := strings.Count(s, `<section class="question">`); n != 3 {
		t.Fatalf("question sections: %d", n)
	}
	// question order preserved
	i1, i2, i3 := strings.Index(s, "1. Addition"), strings.Index(s, "2. Zero"), strings.Index(s, "3. Capitals")
	if i1 < 0 || i2 < i1 || i3 < i2 {
		t.Fatalf("headings out of order: %d %d %d", i1, i2, i3)
	}
	if !strings.Contains(s, `class="correct"`) {
		t.Fatal("correct answers not marked")
	}
	if !strings.Contains(s, "PK-12") || !strings.Contains(s, "Spring exam") {
		t.Fatal("front matter missing")
	}
	// raw markup from the question body must be escaped, not emitted
	if strings.Contains(s, "<p>What is 2+2?</p>") {
		t.Fatal("unescaped question markup leaked into output")
	}
}

func TestMarkdownRender(t *testing.T) {
	out, err := markdownRenderer{}.Render(testDocument(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.Contains(s, "## 1. Addition") {
		t.Fatalf("heading missing:\n%s", s)
	}
	if !strings.Contains(s, "**4**") {
		t.Fatal("correct answer not bolded")
	}
	// table separator row present for the answer tables
	if !strings.Contains(s, "| ---") {
		t.Fatal("markdown table separator missing")
	}
}

func TestDocxRenderIsValidPackage(t *testing.T) {
	out, err := docxRenderer{}.Render(testDocument(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		t.Fatalf("not a zip: %v", err)
	}
	parts := map[string]bool{}
	for _, f := range zr.File {
		parts[f.Name] = true
	}
	for _, want := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"} {
		if !parts[want] {
			t.Fatalf("missing part %s", want)
		}
	}
	rc, err := zr.Open("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	doc := string(body)
	if !strings.Contains(doc, "1. Addition") || !strings.Contains(doc, "3. Capitals") {
		t.Fatal("question headings missing from document.xml")
	}
	if !strings.Contains(doc, "<w:tbl>") {
		t.Fatal("answer tables missing from document.xml")
	}
}

func TestPDFRender(t *testing.T) {
	out, err := pdfRenderer{}.Render(testDocument(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatal("output is not a PDF")
	}
	if len(out) < 1000 {
		t.Fatalf("suspiciously small pdf: %d bytes", len(out))
	}
}

func TestXLSXRender(t *testing.T) {
	out, err := xlsxRenderer{}.Render(testDocument(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("not an xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Questions")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 { // header + one row per question
		t.Fatalf("rows: %d", len(rows))
	}
	if rows[0][0] != "Category" {
		t.Fatalf("header row: %v", rows[0])
	}
	if rows[1][2] != "Addition" || rows[1][5] != "4" {
		t.Fatalf("first question row: %v", rows[1])
	}
	if !strings.Contains(rows[3][4], "France -> Paris") {
		t.Fatalf("matching pairs flattened wrong: %v", rows[3])
	}
	if rows[1][6] != "PK-12" {
		t.Fatalf("metadata column: %v", rows[1])
	}
}

func TestEmptyDocumentRejectedByAllRenderers(t *testing.T) {
	empty := &Document{Title: "Empty"}
	for f, r := range NewRegistry() {
		_, err := r.Render(empty, Options{})
		var ee *errs.EmptyExportError
		if !errors.As(err, &ee) {
			t.Errorf("%s: want EmptyExportError, got %v", f, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"docx", "pdf", "html", "markdown", "xlsx"} {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("%s rejected: %v", s, err)
		}
	}
	if _, err := ParseFormat("odt"); err == nil {
		t.Error("unknown format accepted")
	}
}
