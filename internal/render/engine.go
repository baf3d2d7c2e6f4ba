package render

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/openqbank/qbexport/internal/errs"
	"github.com/openqbank/qbexport/internal/qbank"
	"github.com/openqbank/qbexport/internal/template"
)

// Engine resolves presentation templates and produces the IR. It reads the
// template store but never writes it.
type Engine struct {
	store template.Store
}

func NewEngine(store template.Store) *Engine { return &Engine{store: store} }

// RenderDocument builds the IR for a whole question set. Questions keep
// the order given; the first resolution failure aborts the document.
func (e *Engine) RenderDocument(ctx context.Context, title string, questions []qbank.Question,
	pres template.PresentationTemplate, meta *template.MetadataTemplate) (*Document, error) {

	doc := &Document{
		Title:       title,
		FrontMatter: frontMatter(meta),
		Styles:      pres.Config.Styles,
	}
	for i, q := range questions {
		sec, err := e.RenderToIR(ctx, q, pres, meta, i+1)
		if err != nil {
			return nil, err
		}
		doc.Questions = append(doc.Questions, sec)
	}
	return doc, nil
}

// RenderToIR renders one question. The supplied template is used when its
// type matches; a type-specific template from the store always wins over
// an "any" template (tie-break rule), and "any" is only ever a fallback.
func (e *Engine) RenderToIR(ctx context.Context, q qbank.Question,
	supplied template.PresentationTemplate, meta *template.MetadataTemplate, number int) (QuestionSection, error) {

	tpl, err := e.resolve(ctx, q, supplied)
	if err != nil {
		return QuestionSection{}, err
	}

	sec := QuestionSection{Number: number, Source: q}
	sec.Blocks = append(sec.Blocks, Block{Type: BlockHeading, Heading: &Heading{
		Text:  headingText(q, number),
		Level: 2,
	}})

	sc := scope{q: q, meta: meta, number: number}
	for _, b := range tpl.Config.Blocks {
		sec.Blocks = append(sec.Blocks, e.renderBlock(b, sc)...)
	}

	// Line-only layouts keep an explicit answer key so the correct-answer
	// distinction survives into every format.
	if !hasAnswerBlocks(tpl.Config) {
		if key := answerKey(q); len(key) > 0 {
			sec.Blocks = append(sec.Blocks, Block{Type: BlockAnswerKey, AnswerKey: &AnswerKeyBlock{Entries: key}})
		}
	}

	for _, src := range mediaTargets(q.BodyHTML) {
		sec.Blocks = append(sec.Blocks, Block{Type: BlockMediaRef, Media: &MediaRef{Target: src}})
	}

	if q.Type == qbank.TypeUnsupported {
		sec.Blocks = append(sec.Blocks, Block{Type: BlockParagraph, Paragraph: &Paragraph{
			Text: "Unsupported question type; original XML fragment preserved in the source export.",
		}})
	}
	return sec, nil
}

// resolve picks the template for q.Type: exact type match first (supplied,
// then store), then "any" (supplied, then store). No match at all is a
// TemplateResolutionError.
func (e *Engine) resolve(ctx context.Context, q qbank.Question,
	supplied template.PresentationTemplate) (template.PresentationTemplate, error) {

	want := string(q.Type)
	if supplied.AppliesTo == want {
		return supplied, nil
	}

	stored, err := e.store.ListPresentations(ctx, template.Filter{AppliesTo: want, Owner: supplied.Owner})
	if err != nil {
		return template.PresentationTemplate{}, err
	}
	if len(stored) > 0 {
		return stored[0], nil
	}

	if supplied.AppliesTo == template.AppliesAny {
		return supplied, nil
	}
	fallback, err := e.store.ListPresentations(ctx, template.Filter{AppliesTo: template.AppliesAny, Owner: supplied.Owner})
	if err != nil {
		return template.PresentationTemplate{}, err
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return template.PresentationTemplate{}, &errs.TemplateResolutionError{QuestionType: want}
}

func (e *Engine) renderBlock(b template.Block, sc scope) []Block {
	switch b.Kind {
	case template.BlockLine:
		return []Block{{Type: BlockParagraph, Paragraph: &Paragraph{Text: evalPattern(b.Pattern, sc)}}}
	case template.BlockSpacer:
		return []Block{{Type: BlockParagraph, Paragraph: &Paragraph{Text: ""}}}
	case template.BlockList:
		items := sourceItems(sc.q, b.Source)
		lb := &ListBlock{Ordered: !b.Bullet}
		for _, it := range items {
			isc := sc
			isc.item = &it
			lb.Items = append(lb.Items, ListItem{Text: evalPattern(b.Pattern, isc), Correct: it.IsCorrect})
		}
		return []Block{{Type: BlockList, List: lb}}
	case template.BlockTable:
		return []Block{{Type: BlockTable, Table: e.renderTable(b, sc)}}
	}
	return nil
}

func (e *Engine) renderTable(b template.Block, sc scope) *TableBlock {
	tb := &TableBlock{Headers: b.Headers, WidthsPct: b.ColWidthsPct}
	for ri, it := range sourceItems(sc.q, b.Source) {
		isc := sc
		isc.item = &it
		row := make([]Cell, 0, len(b.Cols))
		for _, col := range b.Cols {
			if strings.TrimSpace(col) == "" {
				// numbering column: task number on the first row only
				text := ""
				if ri == 0 {
					text = fmt.Sprintf("#%d", sc.number)
				}
				row = append(row, Cell{Text: text})
				continue
			}
			cell := Cell{Text: evalPattern(col, isc)}
			if strings.Contains(col, "|if_correct") && it.IsCorrect {
				cell.Correct = true
			}
			row = append(row, cell)
		}
		tb.Rows = append(tb.Rows, row)
	}
	return tb
}

type scope struct {
	q      qbank.Question
	meta   *template.MetadataTemplate
	number int
	item   *qbank.Answer
}

// evalPattern substitutes {{...}} placeholders. Unresolved placeholders
// render empty: metadata is decorative, never load-bearing.
func evalPattern(p string, sc scope) string {
	var b strings.Builder
	for {
		i := strings.Index(p, "{{")
		if i < 0 {
			b.WriteString(p)
			break
		}
		b.WriteString(p[:i])
		p = p[i+2:]
		j := strings.Index(p, "}}")
		if j < 0 {
			b.WriteString("{{")
			b.WriteString(p)
			break
		}
		b.WriteString(sc.lookup(strings.TrimSpace(p[:j])))
		p = p[j+2:]
	}
	return strings.TrimSpace(b.String())
}

func (sc scope) lookup(expr string) string {
	name, filter := expr, ""
	if i := strings.IndexByte(expr, '|'); i >= 0 {
		name, filter = strings.TrimSpace(expr[:i]), strings.TrimSpace(expr[i+1:])
	}

	var v string
	switch {
	case name == "task.header":
		v = taskHeader(sc.meta, sc.number)
	case name == "item" || name == "item.text" || name == "item.item":
		if sc.item != nil {
			v = plainText(sc.item.Text)
		}
	case name == "item.answer":
		if sc.item != nil {
			v = plainText(sc.item.MatchText)
		}
	case name == "item.feedback":
		if sc.item != nil {
			v = plainText(sc.item.Feedback)
		}
	case strings.HasPrefix(name, "question."):
		v = sc.questionField(strings.TrimPrefix(name, "question."))
	case strings.HasPrefix(name, "meta."):
		v = metaField(sc.meta, strings.TrimPrefix(name, "meta."))
	}

	if filter == "if_correct" {
		if sc.item == nil || !sc.item.IsCorrect {
			return ""
		}
	}
	return v
}

func (sc scope) questionField(f string) string {
	q := sc.q
	switch f {
	case "body", "question_text", "text":
		return plainText(q.BodyHTML)
	case "title", "name":
		return q.Title
	case "type":
		return string(q.Type)
	case "general_feedback":
		return plainText(q.GeneralFeedback)
	case "reference_answer":
		if c := q.CorrectAnswers(); len(c) > 0 {
			return plainText(c[0].Text)
		}
	case "correct_join":
		var parts []string
		for _, a := range q.CorrectAnswers() {
			parts = append(parts, plainText(a.Text))
		}
		return strings.Join(parts, "; ")
	case "matching_join":
		var parts []string
		for _, a := range q.Answers {
			parts = append(parts, plainText(a.Text)+" -> "+plainText(a.MatchText))
		}
		return strings.Join(parts, "; ")
	case "category":
		return strings.Join(q.CategoryPath, " / ")
	}
	return ""
}

func metaField(m *template.MetadataTemplate, f string) string {
	if m == nil {
		return ""
	}
	switch f {
	case "pk":
		return joinKey(m.PKPrefix, m.PKID)
	case "pk_prefix":
		return m.PKPrefix
	case "pk_id":
		return m.PKID
	case "ipk":
		return joinKey(m.IPKPrefix, m.IPKID)
	case "ipk_prefix":
		return m.IPKPrefix
	case "ipk_id":
		return m.IPKID
	case "description":
		return m.Description
	case "name":
		return m.Name
	}
	return ""
}

func taskHeader(m *template.MetadataTemplate, number int) string {
	if m == nil {
		return fmt.Sprintf("Task %d", number)
	}
	detail := strings.TrimSpace(strings.TrimSpace(joinKey(m.PKPrefix, m.PKID)+" - "+joinKey(m.IPKPrefix, m.IPKID)) + " " + m.Description)
	if detail == "-" || detail == "" {
		return fmt.Sprintf("Task %d", number)
	}
	return fmt.Sprintf("Task %d (%s)", number, detail)
}

func joinKey(prefix, id string) string {
	if prefix == "" && id == "" {
		return ""
	}
	if prefix == "" {
		return id
	}
	if id == "" {
		return prefix
	}
	return prefix + "-" + id
}

func headingText(q qbank.Question, number int) string {
	if t := strings.TrimSpace(q.Title); t != "" {
		return fmt.Sprintf("%d. %s", number, t)
	}
	return fmt.Sprintf("%d. Question", number)
}

func frontMatter(m *template.MetadataTemplate) []Field {
	if m == nil {
		return nil
	}
	return []Field{
		{Key: "PK", Value: joinKey(m.PKPrefix, m.PKID)},
		{Key: "IPK", Value: joinKey(m.IPKPrefix, m.IPKID)},
		{Key: "Description", Value: m.Description},
	}
}

func sourceItems(q qbank.Question, source string) []qbank.Answer {
	switch source {
	case template.SourceAnswersAll, template.SourceMatchingPairs:
		return q.Answers
	case template.SourceAnswersCorrect:
		return q.CorrectAnswers()
	}
	return nil
}

func hasAnswerBlocks(cfg template.Config) bool {
	for _, b := range cfg.Blocks {
		if b.Kind == template.BlockList || b.Kind == template.BlockTable {
			return true
		}
	}
	return false
}

func answerKey(q qbank.Question) []string {
	var out []string
	for _, a := range q.CorrectAnswers() {
		if a.MatchText != "" {
			out = append(out, plainText(a.Text)+" -> "+plainText(a.MatchText))
			continue
		}
		out = append(out, plainText(a.Text))
	}
	return out
}

// plainText strips markup from rich question text so the IR stays
// format-agnostic; the HTML renderer re-escapes, the rest use it verbatim.
func plainText(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.TrimSpace(html.UnescapeString(s))
	}
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(html.UnescapeString(b.String()))
}

// mediaTargets pulls src attributes out of question body markup.
func mediaTargets(body string) []string {
	var out []string
	rest := body
	for {
		i := strings.Index(rest, "src=")
		if i < 0 {
			break
		}
		rest = rest[i+len("src="):]
		if len(rest) == 0 {
			break
		}
		quote := rest[0]
		if quote != '"' && quote != '\'' {
			continue
		}
		rest = rest[1:]
		j := strings.IndexByte(rest, quote)
		if j < 0 {
			break
		}
		if target := strings.TrimSpace(rest[:j]); target != "" {
			out = append(out, target)
		}
		rest = rest[j+1:]
	}
	return out
}
