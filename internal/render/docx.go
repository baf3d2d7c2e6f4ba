package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/openqbank/qbexport/internal/errs"
	"github.com/openqbank/qbexport/internal/template"
)

// docxRenderer writes a minimal WordprocessingML package by hand: a DOCX
// is a zip archive of XML parts, so this follows the same zip+XML path as
// the rest of the pipeline instead of pulling in an OOXML toolkit.
type docxRenderer struct{}

func (docxRenderer) Format() Format { return FormatDocx }

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`

// usable page width in twips (A4, 2cm margins), used to spread table columns
const docxPageTwips = 9360

func (r docxRenderer) Render(doc *Document, opts Options) ([]byte, error) {
	if err := checkDocument(doc); err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	parts := map[string]string{
		"[Content_Types].xml":          docxContentTypes,
		"_rels/.rels":                  docxRootRels,
		"word/_rels/document.xml.rels": docxDocumentRels,
		"word/document.xml":            r.documentXML(doc, opts),
	}
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/_rels/document.xml.rels", "word/document.xml"} {
		w, err := zw.Create(name)
		if err != nil {
			return nil, &errs.RenderError{Format: string(FormatDocx), Err: err}
		}
		if _, err := w.Write([]byte(parts[name])); err != nil {
			return nil, &errs.RenderError{Format: string(FormatDocx), Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &errs.RenderError{Format: string(FormatDocx), Err: err}
	}
	return buf.Bytes(), nil
}

func (r docxRenderer) documentXML(doc *Document, opts Options) string {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	color := strings.TrimPrefix(styleColor(doc.Styles.HeaderColor), "#")
	b.WriteString(docxPara(doc.Title, runProps{Bold: true, HalfPts: sizeOr(doc.Styles.TitleSize, 22) * 2, Color: color}))
	if len(doc.FrontMatter) > 0 {
		rows := make([][]Cell, 0, len(doc.FrontMatter))
		for _, f := range doc.FrontMatter {
			rows = append(rows, []Cell{{Text: f.Key}, {Text: f.Value}})
		}
		b.WriteString(docxTable(&TableBlock{Rows: rows, WidthsPct: []int{30, 70}}, doc.Styles))
	}

	for _, sec := range doc.Questions {
		for _, blk := range sec.Blocks {
			r.writeBlock(&b, blk, doc, opts)
		}
	}

	b.WriteString(`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr></w:body></w:document>`)
	return b.String()
}

func (docxRenderer) writeBlock(b *strings.Builder, blk Block, doc *Document, opts Options) {
	color := strings.TrimPrefix(styleColor(doc.Styles.HeaderColor), "#")
	switch blk.Type {
	case BlockHeading:
		b.WriteString(docxPara(blk.Heading.Text, runProps{Bold: true, HalfPts: sizeOr(doc.Styles.HeaderSize, 16) * 2, Color: color}))
	case BlockParagraph:
		b.WriteString(docxPara(blk.Paragraph.Text, runProps{HalfPts: sizeOr(doc.Styles.BodySize, 14) * 2}))
	case BlockList:
		for i, it := range blk.List.Items {
			marker := "- "
			if blk.List.Ordered {
				marker = fmt.Sprintf("%d. ", i+1)
			}
			b.WriteString(docxPara(marker+it.Text, runProps{Bold: it.Correct, HalfPts: sizeOr(doc.Styles.AnswerSize, 12) * 2}))
		}
	case BlockTable:
		b.WriteString(docxTable(blk.Table, doc.Styles))
	case BlockAnswerKey:
		b.WriteString(docxPara("Answer key:", runProps{Bold: true, HalfPts: sizeOr(doc.Styles.AnswerSize, 12) * 2}))
		for _, e := range blk.AnswerKey.Entries {
			b.WriteString(docxPara("- "+e, runProps{Bold: true, HalfPts: sizeOr(doc.Styles.AnswerSize, 12) * 2}))
		}
	case BlockMediaRef:
		b.WriteString(docxPara("[media: "+mediaLink(blk.Media.Target, opts)+"]", runProps{Italic: true, HalfPts: sizeOr(doc.Styles.AnswerSize, 12) * 2}))
	}
}

type runProps struct {
	Bold    bool
	Italic  bool
	HalfPts int
	Color   string // RRGGBB, no hash
}

func (p runProps) xml() string {
	var b strings.Builder
	b.WriteString("<w:rPr>")
	if p.Bold {
		b.WriteString("<w:b/>")
	}
	if p.Italic {
		b.WriteString("<w:i/>")
	}
	if p.Color != "" {
		fmt.Fprintf(&b, `<w:color w:val="%s"/>`, p.Color)
	}
	if p.HalfPts > 0 {
		fmt.Fprintf(&b, `<w:sz w:val="%d"/>`, p.HalfPts)
	}
	b.WriteString("</w:rPr>")
	return b.String()
}

func docxPara(text string, props runProps) string {
	return fmt.Sprintf(`<w:p><w:r>%s<w:t xml:space="preserve">%s</w:t></w:r></w:p>`,
		props.xml(), xmlEscape(text))
}

func docxTable(t *TableBlock, styles template.Styles) string {
	var b strings.Builder
	b.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/><w:tblBorders>` +
		`<w:top w:val="single" w:sz="4"/><w:bottom w:val="single" w:sz="4"/>` +
		`<w:left w:val="single" w:sz="4"/><w:right w:val="single" w:sz="4"/>` +
		`<w:insideH w:val="single" w:sz="4"/><w:insideV w:val="single" w:sz="4"/>` +
		`</w:tblBorders></w:tblPr>`)

	widths := columnTwips(t)
	b.WriteString("<w:tblGrid>")
	for _, w := range widths {
		fmt.Fprintf(&b, `<w:gridCol w:w="%d"/>`, w)
	}
	b.WriteString("</w:tblGrid>")

	if len(t.Headers) > 0 {
		b.WriteString("<w:tr>")
		for i, h := range t.Headers {
			b.WriteString(docxCell(h, runProps{Bold: true, HalfPts: sizeOr(styles.AnswerSize, 12) * 2}, widthAt(widths, i)))
		}
		b.WriteString("</w:tr>")
	}
	for _, row := range t.Rows {
		b.WriteString("<w:tr>")
		for i, c := range row {
			b.WriteString(docxCell(c.Text, runProps{Bold: c.Correct, HalfPts: sizeOr(styles.AnswerSize, 12) * 2}, widthAt(widths, i)))
		}
		b.WriteString("</w:tr>")
	}
	b.WriteString("</w:tbl>")
	b.WriteString(docxPara("", runProps{}))
	return b.String()
}

func docxCell(text string, props runProps, twips int) string {
	return fmt.Sprintf(`<w:tc><w:tcPr><w:tcW w:w="%d" w:type="dxa"/></w:tcPr>%s</w:tc>`,
		twips, docxPara(text, props))
}

func columnTwips(t *TableBlock) []int {
	n := len(t.Headers)
	if n == 0 && len(t.Rows) > 0 {
		n = len(t.Rows[0])
	}
	if n == 0 {
		return nil
	}
	out := make([]int, n)
	if len(t.WidthsPct) == n {
		for i, pct := range t.WidthsPct {
			out[i] = docxPageTwips * pct / 100
		}
		return out
	}
	for i := range out {
		out[i] = docxPageTwips / n
	}
	return out
}

func widthAt(widths []int, i int) int {
	if i < len(widths) {
		return widths[i]
	}
	return docxPageTwips / 4
}

func sizeOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
