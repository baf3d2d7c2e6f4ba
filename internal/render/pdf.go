package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/openqbank/qbexport/internal/errs"
)

type pdfRenderer struct{}

func (pdfRenderer) Format() Format { return FormatPDF }

func (r pdfRenderer) Render(doc *Document, opts Options) ([]byte, error) {
	if err := checkDocument(doc); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	hr, hg, hb := hexRGB(styleColor(doc.Styles.HeaderColor))
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageW - left - right

	pdf.SetFont("Helvetica", "B", float64(sizeOr(doc.Styles.TitleSize, 22)))
	pdf.SetTextColor(hr, hg, hb)
	pdf.MultiCell(usable, 10, tr(doc.Title), "", "C", false)
	pdf.Ln(2)
	pdf.SetTextColor(0, 0, 0)

	if len(doc.FrontMatter) > 0 {
		pdf.SetFont("Helvetica", "", float64(sizeOr(doc.Styles.BodySize, 14)))
		for _, f := range doc.FrontMatter {
			pdf.MultiCell(usable, 6, tr(f.Key+": "+f.Value), "", "L", false)
		}
		pdf.Ln(2)
	}

	for _, sec := range doc.Questions {
		for _, blk := range sec.Blocks {
			r.writeBlock(pdf, tr, blk, doc, usable, opts)
		}
	}
	if pdf.Err() {
		return nil, &errs.RenderError{Format: string(FormatPDF), Err: pdf.Error()}
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, &errs.RenderError{Format: string(FormatPDF), Err: err}
	}
	return buf.Bytes(), nil
}

func (pdfRenderer) writeBlock(pdf *fpdf.Fpdf, tr func(string) string, blk Block, doc *Document, usable float64, opts Options) {
	hr, hg, hb := hexRGB(styleColor(doc.Styles.HeaderColor))
	body := float64(sizeOr(doc.Styles.BodySize, 14))
	answer := float64(sizeOr(doc.Styles.AnswerSize, 12))

	switch blk.Type {
	case BlockHeading:
		pdf.SetFont("Helvetica", "B", float64(sizeOr(doc.Styles.HeaderSize, 16)))
		pdf.SetTextColor(hr, hg, hb)
		pdf.MultiCell(usable, 8, tr(blk.Heading.Text), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(1)
	case BlockParagraph:
		if blk.Paragraph.Text == "" {
			pdf.Ln(2)
			return
		}
		pdf.SetFont("Helvetica", "", body)
		pdf.MultiCell(usable, 6, tr(blk.Paragraph.Text), "", "L", false)
	case BlockList:
		pdf.SetFont("Helvetica", "", answer)
		for i, it := range blk.List.Items {
			marker := "- "
			if blk.List.Ordered {
				marker = fmt.Sprintf("%d. ", i+1)
			}
			style := ""
			if it.Correct {
				style = "B"
			}
			pdf.SetFont("Helvetica", style, answer)
			pdf.MultiCell(usable, 6, tr(marker+it.Text), "", "L", false)
		}
		pdf.Ln(1)
	case BlockTable:
		writePDFTable(pdf, tr, blk.Table, usable, answer)
	case BlockAnswerKey:
		pdf.SetFont("Helvetica", "B", answer)
		pdf.MultiCell(usable, 6, tr("Answer key:"), "", "L", false)
		for _, e := range blk.AnswerKey.Entries {
			pdf.MultiCell(usable, 6, tr("- "+e), "", "L", false)
		}
		pdf.Ln(1)
	case BlockMediaRef:
		pdf.SetFont("Helvetica", "I", answer)
		pdf.MultiCell(usable, 6, tr("[media: "+mediaLink(blk.Media.Target, opts)+"]"), "", "L", false)
	}
}

func writePDFTable(pdf *fpdf.Fpdf, tr func(string) string, t *TableBlock, usable, size float64) {
	n := len(t.Headers)
	if n == 0 && len(t.Rows) > 0 {
		n = len(t.Rows[0])
	}
	if n == 0 {
		return
	}
	widths := make([]float64, n)
	if len(t.WidthsPct) == n {
		for i, pct := range t.WidthsPct {
			widths[i] = usable * float64(pct) / 100
		}
	} else {
		for i := range widths {
			widths[i] = usable / float64(n)
		}
	}

	if len(t.Headers) > 0 {
		pdf.SetFont("Helvetica", "B", size)
		for i, h := range t.Headers {
			pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
	for _, row := range t.Rows {
		for i, c := range row {
			if i >= n {
				break
			}
			style := ""
			if c.Correct {
				style = "B"
			}
			pdf.SetFont("Helvetica", style, size)
			pdf.CellFormat(widths[i], 7, tr(c.Text), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(2)
}

func hexRGB(s string) (int, int, int) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16), int(v >> 8 & 0xff), int(v & 0xff)
}
