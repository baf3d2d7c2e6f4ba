package render

import (
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/openqbank/qbexport/internal/errs"
)

// xlsxRenderer flattens the IR into one row per question. It deliberately
// drops rich layout: the spreadsheet exists for tabular review, not
// document fidelity.
type xlsxRenderer struct{}

func (xlsxRenderer) Format() Format { return FormatXLSX }

var xlsxColumns = []string{
	"Category", "Type", "Title", "Question",
	"Answer options", "Correct answers", "PK", "IPK", "Description",
}

func (r xlsxRenderer) Render(doc *Document, opts Options) ([]byte, error) {
	if err := checkDocument(doc); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Questions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, &errs.RenderError{Format: string(FormatXLSX), Err: err}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, &errs.RenderError{Format: string(FormatXLSX), Err: err}
	}
	for i, h := range xlsxColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, &errs.RenderError{Format: string(FormatXLSX), Err: err}
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(xlsxColumns), 1)
	_ = f.SetCellStyle(sheet, "A1", last, headerStyle)
	_ = f.SetColWidth(sheet, "A", "I", 28)

	meta := frontMatterMap(doc)
	for ri, sec := range doc.Questions {
		q := sec.Source
		var all, correct []string
		for _, a := range q.Answers {
			text := plainText(a.Text)
			if a.MatchText != "" {
				text += " -> " + plainText(a.MatchText)
			}
			all = append(all, text)
			if a.IsCorrect {
				correct = append(correct, text)
			}
		}
		values := []interface{}{
			strings.Join(q.CategoryPath, " / "),
			string(q.Type),
			q.Title,
			plainText(q.BodyHTML),
			strings.Join(all, "; "),
			strings.Join(correct, "; "),
			meta["PK"],
			meta["IPK"],
			meta["Description"],
		}
		for ci, v := range values {
			cell, _ := excelize.CoordinatesToCellName(ci+1, ri+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, &errs.RenderError{Format: string(FormatXLSX), Err: err}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, &errs.RenderError{Format: string(FormatXLSX), Err: err}
	}
	return buf.Bytes(), nil
}

func frontMatterMap(doc *Document) map[string]string {
	out := map[string]string{}
	for _, f := range doc.FrontMatter {
		out[f.Key] = f.Value
	}
	return out
}
