package render

import (
	"fmt"
	"strings"
)

type markdownRenderer struct{}

func (markdownRenderer) Format() Format { return FormatMarkdown }

func (r markdownRenderer) Render(doc *Document, opts Options) ([]byte, error) {
	if err := checkDocument(doc); err != nil {
		return nil, err
	}

	var lines []string
	lines = append(lines, "# "+mdEscape(doc.Title), "")
	if len(doc.FrontMatter) > 0 {
		rows := make([][]string, 0, len(doc.FrontMatter))
		for _, f := range doc.FrontMatter {
			rows = append(rows, []string{f.Key, f.Value})
		}
		lines = append(lines, mdTable([]string{"Field", "Value"}, rows), "")
	}

	for _, sec := range doc.Questions {
		for _, blk := range sec.Blocks {
			lines = append(lines, r.renderBlock(blk, opts)...)
		}
	}

	return []byte(strings.Join(lines, "\n")), nil
}

func (markdownRenderer) renderBlock(blk Block, opts Options) []string {
	switch blk.Type {
	case BlockHeading:
		return []string{strings.Repeat("#", blk.Heading.Level) + " " + mdEscape(blk.Heading.Text), ""}
	case BlockParagraph:
		if blk.Paragraph.Text == "" {
			return nil
		}
		return []string{mdEscape(blk.Paragraph.Text), ""}
	case BlockList:
		var out []string
		for i, it := range blk.List.Items {
			marker := "-"
			if blk.List.Ordered {
				marker = fmt.Sprintf("%d.", i+1)
			}
			text := mdEscape(it.Text)
			if it.Correct {
				text = "**" + text + "**"
			}
			out = append(out, marker+" "+text)
		}
		return append(out, "")
	case BlockTable:
		rows := make([][]string, 0, len(blk.Table.Rows))
		for _, row := range blk.Table.Rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				text := mdEscape(c.Text)
				if c.Correct && text != "" {
					text = "**" + text + "**"
				}
				cells = append(cells, text)
			}
			rows = append(rows, cells)
		}
		headers := blk.Table.Headers
		if len(headers) == 0 && len(rows) > 0 {
			headers = make([]string, len(rows[0]))
		}
		return []string{mdTableRaw(headers, rows), ""}
	case BlockAnswerKey:
		out := []string{"**Answer key:**", ""}
		for _, e := range blk.AnswerKey.Entries {
			out = append(out, "- **"+mdEscape(e)+"**")
		}
		return append(out, "")
	case BlockMediaRef:
		return []string{fmt.Sprintf("![](%s)", mediaLink(blk.Media.Target, opts)), ""}
	}
	return nil
}

// mdEscape keeps tables well-formed: pipes escaped, newlines folded.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\n", "<br>")
	return s
}

func mdTable(headers []string, rows [][]string) string {
	escRows := make([][]string, len(rows))
	for i, r := range rows {
		escRows[i] = make([]string, len(r))
		for j, c := range r {
			escRows[i][j] = mdEscape(c)
		}
	}
	escHeaders := make([]string, len(headers))
	for i, h := range headers {
		escHeaders[i] = mdEscape(h)
	}
	return mdTableRaw(escHeaders, escRows)
}

func mdTableRaw(headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	seps := make([]string, len(headers))
	for i := range seps {
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(seps, " | ") + " |")
	for _, r := range rows {
		b.WriteString("\n| " + strings.Join(r, " | ") + " |")
	}
	return b.String()
}
