package render

import (
	"fmt"
	"html"
	"strings"
)

type htmlRenderer struct{}

func (htmlRenderer) Format() Format { return FormatHTML }

func (r htmlRenderer) Render(doc *Document, opts Options) ([]byte, error) {
	if err := checkDocument(doc); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", esc(doc.Title))
	b.WriteString("<style>\n")
	fmt.Fprintf(&b, "h1,h2{color:%s}\n", styleColor(doc.Styles.HeaderColor))
	b.WriteString("table{border-collapse:collapse;margin:8px 0}\ntd,th{border:1px solid #999;padding:4px 8px}\n.correct{font-weight:bold}\n")
	b.WriteString("</style>\n</head>\n<body>\n")

	fmt.Fprintf(&b, "<h1>%s</h1>\n", esc(doc.Title))
	if len(doc.FrontMatter) > 0 {
		b.WriteString("<table class=\"front-matter\">\n")
		for _, f := range doc.FrontMatter {
			fmt.Fprintf(&b, "<tr><th>%s</th><td>%s</td></tr>\n", esc(f.Key), esc(f.Value))
		}
		b.WriteString("</table>\n")
	}

	for _, sec := range doc.Questions {
		b.WriteString("<section class=\"question\">\n")
		for _, blk := range sec.Blocks {
			r.writeBlock(&b, blk, opts)
		}
		b.WriteString("</section>\n")
	}

	b.WriteString("</body>\n</html>\n")
	return []byte(b.String()), nil
}

func (htmlRenderer) writeBlock(b *strings.Builder, blk Block, opts Options) {
	switch blk.Type {
	case BlockHeading:
		fmt.Fprintf(b, "<h%d>%s</h%d>\n", blk.Heading.Level, esc(blk.Heading.Text), blk.Heading.Level)
	case BlockParagraph:
		if blk.Paragraph.Text == "" {
			return
		}
		fmt.Fprintf(b, "<p>%s</p>\n", esc(blk.Paragraph.Text))
	case BlockList:
		tag := "ol"
		if !blk.List.Ordered {
			tag = "ul"
		}
		fmt.Fprintf(b, "<%s>\n", tag)
		for _, it := range blk.List.Items {
			cls := ""
			if it.Correct {
				cls = ` class="correct"`
			}
			fmt.Fprintf(b, "<li%s>%s</li>\n", cls, esc(it.Text))
		}
		fmt.Fprintf(b, "</%s>\n", tag)
	case BlockTable:
		b.WriteString("<table>\n")
		if len(blk.Table.Headers) > 0 {
			b.WriteString("<tr>")
			for _, h := range blk.Table.Headers {
				fmt.Fprintf(b, "<th>%s</th>", esc(h))
			}
			b.WriteString("</tr>\n")
		}
		for _, row := range blk.Table.Rows {
			b.WriteString("<tr>")
			for _, c := range row {
				if c.Correct {
					fmt.Fprintf(b, "<td><span class=\"correct\">%s</span></td>", esc(c.Text))
				} else {
					fmt.Fprintf(b, "<td>%s</td>", esc(c.Text))
				}
			}
			b.WriteString("</tr>\n")
		}
		b.WriteString("</table>\n")
	case BlockAnswerKey:
		b.WriteString("<p class=\"correct\">Answer key:</p>\n<ul>\n")
		for _, e := range blk.AnswerKey.Entries {
			fmt.Fprintf(b, "<li class=\"correct\">%s</li>\n", esc(e))
		}
		b.WriteString("</ul>\n")
	case BlockMediaRef:
		fmt.Fprintf(b, "<p><img src=\"%s\" alt=\"\"></p>\n", esc(mediaLink(blk.Media.Target, opts)))
	}
}

func esc(s string) string { return html.EscapeString(s) }

func styleColor(c string) string {
	if strings.TrimSpace(c) == "" {
		return "#000000"
	}
	return c
}

// mediaLink keeps media references as stable relative links.
func mediaLink(target string, opts Options) string {
	t := strings.TrimPrefix(target, "@@PLUGINFILE@@/")
	t = strings.TrimPrefix(t, "/")
	if opts.MediaBase == "" {
		return t
	}
	return strings.TrimSuffix(opts.MediaBase, "/") + "/" + t
}
