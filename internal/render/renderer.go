package render

import (
	"fmt"

	"github.com/openqbank/qbexport/internal/errs"
)

type Format string

const (
	FormatDocx     Format = "docx"
	FormatPDF      Format = "pdf"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatXLSX     Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatDocx, FormatPDF, FormatHTML, FormatMarkdown, FormatXLSX:
		return Format(s), nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPDF:
		return "application/pdf"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

func (f Format) Ext() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return "." + string(f)
}

type Options struct {
	// MediaBase prefixes relative media links in HTML/Markdown output.
	MediaBase string
}

// Renderer encodes a complete IR document into one output format.
// Implementations are stateless; a renderer value may be shared by
// concurrent export tasks.
type Renderer interface {
	Format() Format
	Render(doc *Document, opts Options) ([]byte, error)
}

type Registry map[Format]Renderer

// NewRegistry wires up every built-in renderer.
func NewRegistry() Registry {
	r := Registry{}
	for _, rd := range []Renderer{
		htmlRenderer{}, markdownRenderer{}, docxRenderer{}, pdfRenderer{}, xlsxRenderer{},
	} {
		r[rd.Format()] = rd
	}
	return r
}

func (r Registry) Get(f Format) (Renderer, error) {
	rd, ok := r[f]
	if !ok {
		return nil, fmt.Errorf("no renderer registered for format %q", f)
	}
	return rd, nil
}

// checkDocument enforces the shared no-empty-export contract.
func checkDocument(doc *Document) error {
	if doc == nil || len(doc.Questions) == 0 {
		return &errs.EmptyExportError{}
	}
	return nil
}
