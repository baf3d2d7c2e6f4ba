package template

import (
	"fmt"
	"strings"

	"github.com/openqbank/qbexport/internal/errs"
)

// ValidatePresentation collects every violation rather than stopping at the
// first, so a caller can surface the full list to a user in one pass.
func ValidatePresentation(t PresentationTemplate) error {
	var v []string
	if strings.TrimSpace(t.Name) == "" {
		v = append(v, "name must not be empty")
	}
	if !validAppliesTo(t.AppliesTo) {
		v = append(v, fmt.Sprintf("applies_to %q is not a known question type or %q", t.AppliesTo, AppliesAny))
	}
	if t.Config.Version != ConfigVersion {
		v = append(v, fmt.Sprintf("config version must be %d, got %d", ConfigVersion, t.Config.Version))
	}
	if len(t.Config.Blocks) == 0 {
		v = append(v, "config must declare at least one block")
	}
	for i, b := range t.Config.Blocks {
		v = append(v, validateBlock(i, b)...)
	}
	if len(v) > 0 {
		return &errs.ValidationError{Violations: v}
	}
	return nil
}

func validateBlock(i int, b Block) []string {
	var v []string
	at := func(msg string, args ...interface{}) {
		v = append(v, fmt.Sprintf("block %d: ", i)+fmt.Sprintf(msg, args...))
	}
	switch b.Kind {
	case BlockLine:
		if strings.TrimSpace(b.Pattern) == "" {
			at("line requires a pattern")
		}
	case BlockSpacer:
		if b.MM < 0 {
			at("spacer mm must not be negative")
		}
	case BlockList:
		if !validSource(b.Source) {
			at("list source %q unknown", b.Source)
		}
		if strings.TrimSpace(b.Pattern) == "" {
			at("list requires a pattern")
		}
	case BlockTable:
		if !validSource(b.Source) {
			at("table source %q unknown", b.Source)
		}
		if len(b.Cols) == 0 {
			at("table requires at least one column expression")
		}
		if len(b.Headers) > 0 && len(b.Headers) != len(b.Cols) {
			at("headers (%d) and cols (%d) must have the same length", len(b.Headers), len(b.Cols))
		}
		if len(b.ColWidthsPct) > 0 && len(b.ColWidthsPct) != len(b.Cols) {
			at("col_widths_pct (%d) and cols (%d) must have the same length", len(b.ColWidthsPct), len(b.Cols))
		}
	default:
		at("unknown kind %q", b.Kind)
	}
	return v
}

func validSource(s string) bool {
	switch s {
	case SourceAnswersAll, SourceAnswersCorrect, SourceMatchingPairs:
		return true
	}
	return false
}

func ValidateMetadata(t MetadataTemplate) error {
	var v []string
	if strings.TrimSpace(t.Name) == "" {
		v = append(v, "name must not be empty")
	}
	if len(v) > 0 {
		return &errs.ValidationError{Violations: v}
	}
	return nil
}
