package template

import (
	"fmt"

	"github.com/openqbank/qbexport/internal/qbank"
)

func defaultStyles() Styles {
	return Styles{HeaderColor: "#C00000", TitleSize: 22, HeaderSize: 16, BodySize: 14, AnswerSize: 12}
}

// DefaultConfig is the stock "question text + answer table" layout for a
// question type.
func DefaultConfig(questionType string) Config {
	head := []Block{
		{Kind: BlockLine, Pattern: "{{task.header}}"},
		{Kind: BlockLine, Pattern: "{{question.body}}"},
		{Kind: BlockSpacer, MM: 2},
	}

	switch qbank.Type(questionType) {
	case qbank.TypeMatching:
		return Config{
			Version: ConfigVersion,
			Styles:  defaultStyles(),
			Blocks: append(head, Block{
				Kind:         BlockTable,
				Source:       SourceMatchingPairs,
				Headers:      []string{"#", "", "Item", "Correct answer"},
				Cols:         []string{"", "", "{{item.item}}", "{{item.answer}}"},
				ColWidthsPct: []int{10, 25, 35, 30},
			}),
		}
	case qbank.TypeMultichoice, qbank.TypeTrueFalse:
		return Config{
			Version: ConfigVersion,
			Styles:  defaultStyles(),
			Blocks: append(head, Block{
				Kind:         BlockTable,
				Source:       SourceAnswersAll,
				Headers:      []string{"#", "Answer options", "Correct answer"},
				Cols:         []string{"", "{{item}}", "{{item|if_correct}}"},
				ColWidthsPct: []int{10, 45, 45},
			}),
		}
	case qbank.TypeShortAnswer, qbank.TypeNumerical:
		return Config{
			Version: ConfigVersion,
			Styles:  defaultStyles(),
			Blocks: append(head, Block{
				Kind:         BlockTable,
				Source:       SourceAnswersCorrect,
				Headers:      []string{"#", "", "Answer"},
				Cols:         []string{"", "", "{{item}}"},
				ColWidthsPct: []int{10, 10, 80},
			}),
		}
	}

	// essay, cloze and the "any" fallback: reference answer as a single line
	return Config{
		Version: ConfigVersion,
		Styles:  defaultStyles(),
		Blocks: append(head,
			Block{Kind: BlockLine, Pattern: "Reference answer: {{question.reference_answer}}"},
		),
	}
}

// Presets returns the built-in presentation templates seeded at startup:
// one per known question type plus a generic "any" fallback.
func Presets(owner string) []PresentationTemplate {
	out := []PresentationTemplate{{
		Name:      "Standard (generic)",
		AppliesTo: AppliesAny,
		Config:    DefaultConfig(AppliesAny),
		Owner:     owner,
	}}
	for _, t := range qbank.KnownTypes() {
		out = append(out, PresentationTemplate{
			Name:      fmt.Sprintf("Standard (%s)", t),
			AppliesTo: string(t),
			Config:    DefaultConfig(string(t)),
			Owner:     owner,
		})
	}
	return out
}
