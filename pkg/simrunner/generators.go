package simrunner

import (
	"strings"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
)

// Fixed answers every question with the same text.
func Fixed(answer string, sources ...core.SourceRef) Generator {
	return func(core.Question) (*string, []core.SourceRef) {
		a := answer
		return &a, core.CopySources(sources)
	}
}

// ByRecordID answers from a table keyed by record ID. Questions missing from
// the table get no answer.
func ByRecordID(answers map[string]string) Generator {
	return func(q core.Question) (*string, []core.SourceRef) {
		a, ok := answers[q.RecordID]
		if !ok {
			return nil, nil
		}
		return &a, nil
	}
}

// Keyword answers from the first rule whose keyword appears in the question
// text, case-insensitively, and cites the rule's source.
func Keyword(rules []Rule) Generator {
	return func(q core.Question) (*string, []core.SourceRef) {
		text := strings.ToLower(q.Text)
		for _, rule := range rules {
			if strings.Contains(text, strings.ToLower(rule.Keyword)) {
				a := rule.Answer
				var sources []core.SourceRef
				if rule.Source != nil {
					sources = []core.SourceRef{*rule.Source}
				}
				return &a, sources
			}
		}
		return nil, nil
	}
}

// Rule maps a keyword to a canned answer.
type Rule struct {
	Keyword string          `yaml:"keyword"`
	Answer  string          `yaml:"answer"`
	Source  *core.SourceRef `yaml:"source,omitempty"`
}
