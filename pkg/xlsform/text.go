package xlsform

import (
	"fmt"
	"regexp"

	"github.com/sylvaingchassang/ddss-safely-report/pkg/apperr"
)

var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ValueLookup resolves a stored response value by variable name for text
// interpolation. It mirrors SurveyProcessor.get_value in the original
// implementation but only needs read access to current values.
type ValueLookup func(name string) (any, bool)

// Resolve extracts the text appropriate for lang from t and interpolates
// any ${var} placeholders using lookup. If t is localized and lang is not
// one of its keys, it returns apperr.ErrLanguageMissing.
func Resolve(t Text, lang string, lookup ValueLookup) (string, error) {
	var raw string
	if t.IsLocalized() {
		v, ok := t.Localized[lang]
		if !ok {
			return "", apperr.ErrLanguageMissing
		}
		raw = v
	} else {
		raw = t.Plain
	}

	result := placeholderPattern.ReplaceAllStringFunc(raw, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		v, ok := lookup(name)
		if !ok {
			return ""
		}
		return fmt.Sprintf("%v", v)
	})
	return result, nil
}
