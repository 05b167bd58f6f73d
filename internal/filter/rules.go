package filter

import (
	"regexp"
	"strings"
)

// Rules maps a property name to the patterns that reject an event when they
// match that property's value. Patterns keep their insertion order and may
// repeat.
type Rules map[string][]*regexp.Regexp

// Len returns the total number of compiled patterns.
func (r Rules) Len() int {
	n := 0
	for _, ps := range r {
		n += len(ps)
	}
	return n
}

// CompileRules turns FIELD=PATTERN strings into Rules. The string is split on
// the first '='; PATTERN is an unanchored regular expression. Strings without
// '=' and patterns that fail to compile are skipped and reported.
func CompileRules(raw []string) (Rules, []Diagnostic) {
	rules := make(Rules)
	var diags []Diagnostic

	for _, s := range raw {
		field, pattern, ok := strings.Cut(s, "=")
		if !ok {
			diags = append(diags, ruleDiagnostic(KindMalformedRule, s, "invalid blacklist rule, expected FIELD=PATTERN"))
			continue
		}

		re, err := regexp.Compile(pattern)
		if err != nil {
			d := ruleDiagnostic(KindInvalidPattern, s, "invalid blacklist regex: "+err.Error())
			d.Field = field
			diags = append(diags, d)
			continue
		}

		rules[field] = append(rules[field], re)
	}

	return rules, diags
}
