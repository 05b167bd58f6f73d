package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileRules(t *testing.T) {
	tests := []struct {
		name      string
		raw       []string
		fields    map[string]int
		diagKinds []DiagnosticKind
	}{
		{
			name:   "empty",
			raw:    nil,
			fields: map[string]int{},
		},
		{
			name:   "accumulates per field",
			raw:    []string{"SUMMARY=foo", "SUMMARY=bar", "LOCATION=Room 1"},
			fields: map[string]int{"SUMMARY": 2, "LOCATION": 1},
		},
		{
			name:   "duplicates kept",
			raw:    []string{"SUMMARY=foo", "SUMMARY=foo"},
			fields: map[string]int{"SUMMARY": 2},
		},
		{
			name:      "missing equals sign",
			raw:       []string{"BADRULE", "SUMMARY=Foo"},
			fields:    map[string]int{"SUMMARY": 1},
			diagKinds: []DiagnosticKind{KindMalformedRule},
		},
		{
			name:      "invalid pattern",
			raw:       []string{"SUMMARY=(", "DESCRIPTION=ok"},
			fields:    map[string]int{"DESCRIPTION": 1},
			diagKinds: []DiagnosticKind{KindInvalidPattern},
		},
		{
			name:      "all invalid",
			raw:       []string{"nope", "SUMMARY=[z-a]"},
			fields:    map[string]int{},
			diagKinds: []DiagnosticKind{KindMalformedRule, KindInvalidPattern},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, diags := CompileRules(tt.raw)

			got := map[string]int{}
			for field, ps := range rules {
				got[field] = len(ps)
			}
			assert.Equal(t, tt.fields, got)
			assert.Equal(t, tt.diagKinds, nilIfEmpty(kinds(diags)))
		})
	}
}

func TestCompileRulesSplitsOnFirstEquals(t *testing.T) {
	rules, diags := CompileRules([]string{"DESCRIPTION=a=b"})
	require.Empty(t, diags)
	require.Len(t, rules["DESCRIPTION"], 1)
	assert.Equal(t, "a=b", rules["DESCRIPTION"][0].String())
	assert.Equal(t, 1, rules.Len())
}

func TestCompileRulesDiagnosticCarriesRule(t *testing.T) {
	_, diags := CompileRules([]string{"BADRULE"})
	require.Len(t, diags, 1)
	assert.Equal(t, "BADRULE", diags[0].Rule)
	assert.Equal(t, -1, diags[0].Calendar)
	assert.Equal(t, -1, diags[0].Event)
	assert.True(t, diags[0].Warning())
}

func nilIfEmpty(ks []DiagnosticKind) []DiagnosticKind {
	if len(ks) == 0 {
		return nil
	}
	return ks
}
