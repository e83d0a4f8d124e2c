package template

import (
	"SnowAegis/internal/core/domain"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpander_Replace(t *testing.T) {
	e := New()
	bindings := domain.Bindings{
		"host":  domain.List("a", "b"),
		"limit": domain.Scalar("10"),
		"name":  domain.List("o'neil"),
	}
	upper := func(v domain.VariableValue) string { return "<" + v.String() + ">" }

	testCases := []struct {
		name   string
		text   string
		format domain.ValueFormatter
		want   string
	}{
		{"dollar", "x = $limit", upper, "x = <10>"},
		{"braces", "x = ${limit}", upper, "x = <10>"},
		{"brackets", "x = [[limit]]", upper, "x = <10>"},
		{"named csv", "x IN (${host:csv})", upper, "x IN (a,b)"},
		{"named pipe", "${host:pipe}", upper, "a|b"},
		{"named sqlstring escapes", "${name:sqlstring}", upper, "'o''neil'"},
		{"unknown format falls back", "${host:weird}", upper, "<a,b>"},
		{"unbound left untouched", "$missing and $__timeFilter(ts)", upper, "$missing and $__timeFilter(ts)"},
		{"nil formatter joins", "$host", nil, "a,b"},
		{"multiple occurrences", "$limit-$limit", upper, "<10>-<10>"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, e.Replace(tc.text, bindings, tc.format))
		})
	}
}

func TestExpander_Replace_NoBindings(t *testing.T) {
	e := New()
	assert.Equal(t, "select $a", e.Replace("select $a", nil, nil))
	assert.Equal(t, "", e.Replace("", domain.Bindings{"a": domain.Scalar("1")}, nil))
}
