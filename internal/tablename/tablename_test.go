package tablename

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		template string
		file     string
		want     string
	}{
		{"single placeholder", "prefix_{0:4}_suffix", "20230615_data.csv", "prefix_2023_suffix"},
		{"no placeholder", "dataset.sales", "20230615_data.csv", "dataset.sales"},
		{"chosen file name", "sales_{2:6}", "a_20230102.csv", "sales_2023"},
		{"several placeholders", "ds.t_{0:4}_{4:6}_{6:8}", "20230615.csv", "ds.t_2023_06_15"},
		{"same placeholder twice", "{0:1}{0:1}", "xyz", "xx"},
		{"end past name", "t_{4:100}", "abcdefg", "t_efg"},
		{"start past name", "t_{50:60}", "abc", "t_"},
		{"reversed range", "t_{5:2}", "abcdefg", "t_"},
		{"empty range", "t_{3:3}", "abcdefg", "t_"},
		{"multibyte characters", "t_{1:3}", "éàü.csv", "t_àü"},
		{"malformed braces untouched", "t_{a:b}_{1-2}_{3:}", "abcdef", "t_{a:b}_{1-2}_{3:}"},
		{"overflowing offset clamps", "t_{0:99999999999999999999}", "abc", "t_abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.template, tt.file))
		})
	}
}

func TestResolveIsSinglePass(t *testing.T) {
	// the file name itself looks like a placeholder; it must not be expanded
	got := Resolve("x_{0:5}", "{0:1}abc")
	assert.Equal(t, "x_{0:1}", got)
}

func TestHasPlaceholders(t *testing.T) {
	assert.True(t, HasPlaceholders("a_{0:2}"))
	assert.False(t, HasPlaceholders("a_b"))
}
