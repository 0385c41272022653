package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchPattern(t *testing.T) {
	tests := []struct {
		name   string
		search string
		want   string
	}{
		{"Empty", "", ""},
		{"Blank", "   ", ""},
		{"Plain", " Asha ", "%Asha%"},
		{"Percent", "50%", `%50\%%`},
		{"Underscore", "a_b", `%a\_b%`},
		{"Backslash", `a\b`, `%a\\b%`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, searchPattern(tt.search))
		})
	}
}

func TestNullableID(t *testing.T) {
	assert.Nil(t, nullableID(""))
	id := "7f8d7d9e-2c1b-4a7e-9a55-3f1d2a6b8c01"
	got := nullableID(id)
	if assert.NotNil(t, got) {
		assert.Equal(t, id, *got)
	}
}
