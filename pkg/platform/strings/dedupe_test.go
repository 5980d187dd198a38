package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []string
	}{
		{name: "nothing", values: nil, want: nil},
		{name: "blank values", values: []string{"", "   "}, want: nil},
		{name: "splits on whitespace", values: []string{"INV-1  INV-2\tINV-3"}, want: []string{"INV-1", "INV-2", "INV-3"}},
		{name: "first occurrence wins", values: []string{"B A", "A C", "B"}, want: []string{"B", "A", "C"}},
		{name: "case is significant", values: []string{"ref REF"}, want: []string{"ref", "REF"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokens(tt.values...))
		})
	}
}

func TestWithout(t *testing.T) {
	assert.Equal(t, []string{"manual"}, Without([]string{"manual", "WH/IN/00001"}, []string{"WH/IN/00001"}))
	assert.Nil(t, Without([]string{"a"}, []string{"a"}))
	assert.Equal(t, []string{"a", "b"}, Without([]string{"a", "b"}, nil))
}
