package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"emal", "email", 1},
		{"kitten", "sitting", 3},
		{"sumbit", "submit", 2},
		{"héllo", "hello", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Distance(tt.a, tt.b))
			assert.Equal(t, tt.want, Distance(tt.b, tt.a))
		})
	}
}

func TestClosest(t *testing.T) {
	got, ok := Closest("emal", []string{"name", "email"})
	assert.True(t, ok)
	assert.Equal(t, "email", got)

	_, ok = Closest("zzzzzz", []string{"name", "email"})
	assert.False(t, ok)

	got, ok = Closest("Colour", []string{"color", "size"})
	assert.True(t, ok)
	assert.Equal(t, "color", got)
}

func TestRankLimitsAndOrders(t *testing.T) {
	got := Rank("buton", []string{"button", "bottom", "baton", "butane", "mutton"})
	assert.LessOrEqual(t, len(got), 3)
	assert.Equal(t, "button", got[0])
}
