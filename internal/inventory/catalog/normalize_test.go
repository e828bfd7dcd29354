package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"lowercases", "Milk", "milk"},
		{"strips plural", "Milks", "milk"},
		{"strips accents", "Crème Fraîche", "creme fraiche"},
		{"drops digits and punctuation", "Eggs (12-pack)!", "eggs pack"},
		{"collapses whitespace", "  green \t  apple  ", "green apple"},
		{"single s kept", "s", "s"},
		{"double s kept", "Glass", "glass"},
		{"lone trailing s word kept", "vitamin s", "vitamin s"},
		{"blank", "   ", ""},
		{"only symbols", "123 !!", ""},
		{"unicode letters removed", "日本 rice", "rice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"Milks", "Tomatoes", "glass", "Crème Brûlées", "  a  b  ", "ss", "s", "", "Bass Fish", "Rice & Beans"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, Distance("milk", "milk"))
	assert.Equal(t, 1, Distance("tomatoe", "tomato"))
	assert.Equal(t, 3, Distance("kitten", "sitting"))
	assert.Equal(t, 4, Distance("", "milk"))
	assert.Equal(t, 4, Distance("milk", ""))
	assert.Equal(t, 1, Distance("café", "cafe"))
}

func TestFindBestMatch(t *testing.T) {
	t.Run("fuzzy within threshold", func(t *testing.T) {
		got, ok := FindBestMatch("Tomatoe", []string{"Tomato"})
		assert.True(t, ok)
		assert.Equal(t, "Tomato", got)
	})

	t.Run("fuzzy needs the same first letter", func(t *testing.T) {
		assert.Equal(t, 2, Distance("tomato", "potato"))
		_, ok := FindBestMatch("Tomato", []string{"Potato"})
		assert.False(t, ok)
	})

	t.Run("fuzzy beyond threshold", func(t *testing.T) {
		_, ok := FindBestMatch("Tomato", []string{"Tomatillo"})
		assert.False(t, ok)
	})

	t.Run("exact canonical wins over earlier fuzzy candidate", func(t *testing.T) {
		got, ok := FindBestMatch("Milks", []string{"Silk", "milk"})
		assert.True(t, ok)
		assert.Equal(t, "milk", got)
	})

	t.Run("first fuzzy candidate wins", func(t *testing.T) {
		got, ok := FindBestMatch("bred", []string{"bread", "brad"})
		assert.True(t, ok)
		assert.Equal(t, "bread", got)
	})

	t.Run("blank never matches", func(t *testing.T) {
		_, ok := FindBestMatch("  ", []string{"", "a"})
		assert.False(t, ok)
	})

	t.Run("no candidates", func(t *testing.T) {
		_, ok := FindBestMatch("milk", nil)
		assert.False(t, ok)
	})

	t.Run("fuzzy disabled", func(t *testing.T) {
		_, ok := NewMatcher(-1).FindBestMatch("Tomatoe", []string{"Tomato"})
		assert.False(t, ok)
	})
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Green Apples", DisplayName("  green   APPLES "))
	assert.Equal(t, "Crème Fraîche", DisplayName("crème fraîche"))
	assert.Equal(t, "", DisplayName("   "))
}
