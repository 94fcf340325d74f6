package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t\r\n ", ""},
		{"punctuation and case", "Hello, World!", "hello world"},
		{"digits and symbols", "Win $1000 NOW!!!", "win now"},
		{"url removed", "Visit https://example.com/offer now", "visit now"},
		{"url runs to whitespace", "Check http://a.b/c,please ok", "check ok"},
		{"url at start", "http://spam.example click", "click"},
		{"url fused to word", "go tohttp://x.com now", "go to now"},
		{"hyphen fuses words", "e-mail me", "email me"},
		{"non ascii letters dropped", "Café naïve", "caf nave"},
		{"collapses whitespace", "a  lot\n\nof\t\tspace", "a lot of space"},
		{"unicode space separates", "hello\u00a0world\u2003again", "hello world again"},
		{"only punctuation", "!!! ??? ...", ""},
		{"url assembled by punctuation is kept", "ht.tpx://a b", "httpxa b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestCleanProperties(t *testing.T) {
	valid := regexp.MustCompile(`^([a-z]+( [a-z]+)*)?$`)

	inputs := []string{
		"Congratulations! You've WON a FREE iPhone. Click https://win.example/claim?id=1 NOW!!!",
		"Hi team, reminder: meeting at 10am tomorrow in room 4B.",
		"Ünïcödé ÄÖÜ ß and emoji 🎉🎉 plus line separators",
		"httphttphttp http http://a http:b",
		"tabs\tand\vvertical\ftabs\x1cand\u0085next",
		"",
	}

	for _, in := range inputs {
		out := Clean(in)
		assert.Regexp(t, valid, out, "input %q", in)
		assert.Equal(t, out, Clean(out), "Clean must be idempotent for %q", in)
	}
}

func TestCleanSinglePass(t *testing.T) {
	// a URL that only appears once punctuation is gone survives the first pass
	once := Clean("...h.t.t.p.s... x")
	assert.Equal(t, "https x", once)
	assert.Equal(t, "x", Clean(once))
}

func TestCleanDeterministic(t *testing.T) {
	in := "Limited OFFER!!! Visit http://deal.example today"
	first := Clean(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Clean(in))
	}
}
