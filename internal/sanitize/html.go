package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy removes every tag. Used for names and keywords.
	StrictPolicy = bluemonday.StrictPolicy()

	// DescriptionPolicy keeps the inline formatting event descriptions are
	// rendered with in channel posts: b, i, em, strong, br and links.
	DescriptionPolicy = newDescriptionPolicy()
)

func newDescriptionPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "em", "strong", "br")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)

	return p
}

// Text strips all HTML and surrounding whitespace.
func Text(input string) string {
	return strings.TrimSpace(StrictPolicy.Sanitize(input))
}

func Description(input string) string {
	return DescriptionPolicy.Sanitize(input)
}
