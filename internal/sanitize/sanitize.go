// Package sanitize holds the process-wide HTML cleaning policy applied to
// field content before it is stored next to reviewed rows or diffed in the
// history views. Clean is idempotent.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = buildPolicy()

// Clean sanitizes untrusted field HTML against the fixed allow-list.
func Clean(html string) string {
	return policy.Sanitize(html)
}

var textElements = []string{
	"a", "b", "i", "u", "em", "strong", "s", "span", "div", "p", "br", "hr",
	"ul", "ol", "li", "sub", "sup", "code", "pre", "blockquote",
	"table", "thead", "tbody", "tr", "td", "th",
	"h1", "h2", "h3", "h4", "h5", "h6", "img", "audio", "source",
}

var styleProperties = []string{
	"color", "background-color", "font-size", "font-weight", "text-align",
	"text-decoration", "line-height", "margin", "padding",
	"border-width", "border-style", "border-color",
}

var (
	hexColor        = regexp.MustCompile(`^#(?:[0-9a-f]{3}|[0-9a-f]{4}|[0-9a-f]{6}|[0-9a-f]{8})$`)
	functionalColor = regexp.MustCompile(`^(?:rgb|rgba|hsl|hsla)\([0-9,.%/\s-]+\)$`)
	plainValue      = regexp.MustCompile(`^[a-zA-Z0-9 .,%#-]+$`)
)

// The 16 CSS1 named colors plus the three extra keywords clients send.
var namedColors = map[string]bool{
	"aqua": true, "black": true, "blue": true, "fuchsia": true,
	"gray": true, "green": true, "lime": true, "maroon": true,
	"navy": true, "olive": true, "purple": true, "red": true,
	"silver": true, "teal": true, "white": true, "yellow": true,
	"currentcolor": true, "transparent": true, "rebeccapurple": true,
}

func validColor(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if namedColors[v] {
		return true
	}
	return hexColor.MatchString(v) || functionalColor.MatchString(v)
}

func validPlain(value string) bool {
	return plainValue.MatchString(strings.TrimSpace(value))
}

func buildPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(textElements...)
	p.AllowStandardURLs()
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "width", "height").OnElements("img")
	p.AllowAttrs("src", "type").OnElements("audio", "source")
	p.AllowAttrs("controls").OnElements("audio")
	p.AllowAttrs("class").Globally()

	for _, prop := range styleProperties {
		switch prop {
		case "color", "background-color", "border-color":
			p.AllowStyles(prop).MatchingHandler(validColor).Globally()
		default:
			p.AllowStyles(prop).MatchingHandler(validPlain).Globally()
		}
	}
	return p
}
