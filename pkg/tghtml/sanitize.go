package tghtml

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// allowedTags is the tag subset Telegram accepts for ParseMode="HTML".
var allowedTags = map[string]bool{
	"b": true, "strong": true,
	"i": true, "em": true,
	"u": true, "ins": true,
	"s": true, "strike": true, "del": true,
	"code": true, "pre": true,
	"a":          true,
	"tg-spoiler": true,
	"blockquote": true,
}

var (
	tagPattern  = regexp.MustCompile(`<(/?)(\w[\w-]*)((?:\s+[^>]*)?)>`)
	hrefPattern = regexp.MustCompile(`href\s*=\s*["']([^"']*)["']`)
	langPattern = regexp.MustCompile(`language\s*=\s*["']([^"']*)["']`)
)

// Sanitize filters HTML down to Telegram's supported subset.
//
// Unknown tags are removed (their content is kept). For <a> the href
// attribute is preserved; an <a> opener without href is dropped while its
// closing tag passes through untouched. For <pre> the language attribute is
// preserved. All other attributes are stripped.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	return tagPattern.ReplaceAllStringFunc(s, func(tag string) string {
		m := tagPattern.FindStringSubmatch(tag)
		slash, name, attrs := m[1], strings.ToLower(m[2]), m[3]

		if !allowedTags[name] {
			return ""
		}
		if name == "a" && slash == "" {
			if hm := hrefPattern.FindStringSubmatch(attrs); hm != nil {
				return `<a href="` + hm[1] + `">`
			}
			return ""
		}
		if name == "pre" && slash == "" {
			if lm := langPattern.FindStringSubmatch(attrs); lm != nil {
				return `<pre language="` + lm[1] + `">`
			}
		}
		return "<" + slash + name + ">"
	})
}

// Esc escapes plain text for ParseMode="HTML".
func Esc(s string) string { return html.EscapeString(s) }

// Len reports the length of s the way Telegram counts it for limits.
func Len(s string) int { return utf8.RuneCountInString(s) }
