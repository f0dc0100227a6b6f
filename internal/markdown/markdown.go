// Package markdown renders the small markdown subset the AI tends to
// produce (headers, bold, dashed lists) into styled HTML fragments.
package markdown

import (
	"html"
	"regexp"
	"strings"
)

var (
	h3Re   = regexp.MustCompile(`(?m)^### (.*)$`)
	h2Re   = regexp.MustCompile(`(?m)^## (.*)$`)
	h1Re   = regexp.MustCompile(`(?m)^# (.*)$`)
	boldRe = regexp.MustCompile(`\*\*(.*?)\*\*`)
	listRe = regexp.MustCompile(`(?m)^- (.*)$`)
)

// ToHTML converts text to an HTML fragment. Input is escaped before any
// markup is applied, so raw HTML in a message never reaches the output.
func ToHTML(text string) string {
	if text == "" {
		return ""
	}

	out := html.EscapeString(text)
	out = h3Re.ReplaceAllString(out, `<h3 class="font-bold text-lg my-2">$1</h3>`)
	out = h2Re.ReplaceAllString(out, `<h2 class="font-bold text-xl my-3">$1</h2>`)
	out = h1Re.ReplaceAllString(out, `<h1 class="font-bold text-2xl my-4">$1</h1>`)
	out = boldRe.ReplaceAllString(out, `<strong>$1</strong>`)
	out = listRe.ReplaceAllString(out, `<li class="ml-4 list-disc">$1</li>`)
	out = strings.ReplaceAll(out, "\n", "<br>")
	return out
}
