package utils

import (
	"html"
	"regexp"
	"strings"
)

var mergeTagPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderMergeTags replaces every {{tag}} with its value from fields.
// Tags without a value render as an empty string.
func RenderMergeTags(tmpl string, fields map[string]string) string {
	return mergeTagPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := mergeTagPattern.FindStringSubmatch(match)[1]
		return fields[name]
	})
}

// BuildHTMLBody turns a plain-text step body into the HTML that is sent,
// appending the sender signature when one is set. Text is escaped before
// line breaks become <br>.
func BuildHTMLBody(body, signature string) string {
	text := strings.ReplaceAll(body, "\r\n", "\n")
	if signature != "" {
		text += "\n\n" + strings.ReplaceAll(signature, "\r\n", "\n")
	}
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}
