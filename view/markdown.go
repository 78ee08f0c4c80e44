package view

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
)

var md = goldmark.New()

// Markdown renders src as HTML. Raw HTML in src is not passed through.
// Input goldmark cannot convert is returned escaped.
func Markdown(src string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return html.EscapeString(src)
	}
	return buf.String()
}
