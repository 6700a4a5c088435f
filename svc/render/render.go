// Package render turns a paste body into highlighted HTML plus the
// stylesheet to go with it. It is deliberately forgiving: a language the
// highlighter does not know falls back to escaped plain text, never an
// error, since the value is stored opaquely and may predate validation.
package render

import (
	stdhtml "html"
	"html/template"
	"strings"

	"github.com/alecthomas/chroma/v2"
	htmlfmt "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const styleName = "friendly"

type Result struct {
	HTML template.HTML
	CSS  template.CSS
}

func Highlight(body, language string) Result {
	lexer := lexers.Get(language)
	if lexer == nil {
		return plain(body)
	}
	lexer = chroma.Coalesce(lexer)
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	formatter := htmlfmt.New(
		htmlfmt.WithClasses(true),
		htmlfmt.WithLineNumbers(true),
		htmlfmt.ClassPrefix("src-"),
	)
	iterator, err := lexer.Tokenise(nil, body)
	if err != nil {
		return plain(body)
	}
	var markup strings.Builder
	if err := formatter.Format(&markup, style, iterator); err != nil {
		return plain(body)
	}
	var css strings.Builder
	if err := formatter.WriteCSS(&css, style); err != nil {
		return Result{HTML: template.HTML(markup.String())}
	}
	return Result{
		HTML: template.HTML(markup.String()),
		CSS:  template.CSS(css.String()),
	}
}

func plain(body string) Result {
	return Result{HTML: template.HTML("<pre>" + stdhtml.EscapeString(body) + "</pre>")}
}

// Languages enumerates the grammar names offered by the create form.
func Languages() []string {
	return lexers.Names(false)
}

// Known reports whether the highlighter recognizes the language name.
func Known(language string) bool {
	return lexers.Get(language) != nil
}
