package ui

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const highlightStyle = "monokai"

// highlightCode returns source colourised for a 256-colour terminal, choosing
// the lexer from filename. The plain source is returned if highlighting fails.
func highlightCode(source, filename string) string {
	lexer := lexers.Match(filename)
	if lexer == nil {
		lexer = lexers.Analyse(source)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(highlightStyle)
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return source
	}

	it, err := lexer.Tokenise(nil, source)
	if err != nil {
		return source
	}
	var b strings.Builder
	if err := formatter.Format(&b, style, it); err != nil {
		return source
	}
	return strings.TrimRight(b.String(), "\n")
}
