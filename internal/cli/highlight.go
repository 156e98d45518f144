// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/chatdesk/internal/export"
)

// lexerNames maps export formats to chroma lexers.
var lexerNames = map[export.Format]string{
	export.FormatJSON:     "json",
	export.FormatMarkdown: "markdown",
	export.FormatHTML:     "html",
	export.FormatText:     "plaintext",
}

// highlight writes source to w with terminal syntax highlighting. If
// highlighting fails the source is written unchanged.
func highlight(w io.Writer, source string, format export.Format) error {
	lexer := lexers.Get(lexerNames[format])
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		_, werr := io.WriteString(w, source)
		return werr
	}
	return formatter.Format(w, style, iterator)
}
