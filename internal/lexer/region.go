package lexer

import (
	"go/token"

	"github.com/conneroisu/kiln/internal/diag"
)

// Region is one html!{...} literal inside a .kiln file.
type Region struct {
	// Index is the ordinal of the region in its file.
	Index int
	// Span covers the whole literal from "html" to the closing brace.
	Span diag.Span
	// Body is the span between the braces.
	Body diag.Span
}

// Regions finds every html!{...} literal in a Go source file.
func Regions(src []byte) ([]Region, diag.List) {
	raw, _ := scan(src, diag.Span{Start: 0, End: len(src)})

	var (
		regions []Region
		diags   diag.List
	)
	for i := 0; i+2 < len(raw); i++ {
		if raw[i].tok != token.IDENT || raw[i].lit != "html" {
			continue
		}
		if raw[i+1].tok != token.NOT || raw[i+1].span.Start != raw[i].span.End {
			continue
		}
		if raw[i+2].tok != token.LBRACE {
			continue
		}
		end, ok := matchBrace(raw, i+2)
		if !ok {
			diags = append(diags, diag.New("lex/unclosed-brace", raw[i+2].span,
				"unclosed html!{ literal", "add the closing '}' of the template"))
			break
		}
		regions = append(regions, Region{
			Index: len(regions),
			Span:  diag.Span{Start: raw[i].span.Start, End: raw[end].span.End},
			Body:  diag.Span{Start: raw[i+2].span.End, End: raw[end].span.Start},
		})
		i = end
	}
	return regions, diags
}

// Blank returns a copy of src in which every region is replaced by a nil
// expression padded with spaces. Newlines are kept so positions reported
// by go/parser still match the original file.
func Blank(src []byte, regions []Region) []byte {
	out := make([]byte, len(src))
	copy(out, src)
	for _, r := range regions {
		for i := r.Span.Start; i < r.Span.End; i++ {
			if out[i] != '\n' {
				out[i] = ' '
			}
		}
		copy(out[r.Span.Start:], "nil")
	}
	return out
}
