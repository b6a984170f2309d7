// Package query turns raw search text into per-category bleve queries and
// maps index hits back to search results.
package query

import (
	"strings"
	"unicode"
)

// Keyword is one search token, optionally qualified with a field name
// ("property:text").
type Keyword struct {
	Field string
	Text  string
}

// IsBlank reports whether the keyword has no searchable text.
func (k Keyword) IsBlank() bool {
	return strings.TrimSpace(k.Text) == ""
}

// HasField reports whether the keyword is explicitly field-qualified.
func (k Keyword) HasField() bool {
	return k.Field != ""
}

// String returns the keyword as it would be typed.
func (k Keyword) String() string {
	if k.HasField() {
		return k.Field + ":" + k.Text
	}
	return k.Text
}

// Term is either a Keyword or a CompoundKeyword.
type Term interface {
	keywords() []Keyword
}

func (k Keyword) keywords() []Keyword { return []Keyword{k} }

// CompoundKeyword is a group of terms that all have to match.
// Groups may nest.
type CompoundKeyword struct {
	Parts []Term
}

func (c CompoundKeyword) keywords() []Keyword {
	var out []Keyword
	for _, p := range c.Parts {
		if p != nil {
			out = append(out, p.keywords()...)
		}
	}
	return out
}

// Flatten returns the keywords of the group and its nested groups in order.
func (c CompoundKeyword) Flatten() []Keyword {
	return c.keywords()
}

// InputHandler receives the keywords parsed from search text.
type InputHandler interface {
	HandleKeyword(k Keyword)
	HandleCompound(c CompoundKeyword)
}

// Dispatch parses text and feeds the result to h: a single keyword goes to
// HandleKeyword, several to HandleCompound. Blank text dispatches nothing.
func Dispatch(text string, h InputHandler) {
	kws := ParseKeywords(text)
	switch len(kws) {
	case 0:
		return
	case 1:
		h.HandleKeyword(kws[0])
	default:
		parts := make([]Term, len(kws))
		for i, k := range kws {
			parts[i] = k
		}
		h.HandleCompound(CompoundKeyword{Parts: parts})
	}
}

// ParseKeywords splits text into keywords. Whitespace separates keywords
// except inside double quotes, which are kept in the keyword text. A
// leading run of field characters followed by ':' qualifies the keyword,
// unless it is the scheme of an IRI.
// An unterminated quote extends to the end of the input.
func ParseKeywords(text string) []Keyword {
	var (
		out     []Keyword
		cur     strings.Builder
		inQuote bool
	)
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		out = append(out, splitField(cur.String()))
		cur.Reset()
	}

	for _, r := range text {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

// splitField separates a "field:text" token. A scheme followed by "//"
// starts an IRI and does not qualify the token.
func splitField(tok string) Keyword {
	i := strings.IndexByte(tok, ':')
	if i <= 0 || strings.HasPrefix(tok[i+1:], "//") {
		return Keyword{Text: tok}
	}
	for _, r := range tok[:i] {
		if !isFieldRune(r) {
			return Keyword{Text: tok}
		}
	}
	return Keyword{Field: tok[:i], Text: tok[i+1:]}
}

func isFieldRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.'
}
