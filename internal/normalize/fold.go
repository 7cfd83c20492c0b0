package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// substitutions covers letters and typography that compatibility
// decomposition leaves outside ASCII.
var substitutions = map[rune]string{
	'œ': "oe", 'Œ': "OE",
	'æ': "ae", 'Æ': "AE",
	'ß': "ss",
	'ø': "o", 'Ø': "O",
	'ł': "l", 'Ł': "L",
	'đ': "d", 'Đ': "D",
	'ı': "i",
	'’': "'", '‘': "'", '‚': "'",
	'“': "\"", '”': "\"", '„': "\"", '«': "\"", '»': "\"",
	'–': "-", '—': "-", '−': "-",
	'…': "...",
	'·': ".",
}

// fold transliterates s to ASCII. Combining marks are dropped after
// compatibility decomposition, known letters are substituted and anything
// left outside ASCII becomes a space. Dots survive so acronyms can be
// collapsed afterwards.
func fold(s string) string {
	// transform chains keep state, so one is built per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	decomposed, _, err := transform.String(t, s)
	if err != nil {
		decomposed = s
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case r <= unicode.MaxASCII:
			b.WriteRune(r)
		case substitutions[r] != "":
			b.WriteString(substitutions[r])
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// collapseAcronyms joins runs such as "t.e.s.t." into "test" and turns
// every other dot into a separator.
func collapseAcronyms(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if i == 0 || !isAlnum(s[i-1]) {
			if end, ok := acronymEnd(s, i); ok {
				for k := i; k < end; k++ {
					if s[k] != '.' {
						b.WriteByte(s[k])
					}
				}
				i = end
				continue
			}
		}
		if s[i] == '.' {
			b.WriteByte(' ')
		} else {
			b.WriteByte(s[i])
		}
		i++
	}
	return b.String()
}

// acronymEnd returns the end offset of at least two single character
// "x." groups starting at i, optionally followed by one bare character.
func acronymEnd(s string, i int) (int, bool) {
	pairs := 0
	j := i
	for j+1 < len(s) && isAlnum(s[j]) && s[j+1] == '.' {
		pairs++
		j += 2
	}
	if pairs < 2 {
		return 0, false
	}
	if j < len(s) && isAlnum(s[j]) && (j+1 == len(s) || !isAlnum(s[j+1])) {
		j++
	}
	if j < len(s) && isAlnum(s[j]) {
		return 0, false
	}
	return j, true
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
