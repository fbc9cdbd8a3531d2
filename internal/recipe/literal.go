package recipe

import (
	"fmt"
	"strings"
)

// parseStringLiteral decodes a Smalltalk string literal: outer quotes
// with '' decoding to a single quote. Only trailing whitespace may
// follow the closing quote.
func parseStringLiteral(s string) (string, error) {
	if len(s) == 0 || s[0] != '\'' {
		return "", fmt.Errorf("expected a string literal like 'value', got %q", s)
	}

	var out strings.Builder
	i := 1
	for i < len(s) {
		ch := s[i]
		if ch != '\'' {
			out.WriteByte(ch)
			i++
			continue
		}
		// Quote: either an escaped quote or the end of the literal.
		if i+1 < len(s) && s[i+1] == '\'' {
			out.WriteByte('\'')
			i += 2
			continue
		}
		if rest := strings.TrimSpace(s[i+1:]); rest != "" {
			return "", fmt.Errorf("unexpected text %q after string literal", rest)
		}
		return out.String(), nil
	}
	return "", fmt.Errorf("unterminated string literal %q", s)
}

// parseSymbolLiteral decodes a Smalltalk symbol literal of the form
// #'value'.
func parseSymbolLiteral(s string) (string, error) {
	if len(s) == 0 || s[0] != '#' {
		return "", fmt.Errorf("expected a symbol literal like #'value', got %q", s)
	}
	return parseStringLiteral(strings.TrimSpace(s[1:]))
}
