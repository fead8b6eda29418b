package helpers

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// parseBytes accepts b'...' / b"..." literals or a plain hex string.
func parseBytes(s string) ([]byte, error) {
	if len(s) >= 3 && s[0] == 'b' && (s[1] == '\'' || s[1] == '"') {
		quote := s[1]
		if s[len(s)-1] != quote {
			return nil, fmt.Errorf("unterminated byte literal")
		}
		return decodeByteLiteral(s[2:len(s)-1], quote)
	}
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	data, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("neither a byte literal nor hex: %w", err)
	}
	return data, nil
}

// decodeByteLiteral decodes the body of a quoted byte literal.
// Unknown escapes are kept verbatim, backslash included.
func decodeByteLiteral(body string, quote byte) ([]byte, error) {
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c >= 0x80 {
			return nil, fmt.Errorf("non-ASCII character at offset %d", i)
		}
		if c == quote {
			return nil, fmt.Errorf("unescaped quote at offset %d", i)
		}
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i == len(body) {
			return nil, fmt.Errorf("trailing backslash")
		}
		switch e := body[i]; e {
		case '\\', '\'', '"':
			out = append(out, e)
		case 'a':
			out = append(out, '\a')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'v':
			out = append(out, '\v')
		case '\n':
			// line continuation
		case 'x':
			if i+2 >= len(body) {
				return nil, fmt.Errorf("truncated \\x escape at offset %d", i-1)
			}
			b, err := hex.DecodeString(body[i+1 : i+3])
			if err != nil {
				return nil, fmt.Errorf("invalid \\x escape at offset %d", i-1)
			}
			out = append(out, b[0])
			i += 2
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v := int(e - '0')
			for n := 0; n < 2 && i+1 < len(body) && body[i+1] >= '0' && body[i+1] <= '7'; n++ {
				i++
				v = v*8 + int(body[i]-'0')
			}
			if v > 0xFF {
				return nil, fmt.Errorf("octal escape out of range at offset %d", i)
			}
			out = append(out, byte(v))
		default:
			out = append(out, '\\', e)
		}
	}
	return out, nil
}
