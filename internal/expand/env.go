// Package expand substitutes ${env.KEY} expressions in configuration text.
package expand

import (
	"os"
	"strings"
	"unicode"
)

const envPrefix = "${env."

// Env replaces every ${env.KEY} in text with the value of environment
// variable KEY; unset variables expand to "". Expressions with an invalid key
// or without a closing brace are kept verbatim.
func Env(text string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, envPrefix)
		if start < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:start])
		rest := text[start+len(envPrefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(text[start:])
			return b.String()
		}
		key := rest[:end]
		if !isKey(key) {
			b.WriteString(envPrefix)
			text = rest
			continue
		}
		b.WriteString(os.Getenv(key))
		text = rest[end+1:]
	}
}

func isKey(key string) bool {
	for _, r := range key {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}
