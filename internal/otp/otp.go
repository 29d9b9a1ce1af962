// Package otp finds numeric tokens that look like one-time passcodes.
package otp

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

// keywordPattern matches a code keyword (Russian or English) followed by
// 4 to 8 digits.
var keywordPattern = regexp.MustCompile(
	`(?i)(?:код|code|пароль|password|пин|pin|otp)[:\s\p{Z}]*([0-9]{4,8})`,
)

var digitRun = regexp.MustCompile(`[0-9]+`)

// Extract returns the distinct candidate codes found in text, most
// specific first: keyword-anchored codes, then standalone 6-digit
// tokens, then any standalone 4 to 8 digit token. Duplicates keep their
// first position.
func Extract(text string) []string {
	var codes []string
	seen := make(map[string]struct{})
	add := func(code string) {
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	for _, m := range keywordPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}

	tokens := standaloneTokens(text)
	for _, tok := range tokens {
		if len(tok) == 6 {
			add(tok)
		}
	}
	for _, tok := range tokens {
		if len(tok) >= 4 && len(tok) <= 8 {
			add(tok)
		}
	}

	return codes
}

// standaloneTokens returns the digit runs that are not glued to a letter
// or underscore on either side.
func standaloneTokens(text string) []string {
	var tokens []string
	for _, loc := range digitRun.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 {
			r, _ := utf8.DecodeLastRuneInString(text[:start])
			if isWordRune(r) {
				continue
			}
		}
		if end < len(text) {
			r, _ := utf8.DecodeRuneInString(text[end:])
			if isWordRune(r) {
				continue
			}
		}
		tokens = append(tokens, text[start:end])
	}
	return tokens
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
