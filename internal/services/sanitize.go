package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Clean strips OCR noise from recognized text. It is deterministic and
// idempotent: Clean(Clean(s)) == Clean(s).
//
// Steps, in order: drop runs of < > | =; keep only letters, ASCII digits,
// the punctuation , . ¡ ! ¿ ? ( ) and whitespace; remove isolated single
// ASCII letters; collapse whitespace and trim.
func Clean(text string) string {
	text = norm.NFC.String(text)
	text = stripNoise(text)
	text = norm.NFC.String(keepAllowed(text))
	text = dropSingleLetters(text)
	return strings.Join(strings.Fields(text), " ")
}

func stripNoise(text string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '|', '=':
			return -1
		}
		return r
	}, text)
}

func keepAllowed(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), r >= '0' && r <= '9', unicode.IsSpace(r):
			return r
		}
		switch r {
		case ',', '.', '¡', '!', '¿', '?', '(', ')':
			return r
		}
		return -1
	}, text)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// dropSingleLetters removes tokens made of exactly one ASCII letter, where a
// token is a maximal run of letters and digits.
func dropSingleLetters(text string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(runes); {
		if !isWordRune(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && isWordRune(runes[j]) {
			j++
		}
		if !(j-i == 1 && isASCIILetter(runes[i])) {
			b.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return b.String()
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
