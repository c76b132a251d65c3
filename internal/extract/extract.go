// internal/extract/extract.go
// Package extract resolves free-form model output to a multiple-choice letter.
package extract

import (
	"regexp"
	"strings"
)

// Choices are the valid answer letters for every assessment question.
var Choices = []string{"A", "B", "C", "D"}

// Structured phrasings are trusted before any loose scan: free text often
// mentions several letters in explanatory asides, so precision wins over
// recall. Patterns run against the uppercased response.
var phrasePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:THE\s+)?ANSWER\s+IS\s*:?\s*([ABCD])\b`),
	regexp.MustCompile(`MY\s+ANSWER\s+IS\s*:?\s*([ABCD])\b`),
	regexp.MustCompile(`I\s+(?:CHOOSE|SELECT|PICK)\s+([ABCD])\b`),
	regexp.MustCompile(`I\s+WOULD\s+(?:CHOOSE|SELECT|PICK)\s+([ABCD])\b`),
	regexp.MustCompile(`OPTION\s+([ABCD])\b`),
	regexp.MustCompile(`"([ABCD])"`),
	regexp.MustCompile(`'([ABCD])'`),
}

var standaloneLetter = regexp.MustCompile(`\b([ABCD])\b`)

// Answer resolves raw model output to one of A, B, C or D.
// Resolution runs in strict priority order:
//
//  1. exact single letter after trimming
//  2. letter immediately followed by a non-letter ("A." / "B)")
//  3. recognized phrasings ("the answer is B", "I choose C", quoted letters)
//  4. first standalone letter anywhere in the text
//
// When nothing matches, ok is false and the caller keeps the raw text, which
// fails scoring gracefully downstream.
func Answer(raw string) (letter string, ok bool) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if normalized == "" {
		return "", false
	}

	if isChoice(normalized) {
		return normalized, true
	}

	if len(normalized) >= 2 && isChoice(normalized[:1]) && !isLetterByte(normalized[1]) {
		return normalized[:1], true
	}

	for _, pattern := range phrasePatterns {
		if m := pattern.FindStringSubmatch(normalized); m != nil {
			return m[1], true
		}
	}

	if m := standaloneLetter.FindStringSubmatch(normalized); m != nil {
		return m[1], true
	}

	return "", false
}

func isChoice(s string) bool {
	for _, c := range Choices {
		if s == c {
			return true
		}
	}
	return false
}

func isLetterByte(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
