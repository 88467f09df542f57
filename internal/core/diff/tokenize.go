package diff

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// tokenize splits text into alignment units for the given granularity.
// Concatenating the tokens always reproduces text exactly.
func tokenize(text string, g Granularity) []string {
	switch g {
	case GranularityLine:
		return splitLines(text)
	case GranularityChar:
		return splitRunes(text)
	default:
		return splitWords(text)
	}
}

func splitLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func splitRunes(text string) []string {
	out := make([]string, 0, len(text))
	for i, w := 0, 0; i < len(text); i += w {
		_, w = utf8.DecodeRuneInString(text[i:])
		out = append(out, text[i:i+w])
	}
	return out
}

type tokenClass uint8

const (
	classWord tokenClass = iota
	classSpace
	classOther
)

func classify(r rune) tokenClass {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
		return classWord
	case unicode.IsSpace(r):
		return classSpace
	default:
		return classOther
	}
}

// splitWords produces runs of word characters, runs of whitespace, and single
// punctuation runes. An apostrophe between two word characters stays inside
// the word so contractions ("don't") align as one token.
func splitWords(text string) []string {
	var out []string
	start := 0
	prev := classOther
	first := true

	for i, r := range text {
		c := classify(r)
		if (r == '\'' || r == '’') && prev == classWord {
			next, _ := utf8.DecodeRuneInString(text[i+utf8.RuneLen(r):])
			if next != utf8.RuneError && classify(next) == classWord {
				c = classWord
			}
		}

		if !first && (c != prev || c == classOther) {
			out = append(out, text[start:i])
			start = i
		}
		prev = c
		first = false
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// intern maps tokens of both sides to small integers so the alignment loop
// compares ints instead of strings.
func intern(a, b []string) ([]int, []int) {
	ids := make(map[string]int, len(a)+len(b))
	conv := func(toks []string) []int {
		out := make([]int, len(toks))
		for i, t := range toks {
			id, ok := ids[t]
			if !ok {
				id = len(ids)
				ids[t] = id
			}
			out[i] = id
		}
		return out
	}
	return conv(a), conv(b)
}
