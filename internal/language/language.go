// Package language validates the language pair submitted with a translation
// job before any work is queued.
package language

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrSameLanguage is returned when source and target resolve to the same tag.
var ErrSameLanguage = errors.New("source and target language are identical")

// Pair is a validated source/target language pair.
type Pair struct {
	Source language.Tag
	Target language.Tag
}

// ParsePair parses and validates a source/target language pair. Tags are
// matched on their base language, so "en-US" and "en-GB" count as identical.
func ParsePair(source, target string) (Pair, error) {
	src, err := language.Parse(source)
	if err != nil {
		return Pair{}, fmt.Errorf("invalid source language %q: %w", source, err)
	}
	dst, err := language.Parse(target)
	if err != nil {
		return Pair{}, fmt.Errorf("invalid target language %q: %w", target, err)
	}

	srcBase, _ := src.Base()
	dstBase, _ := dst.Base()
	if srcBase == dstBase {
		return Pair{}, ErrSameLanguage
	}

	return Pair{Source: src, Target: dst}, nil
}

// Name returns the English display name for a language code, falling back to
// the raw code when it cannot be parsed.
func Name(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return display.English.Tags().Name(tag)
}
