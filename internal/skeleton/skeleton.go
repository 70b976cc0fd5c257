// Package skeleton strips translatable text out of WordprocessingML markup,
// leaving a reusable skeleton with numbered position markers, and rebuilds
// the markup once the extracted text has been translated. The skeleton and
// its delimiter are in-flight artifacts only; they are never persisted.
package skeleton

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrDelimiterExhausted is returned when every candidate delimiter glyph
// already occurs in the source markup. Retrying cannot fix this, so callers
// must treat it as fatal for the document.
var ErrDelimiterExhausted = errors.New("no usable delimiter: all candidate glyphs occur in the document")

// ErrNoTranslatableText is returned when the markup contains no non-empty
// text runs.
var ErrNoTranslatableText = errors.New("document contains no translatable text")

// delimiterPalette is the ordered set of candidate delimiter glyphs. The
// first glyph absent from the entire input wins, so the choice is
// deterministic for a given document.
var delimiterPalette = []rune{'§', '¤', '¦', '‡', '†', '¬', '¥', '¢', '«', '»'}

// textRunPattern matches the content of <w:t> elements, including ones
// carrying attributes such as xml:space="preserve".
var textRunPattern = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)

// Map holds the output of Strip: the marker skeleton, the extracted
// delimited text, and the delimiter that separates segments.
type Map struct {
	Skeleton  string
	Text      string
	Delimiter rune
}

// Strip extracts every non-empty text run from the markup. The returned
// Map.Text joins the run contents with the chosen delimiter, including a
// leading and trailing delimiter so a translated response splits cleanly
// even if the provider trims boundary whitespace. Map.Skeleton is the markup
// with each run content replaced by its numbered marker.
func Strip(markup string) (*Map, error) {
	delim, err := chooseDelimiter(markup)
	if err != nil {
		return nil, err
	}

	matches := textRunPattern.FindAllStringSubmatchIndex(markup, -1)

	type run struct {
		start, end int // content span within markup
		ordinal    int
	}
	var runs []run
	var texts []string
	ordinal := 0
	for _, m := range matches {
		content := markup[m[2]:m[3]]
		if strings.TrimSpace(content) == "" {
			continue
		}
		ordinal++
		runs = append(runs, run{start: m[2], end: m[3], ordinal: ordinal})
		texts = append(texts, unescapeXML(content))
	}

	if len(runs) == 0 {
		return nil, ErrNoTranslatableText
	}

	d := string(delim)
	text := d + strings.Join(texts, d) + d

	// Replace run contents in reverse document order so earlier offsets are
	// not invalidated by length changes.
	skeleton := markup
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		skeleton = skeleton[:r.start] + marker(delim, r.ordinal) + skeleton[r.end:]
	}

	return &Map{Skeleton: skeleton, Text: text, Delimiter: delim}, nil
}

// Rebuild splits the translated text on the delimiter and reinserts each
// segment at its marker, XML-escaped. When the provider returned fewer
// segments than were sent, the affected runs keep their original content
// instead of failing the whole document.
func (m *Map) Rebuild(translated string) (string, error) {
	originals := splitSegments(m.Text, m.Delimiter)
	segments := splitSegments(translated, m.Delimiter)

	count := MarkerCount(m.Skeleton, m.Delimiter)
	if count != len(originals) {
		return "", fmt.Errorf("skeleton has %d markers but source text has %d segments", count, len(originals))
	}

	// Descending ordinal order; markers are delimiter-terminated so ordinal 1
	// can never match inside ordinal 12, but the order keeps replacement
	// behavior independent of that guarantee.
	result := m.Skeleton
	for ordinal := count; ordinal >= 1; ordinal-- {
		var segment string
		if ordinal <= len(segments) && segments[ordinal-1] != "" {
			segment = segments[ordinal-1]
		} else {
			segment = originals[ordinal-1]
		}
		result = strings.ReplaceAll(result, marker(m.Delimiter, ordinal), escapeXML(segment))
	}

	return result, nil
}

// MarkerCount counts the numbered markers present in a skeleton. Markers are
// assigned consecutively from 1, so probing stops at the first gap.
func MarkerCount(skeleton string, delim rune) int {
	count := 0
	for i := 1; ; i++ {
		if !strings.Contains(skeleton, marker(delim, i)) {
			break
		}
		count++
	}
	return count
}

// marker builds the placeholder for the given ordinal. The trailing
// delimiter anchors the numeral so "§1§" never matches inside "§12§".
func marker(delim rune, ordinal int) string {
	d := string(delim)
	return d + strconv.Itoa(ordinal) + d
}

func chooseDelimiter(markup string) (rune, error) {
	for _, candidate := range delimiterPalette {
		if !strings.ContainsRune(markup, candidate) {
			return candidate, nil
		}
	}
	return 0, ErrDelimiterExhausted
}

// splitSegments splits delimited text into its segments, discarding the
// whitespace-only fragments produced by the boundary delimiters. Segment
// content is kept verbatim; runs separated by xml:space="preserve" carry
// meaningful boundary whitespace.
func splitSegments(text string, delim rune) []string {
	parts := strings.Split(text, string(delim))
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		segments = append(segments, p)
	}
	return segments
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

var xmlUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

func escapeXML(s string) string   { return xmlEscaper.Replace(s) }
func unescapeXML(s string) string { return xmlUnescaper.Replace(s) }
