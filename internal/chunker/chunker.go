// Package chunker splits long text into bounded-size units on paragraph and
// sentence boundaries so each unit stays under the translation provider's
// request-size ceiling.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// ParagraphSeparator joins paragraphs within a chunk and is the boundary the
// reconstructor reinserts between chunks.
const ParagraphSeparator = "\n\n"

// Split divides text into chunks of at most maxChars characters. Paragraphs
// are accumulated until the next one would overflow; a paragraph that alone
// exceeds the limit is split again on sentence boundaries. A single sentence
// longer than maxChars is passed through whole, the one case where a chunk
// may exceed the limit.
func Split(text string, maxChars int) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0

	flush := func() {
		if bufLen > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
			bufLen = 0
		}
	}

	appendUnit := func(unit, sep string) {
		unitLen := utf8.RuneCountInString(unit)
		sepLen := 0
		if bufLen > 0 {
			sepLen = utf8.RuneCountInString(sep)
		}
		if bufLen > 0 && bufLen+sepLen+unitLen > maxChars {
			flush()
		}
		if bufLen > 0 {
			buf.WriteString(sep)
			bufLen += sepLen
		}
		buf.WriteString(unit)
		bufLen += unitLen
	}

	for _, para := range splitParagraphs(text) {
		if utf8.RuneCountInString(para) <= maxChars {
			appendUnit(para, ParagraphSeparator)
			continue
		}

		// Oversize paragraph: fall back to sentence boundaries. Flush first so
		// the paragraph starts its own chunk sequence.
		flush()
		for _, sentence := range splitSentences(para) {
			appendUnit(sentence, " ")
		}
		flush()
	}
	flush()

	return chunks
}

// splitParagraphs splits on blank lines, dropping empty paragraphs.
func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	paras := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// sentenceTerminators end a sentence when followed by whitespace or the end
// of the text.
var sentenceTerminators = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
}

// splitSentences splits a paragraph into sentences, keeping terminators
// attached to their sentence.
func splitSentences(para string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(para)
	for i, r := range runes {
		current.WriteRune(r)
		if !sentenceTerminators[r] {
			continue
		}
		// Terminator counts only at end-of-text or before whitespace, so
		// "3.14" and "e.g." stay intact more often than not.
		atEnd := i == len(runes)-1
		beforeSpace := !atEnd && (runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t')
		if atEnd || beforeSpace {
			s := strings.TrimSpace(current.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
