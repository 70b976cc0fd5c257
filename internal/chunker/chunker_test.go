package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitEmpty(t *testing.T) {
	if got := Split("", 100); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	if got := Split("   \n\n  ", 100); got != nil {
		t.Errorf("expected nil for whitespace input, got %v", got)
	}
}

func TestSplitFitsInOneChunk(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph."
	chunks := Split(text, 1000)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("chunk altered text: %q", chunks[0])
	}
}

func TestSplitParagraphBoundaries(t *testing.T) {
	a := strings.Repeat("a", 40)
	b := strings.Repeat("b", 40)
	c := strings.Repeat("c", 40)
	text := a + "\n\n" + b + "\n\n" + c

	chunks := Split(text, 90)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != a+"\n\n"+b {
		t.Errorf("first chunk = %q", chunks[0])
	}
	if chunks[1] != c {
		t.Errorf("second chunk = %q", chunks[1])
	}
}

func TestSplitCoversAllText(t *testing.T) {
	paras := []string{
		"The quick brown fox jumps over the lazy dog. It was a bright day.",
		"She sells sea shells by the sea shore. The shells she sells are sea shells.",
		"A short one.",
		strings.Repeat("Lorem ipsum dolor sit amet. ", 10),
	}
	text := strings.Join(paras, "\n\n")

	for _, max := range []int{30, 50, 80, 200, 10000} {
		chunks := Split(text, max)
		joined := strings.Join(chunks, " ")
		// Every word survives splitting regardless of the limit.
		for _, word := range strings.Fields(text) {
			if !strings.Contains(joined, word) {
				t.Errorf("max=%d: word %q missing from chunks", max, word)
			}
		}
	}
}

func TestSplitOversizeParagraphFallsBackToSentences(t *testing.T) {
	para := "One sentence here. Another sentence follows. A third closes it out."
	chunks := Split(para+"\n\n"+para, 40)

	for i, c := range chunks {
		if utf8.RuneCountInString(c) > 40 {
			t.Errorf("chunk %d exceeds limit: %d runes", i, utf8.RuneCountInString(c))
		}
	}
	if len(chunks) < 2 {
		t.Fatalf("expected sentence-level splitting, got %d chunks", len(chunks))
	}
}

func TestSplitUnsplittableSentencePassesThrough(t *testing.T) {
	long := strings.Repeat("x", 120)
	chunks := Split(long, 50)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != long {
		t.Errorf("unsplittable sentence altered")
	}
}

func TestSplitCJKTerminators(t *testing.T) {
	para := "这是第一句话。 这是第二句话。 这是第三句话。"
	chunks := Split(para+"\n\n"+strings.Repeat("填", 30), 12)
	if len(chunks) < 3 {
		t.Fatalf("expected CJK sentence splitting, got %d chunks: %v", len(chunks), chunks)
	}
	for i, c := range chunks[:3] {
		if !strings.HasSuffix(c, "。") {
			t.Errorf("chunk %d does not end on terminator: %q", i, c)
		}
	}
}

func TestSplitDecimalNotSplit(t *testing.T) {
	para := "The value of pi is 3.14159 to five places. " + strings.Repeat("Padding sentence here. ", 5)
	chunks := Split(para, 45)
	joined := strings.Join(chunks, " ")
	if !strings.Contains(joined, "3.14159") {
		t.Errorf("decimal broken across chunks: %v", chunks)
	}
}

func TestSplitNormalizesCRLF(t *testing.T) {
	chunks := Split("first\r\n\r\nsecond", 1000)
	if len(chunks) != 1 || chunks[0] != "first\n\nsecond" {
		t.Errorf("CRLF not normalized: %v", chunks)
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("A sentence to repeat. ", 40)
	first := Split(text, 100)
	for i := 0; i < 5; i++ {
		again := Split(text, 100)
		if len(again) != len(first) {
			t.Fatalf("chunk count changed between runs")
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("chunk %d changed between runs", j)
			}
		}
	}
}
