package pdf

import (
	"os"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// Extractor reads positioned text runs from PDF files.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// GetInfo reports page count, size, and whether the file contains
// extractable text.
func (e *Extractor) GetInfo(path string) (*Info, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewError(ErrNotFound, "file does not exist", err)
		}
		return nil, NewError(ErrInvalid, "cannot access file", err)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, NewError(ErrInvalid, "cannot open PDF", err)
	}
	defer f.Close()

	info := &Info{
		PageCount: r.NumPage(),
		FileSize:  fileInfo.Size(),
	}

	// Probe the first few pages for text. Scanned PDFs have none.
	maxPages := 3
	if info.PageCount < maxPages {
		maxPages = info.PageCount
	}
	textLen := 0
	for pageNum := 1; pageNum <= maxPages && textLen <= 50; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, c := range content {
			if !unicode.IsSpace(c) {
				textLen++
			}
		}
	}
	info.HasText = textLen > 0

	return info, nil
}

// ExtractRuns extracts one TextRun per visual row, filtered of PDF operator
// garbage, in natural reading order.
func (e *Extractor) ExtractRuns(path string) ([]TextRun, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, NewError(ErrNotFound, "file does not exist", err)
		}
		return nil, NewError(ErrInvalid, "cannot access file", err)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, NewError(ErrInvalid, "cannot open PDF", err)
	}
	defer f.Close()

	var runs []TextRun
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			// Damaged pages are skipped, not fatal.
			continue
		}

		for _, row := range rows {
			run, ok := mergeRow(pageNum, row)
			if ok {
				runs = append(runs, run)
			}
		}
	}

	if len(runs) == 0 {
		return nil, NewError(ErrNoText, "no extractable text", nil)
	}

	SortRuns(runs)
	return runs, nil
}

// mergeRow merges the texts of one row into a single run with position
// bounds, rejecting rows that are PDF operator garbage.
func mergeRow(pageNum int, row *pdf.Row) (TextRun, bool) {
	if len(row.Content) == 0 {
		return TextRun{}, false
	}

	var sb strings.Builder
	var minX, maxX, minY, maxY, totalFontSize float64
	first := true
	count := 0

	for _, text := range row.Content {
		if text.S == "" || isOperatorCode(text.S) {
			continue
		}
		sb.WriteString(text.S)
		count++
		totalFontSize += text.FontSize

		if first {
			minX, maxX, minY, maxY = text.X, text.X, text.Y, text.Y
			first = false
			continue
		}
		if text.X < minX {
			minX = text.X
		}
		if text.X > maxX {
			maxX = text.X
		}
		if text.Y < minY {
			minY = text.Y
		}
		if text.Y > maxY {
			maxY = text.Y
		}
	}

	merged := strings.TrimSpace(sb.String())
	if merged == "" || isOperatorCode(merged) || hasExcessiveNonPrintable(merged) {
		return TextRun{}, false
	}

	fontSize := 10.0
	if count > 0 && totalFontSize > 0 {
		fontSize = totalFontSize / float64(count)
	}

	width := float64(len(merged)) * fontSize * 0.5
	if actual := maxX - minX + fontSize; actual > width {
		width = actual
	}
	height := fontSize * 1.2

	return TextRun{
		Page:     pageNum,
		Text:     merged,
		X:        minX,
		Y:        minY,
		Width:    width,
		Height:   height,
		FontSize: fontSize,
	}, true
}

// psOperators are PostScript/PDF content-stream operators that occasionally
// leak into extracted text.
var psOperators = []string{
	"currentpoint", "gsave", "grestore", "newpath", "closepath",
	"setrgbcolor", "setgray", "setlinewidth", "showpage",
	"moveto", "lineto", "curveto", "stroke", "fill",
}

// isOperatorCode reports whether text looks like content-stream operator
// garbage rather than document text.
func isOperatorCode(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)

	if (strings.Contains(text, " def ") || strings.HasSuffix(text, " def")) && strings.Contains(text, "/") {
		return true
	}
	if strings.Contains(lower, "null def") {
		return true
	}
	if strings.Contains(text, "@stx") || strings.Contains(text, "@etx") {
		return true
	}
	if strings.Contains(lower, "/burl") || strings.Contains(lower, "burl@") {
		return true
	}
	for _, op := range psOperators {
		if strings.Contains(lower, op) {
			return true
		}
	}

	// Several /Name tokens in a row is operator syntax, unless it is a URL.
	if !strings.Contains(text, "://") && !strings.Contains(lower, "http") {
		nameCount := 0
		for _, word := range strings.Fields(text) {
			if len(word) > 1 && word[0] == '/' && isIdentifier(word[1:]) {
				nameCount++
			}
		}
		if nameCount >= 3 {
			return true
		}
	}

	return false
}

func isIdentifier(s string) bool {
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '@') {
			return false
		}
	}
	return true
}

// hasExcessiveNonPrintable rejects rows where more than 10% of the bytes are
// control characters, which indicates a broken font encoding.
func hasExcessiveNonPrintable(text string) bool {
	if text == "" {
		return false
	}
	nonPrintable := 0
	for _, r := range text {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			nonPrintable++
		}
		if r >= 0x7F && r <= 0x9F {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(text)) > 0.1
}
