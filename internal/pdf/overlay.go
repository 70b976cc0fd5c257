package pdf

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"doc-translator/internal/logger"
)

// minFontSize is the smallest font the overlay will shrink to before
// wrapping overflow onto additional lines.
const minFontSize = 6.0

// Overlay writes a translated copy of a PDF: the original file is copied to
// outputPath so pages, images, and graphics survive, then each cluster's
// translated text is stamped over its original position with a white
// background covering the source text.
type Overlay struct{}

// NewOverlay creates an Overlay.
func NewOverlay() *Overlay {
	return &Overlay{}
}

// Render stamps translations[i] at clusters[i]'s position. Clusters with an
// empty translation keep their original appearance.
func (o *Overlay) Render(inputPath, outputPath string, clusters []Cluster, translations []string) error {
	if len(translations) != len(clusters) {
		return NewError(ErrGenerateFailed, "translation count does not match cluster count", nil)
	}

	if err := copyFile(inputPath, outputPath); err != nil {
		return NewError(ErrGenerateFailed, "cannot copy original PDF", err)
	}

	stamped := 0
	for i, cluster := range clusters {
		text := strings.TrimSpace(translations[i])
		if text == "" {
			continue
		}
		if err := o.stampCluster(outputPath, cluster, text); err != nil {
			logger.Warn("failed to stamp cluster",
				logger.Int("page", cluster.Page),
				logger.Err(err))
			continue
		}
		stamped++
	}

	if info, err := os.Stat(outputPath); err != nil || info.Size() == 0 {
		return NewError(ErrGenerateFailed, "generated PDF is invalid", err)
	}

	logger.Info("overlay PDF generated",
		logger.String("output", outputPath),
		logger.Int("clusters", len(clusters)),
		logger.Int("stamped", stamped))
	return nil
}

// stampCluster applies one text stamp in place, wrapping long text into
// lines that fit the cluster width.
func (o *Overlay) stampCluster(path string, cluster Cluster, text string) error {
	fontSize := fitFontSize(cluster, text)
	lines := wrapText(text, cluster.Width, fontSize)

	pageSelection := []string{fmt.Sprintf("%d", cluster.Page)}
	lineHeight := fontSize * 1.2

	for i, line := range lines {
		// Lines stack downward from the cluster's top edge.
		y := cluster.Y + cluster.Height - lineHeight*float64(i+1)
		desc := fmt.Sprintf(
			"pos:bl, off:%.1f %.1f, points:%.1f, scalefactor:1 abs, fillcol:#000000, bgcol:#FFFFFF, rot:0, op:1",
			cluster.X, y, fontSize)

		wm, err := api.TextWatermark(line, desc, true, false, pdftypes.POINTS)
		if err != nil {
			return fmt.Errorf("create stamp: %w", err)
		}
		if err := api.AddWatermarksFile(path, "", pageSelection, wm, nil); err != nil {
			return fmt.Errorf("apply stamp: %w", err)
		}
	}
	return nil
}

// fitFontSize shrinks the original font size in proportion to how much
// longer the translation is, down to minFontSize.
func fitFontSize(cluster Cluster, text string) float64 {
	size := cluster.FontSize
	if size <= 0 {
		size = 10.0
	}

	originalLen := len([]rune(cluster.Text))
	translatedLen := len([]rune(text))
	if originalLen > 0 && translatedLen > originalLen {
		size *= float64(originalLen) / float64(translatedLen)
	}
	if size < minFontSize {
		size = minFontSize
	}
	return size
}

// wrapText breaks text into lines of roughly maxWidth points, assuming an
// average glyph width of half the font size.
func wrapText(text string, maxWidth, fontSize float64) []string {
	charsPerLine := int(maxWidth / (fontSize * 0.5))
	if charsPerLine < 8 {
		charsPerLine = 8
	}

	words := strings.Fields(text)
	var lines []string
	var current strings.Builder
	currentLen := 0

	for _, word := range words {
		wordLen := len([]rune(word))
		if currentLen > 0 && currentLen+1+wordLen > charsPerLine {
			lines = append(lines, current.String())
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(word)
		currentLen += wordLen
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
