package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageCountThreshold is the fraction of pages a translated PDF may lose
// before the result is flagged as suspicious.
const PageCountThreshold = 0.15

// PageCountResult compares page counts between an original and its
// translation.
type PageCountResult struct {
	OriginalPages   int     `json:"original_pages"`
	TranslatedPages int     `json:"translated_pages"`
	DiffPercent     float64 `json:"diff_percent"`
	IsSuspicious    bool    `json:"is_suspicious"`
}

// PageCount reads the page count of a PDF file.
func PageCount(path string) (int, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, NewError(ErrInvalid, "cannot read PDF", err)
	}
	return ctx.PageCount, nil
}

// CheckPageCount flags a translation that lost more than the threshold
// fraction of the original's pages, which usually means dropped content.
func CheckPageCount(originalPath, translatedPath string) (*PageCountResult, error) {
	originalPages, err := PageCount(originalPath)
	if err != nil {
		return nil, err
	}
	translatedPages, err := PageCount(translatedPath)
	if err != nil {
		return nil, err
	}

	return evaluatePageCount(originalPages, translatedPages), nil
}

func evaluatePageCount(original, translated int) *PageCountResult {
	result := &PageCountResult{
		OriginalPages:   original,
		TranslatedPages: translated,
	}
	if original > 0 && translated < original {
		result.DiffPercent = float64(original-translated) / float64(original)
		result.IsSuspicious = result.DiffPercent > PageCountThreshold
	}
	return result
}

// FormatPageCountWarning renders a suspicious result for logs and job errors.
func FormatPageCountWarning(result *PageCountResult) string {
	return fmt.Sprintf("translated PDF has %d pages versus %d original (%.1f%% fewer), content may be missing",
		result.TranslatedPages, result.OriginalPages, result.DiffPercent*100)
}
