package pdf

import (
	"strings"
	"testing"
)

func TestPageCountResultThreshold(t *testing.T) {
	tests := []struct {
		name       string
		original   int
		translated int
		suspicious bool
	}{
		{"equal", 20, 20, false},
		{"more pages is fine", 20, 22, false},
		{"small loss under threshold", 20, 18, false},
		{"loss over threshold", 20, 15, true},
		{"everything lost", 20, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := evaluatePageCount(tt.original, tt.translated)
			if result.IsSuspicious != tt.suspicious {
				t.Errorf("suspicious = %v, want %v (diff %.2f)",
					result.IsSuspicious, tt.suspicious, result.DiffPercent)
			}
		})
	}
}

func TestFormatPageCountWarning(t *testing.T) {
	msg := FormatPageCountWarning(&PageCountResult{
		OriginalPages:   20,
		TranslatedPages: 15,
		DiffPercent:     0.25,
	})
	if !strings.Contains(msg, "15") || !strings.Contains(msg, "20") || !strings.Contains(msg, "25.0%") {
		t.Errorf("warning missing details: %q", msg)
	}
}
