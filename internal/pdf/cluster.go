package pdf

import (
	"math"
	"sort"
	"strings"
)

// yTolerance treats runs within this many points vertically as the same line.
const yTolerance = 5.0

// SortRuns orders runs into natural reading order: by page, then top to
// bottom (descending Y, since the origin is bottom-left), then left to right.
func SortRuns(runs []TextRun) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Page != runs[j].Page {
			return runs[i].Page < runs[j].Page
		}
		if math.Abs(runs[i].Y-runs[j].Y) < yTolerance {
			return runs[i].X < runs[j].X
		}
		return runs[i].Y > runs[j].Y
	})
}

// ClusterRuns groups sorted runs into visual blocks. Consecutive runs on the
// same page whose vertical gap is smaller than the run height belong to the
// same block. Page breaks always start a new block.
func ClusterRuns(runs []TextRun) []Cluster {
	if len(runs) == 0 {
		return nil
	}

	var clusters []Cluster
	current := newCluster(runs[0])

	for _, run := range runs[1:] {
		gap := current.Y - (run.Y + run.Height)
		sameLine := math.Abs(run.Y-current.Y) < yTolerance
		if run.Page == current.Page && (sameLine || gap < run.Height) {
			current = extendCluster(current, run)
			continue
		}
		clusters = append(clusters, current)
		current = newCluster(run)
	}
	clusters = append(clusters, current)

	return clusters
}

func newCluster(run TextRun) Cluster {
	return Cluster{
		Page:     run.Page,
		Text:     run.Text,
		X:        run.X,
		Y:        run.Y,
		Width:    run.Width,
		Height:   run.Height,
		FontSize: run.FontSize,
	}
}

func extendCluster(c Cluster, run TextRun) Cluster {
	c.Text = c.Text + " " + run.Text

	// The cluster box covers both the existing box and the new run. Y tracks
	// the bottom edge, which is the lower (smaller) of the two.
	top := c.Y + c.Height
	if runTop := run.Y + run.Height; runTop > top {
		top = runTop
	}
	if run.Y < c.Y {
		c.Y = run.Y
	}
	c.Height = top - c.Y

	right := c.X + c.Width
	if runRight := run.X + run.Width; runRight > right {
		right = runRight
	}
	if run.X < c.X {
		c.X = run.X
	}
	c.Width = right - c.X

	if run.FontSize > 0 && run.FontSize < c.FontSize {
		c.FontSize = run.FontSize
	}
	return c
}

// AlignWords distributes the words of translated across the clusters in
// proportion to each cluster's share of the original word count, using
// cumulative rounding so no words are dropped or duplicated even when the
// two texts have different lengths. Empty clusters receive no words.
func AlignWords(clusters []Cluster, translated string) []string {
	out := make([]string, len(clusters))
	words := strings.Fields(translated)
	if len(words) == 0 || len(clusters) == 0 {
		return out
	}

	totalOriginal := 0
	originalCounts := make([]int, len(clusters))
	for i, c := range clusters {
		originalCounts[i] = len(strings.Fields(c.Text))
		totalOriginal += originalCounts[i]
	}
	if totalOriginal == 0 {
		// No original text to apportion against; everything lands in the
		// first cluster.
		out[0] = translated
		return out
	}

	// Cumulative rounding: boundary i sits at round(cumulative share * N).
	// Adjacent boundaries never cross, so the concatenation of all slices is
	// exactly the translated word sequence.
	cumulative := 0
	start := 0
	for i := range clusters {
		cumulative += originalCounts[i]
		end := int(math.Round(float64(cumulative) / float64(totalOriginal) * float64(len(words))))
		if i == len(clusters)-1 {
			end = len(words)
		}
		out[i] = strings.Join(words[start:end], " ")
		start = end
	}

	return out
}
