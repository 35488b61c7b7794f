// Package marker finds where a block of marker lines sits inside a file.
package marker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"

	"github.com/sokinpui/llm2fs/model"
)

// DefaultThreshold is the minimum similarity accepted for a fuzzy match.
const DefaultThreshold = 0.95

// Locator matches marker lines against file lines.
type Locator struct {
	// Threshold is the minimum similarity (1 - distance/length) accepted.
	Threshold float64
}

// Default returns a Locator using DefaultThreshold.
func Default() Locator {
	return Locator{Threshold: DefaultThreshold}
}

// NotFoundError describes a failed lookup together with the closest candidate,
// so a human can judge the near-miss.
type NotFoundError struct {
	Needle     []string
	Best       int // -1 when there was no candidate window
	Similarity float64
	Candidate  []string
	Threshold  float64
}

func (e *NotFoundError) Error() string {
	if e.Best < 0 {
		return fmt.Sprintf("%s: %d marker line(s), file too short", model.ErrMarkerNotFound, len(e.Needle))
	}
	return fmt.Sprintf("%s: %d marker line(s), best match at line %d with similarity %.3f (need %.2f)",
		model.ErrMarkerNotFound, len(e.Needle), e.Best+1, e.Similarity, e.Threshold)
}

func (e *NotFoundError) Unwrap() error {
	return model.ErrMarkerNotFound
}

// normalize trims every line and joins them, so indentation and trailing
// whitespace never count against a match.
func normalize(lines []string) string {
	trimmed := make([]string, len(lines))
	for i, line := range lines {
		trimmed[i] = strings.TrimSpace(line)
	}
	return strings.Join(trimmed, "\n")
}

// Find returns the zero-based index of the best occurrence of needle in
// fileLines. It works by:
//  1. Treating a needle without any non-blank line as matching index 0.
//  2. Scanning windows of len(needle) lines for an exact, trimmed match.
//  3. Falling back to the window with the smallest edit distance, accepted
//     only when its similarity reaches the threshold.
//
// Ties go to the leftmost window.
func (l Locator) Find(fileLines, needle []string) (int, error) {
	if model.Lines(needle).IsBlank() {
		return 0, nil
	}

	want := normalize(needle)
	size := len(needle)
	if size > len(fileLines) {
		return -1, &NotFoundError{Needle: needle, Best: -1, Threshold: l.Threshold}
	}

	windows := make([]string, 0, len(fileLines)-size+1)
	for i := 0; i+size <= len(fileLines); i++ {
		window := normalize(fileLines[i : i+size])
		if window == want {
			return i, nil
		}
		windows = append(windows, window)
	}

	best, bestDistance := -1, -1
	for i, window := range windows {
		distance := levenshtein.Distance(want, window, nil)
		if best < 0 || distance < bestDistance {
			best, bestDistance = i, distance
		}
		if distance == 0 {
			break
		}
	}

	similarity := 1 - float64(bestDistance)/float64(utf8.RuneCountInString(want))
	if similarity >= l.Threshold {
		return best, nil
	}

	candidate := make([]string, size)
	copy(candidate, fileLines[best:best+size])
	return -1, &NotFoundError{
		Needle:     needle,
		Best:       best,
		Similarity: similarity,
		Candidate:  candidate,
		Threshold:  l.Threshold,
	}
}

// Similarity compares two line blocks the same way Find scores a window.
func Similarity(a, b []string) float64 {
	left, right := normalize(a), normalize(b)
	length := utf8.RuneCountInString(left)
	if length == 0 {
		if right == "" {
			return 1
		}
		return 0
	}
	return 1 - float64(levenshtein.Distance(left, right, nil))/float64(length)
}
