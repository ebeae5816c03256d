// Package stats contains scoring calculations and reporting.
package stats

import (
	"math"
	"strings"
	"time"
)

// Metrics holds the two displayed figures of an attempt.
type Metrics struct {
	WPM      int `json:"wpm"`
	Accuracy int `json:"accuracy"`
}

// CharState classifies one reference position against the input.
type CharState int

const (
	// Pending positions have not been typed yet.
	Pending CharState = iota
	// Correct positions match the reference rune.
	Correct
	// Incorrect positions hold a different rune.
	Incorrect
)

// WordCount returns the number of whitespace-delimited tokens. An empty or
// whitespace-only buffer has zero words.
func WordCount(input string) int {
	return len(strings.Fields(input))
}

// WPM computes rounded words per minute. A non-positive elapsed time yields 0.
func WPM(words int, elapsed time.Duration) int {
	if elapsed <= 0 || words <= 0 {
		return 0
	}
	minutes := float64(elapsed.Milliseconds()) / 60000.0
	if minutes <= 0 {
		return 0
	}
	return int(math.Round(float64(words) / minutes))
}

// Accuracy compares input and reference rune by rune and returns the rounded
// share of reference positions typed correctly. It is 100 when either side is empty.
func Accuracy(input, reference string) int {
	ref := []rune(reference)
	in := []rune(input)
	if len(ref) == 0 || len(in) == 0 {
		return 100
	}
	return int(math.Round(float64(Matches(input, reference)) / float64(len(ref)) * 100))
}

// Matches counts equal runes at equal positions.
func Matches(input, reference string) int {
	ref := []rune(reference)
	in := []rune(input)
	n := min(len(in), len(ref))
	matches := 0
	for i := 0; i < n; i++ {
		if in[i] == ref[i] {
			matches++
		}
	}
	return matches
}

// Compute returns both metrics for the given input after elapsed time.
func Compute(input, reference string, elapsed time.Duration) Metrics {
	return Metrics{
		WPM:      WPM(WordCount(input), elapsed),
		Accuracy: Accuracy(input, reference),
	}
}

// Diff returns the state of every reference rune.
func Diff(input, reference string) []CharState {
	ref := []rune(reference)
	in := []rune(input)
	out := make([]CharState, len(ref))
	for i := range ref {
		switch {
		case i >= len(in):
			out[i] = Pending
		case in[i] == ref[i]:
			out[i] = Correct
		default:
			out[i] = Incorrect
		}
	}
	return out
}
