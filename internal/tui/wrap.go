package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/swifttype/internal/stats"
)

// wrongSpace stands in for a reference space that was typed as something else.
const wrongSpace = '•'

type styledRune struct {
	s       string
	width   int
	isSpace bool
	state   stats.CharState
	current bool
}

func buildStyledRunes(reference, input string, cursorIndex int) []styledRune {
	ref := []rune(reference)
	states := stats.Diff(input, reference)
	currentWord := wordForCursor(findWords(ref), cursorIndex)

	out := make([]styledRune, 0, len(ref))
	for i, target := range ref {
		displayed := target
		style := pendingStyle
		inCurrent := false
		switch states[i] {
		case stats.Correct:
			style = correctStyle
		case stats.Incorrect:
			style = incorrectStyle
			if target == ' ' {
				displayed = wrongSpace
			}
		default:
			if target != ' ' && currentWord != nil && i >= currentWord.start && i < currentWord.end {
				style = currentWordStyle
				inCurrent = true
			}
		}
		if i == cursorIndex && states[i] == stats.Pending {
			style = style.Underline(true)
		}
		out = append(out, styledRune{
			s:       style.Render(string(displayed)),
			width:   runewidth.RuneWidth(displayed),
			isSpace: target == ' ',
			state:   states[i],
			current: inCurrent,
		})
	}
	return out
}

type wordRange struct {
	start int
	end   int
}

func findWords(ref []rune) []wordRange {
	var words []wordRange
	start := -1
	for i, r := range ref {
		if r == ' ' {
			if start != -1 {
				words = append(words, wordRange{start: start, end: i})
				start = -1
			}
			continue
		}
		if start == -1 {
			start = i
		}
	}
	if start != -1 {
		words = append(words, wordRange{start: start, end: len(ref)})
	}
	return words
}

// wordForCursor picks the word holding the cursor, or the next one when the
// cursor sits on a space.
func wordForCursor(words []wordRange, cursorIndex int) *wordRange {
	if len(words) == 0 || cursorIndex < 0 {
		return nil
	}
	for i := range words {
		if cursorIndex < words[i].end {
			return &words[i]
		}
	}
	return nil
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
	}
	return b.String()
}

// wrapStyledRunes breaks lines at the last space that fits in width. Words
// longer than width are hard-split.
func wrapStyledRunes(runes []styledRune, width int) string {
	if width <= 0 {
		return renderStyledRunes(runes)
	}
	var out strings.Builder
	line := make([]styledRune, 0, width)
	lineWidth := 0
	lastSpace := -1

	for i := 0; i < len(runes); {
		item := runes[i]
		if lineWidth+item.width > width && len(line) > 0 {
			if item.isSpace {
				out.WriteString(renderStyledRunes(line))
				out.WriteRune('\n')
				line = line[:0]
				lineWidth, lastSpace = 0, -1
				i++
				continue
			}
			if lastSpace >= 0 {
				out.WriteString(renderStyledRunes(line[:lastSpace]))
				out.WriteRune('\n')
				line = append([]styledRune{}, line[lastSpace+1:]...)
			} else {
				out.WriteString(renderStyledRunes(line))
				out.WriteRune('\n')
				line = line[:0]
			}
			lineWidth, lastSpace = measure(line)
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpace = len(line) - 1
		}
		i++
	}
	out.WriteString(renderStyledRunes(line))
	return out.String()
}

func measure(line []styledRune) (width, lastSpace int) {
	lastSpace = -1
	for i, item := range line {
		width += item.width
		if item.isSpace {
			lastSpace = i
		}
	}
	return width, lastSpace
}
