// Package render produces the terminal progress indicators used while
// files are downloaded.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// Bar renders a determinate progress bar of the given total width:
// bracketed, with width-2 interior cells filled proportionally to
// progress. Progress above 1 is clamped; a negative progress means the
// total is unknown and renders every cell as '?'.
//
//	Bar(0.5, 10) == "[####    ]"
func Bar(progress float64, width int) string {
	interior := width - 2
	if interior <= 0 {
		panic("render: progress bar width too small")
	}

	if progress < 0 {
		return "[" + strings.Repeat("?", interior) + "]"
	}

	progress = math.Min(progress, 1)
	done := int(math.Round(float64(interior) * progress))
	return "[" + strings.Repeat("#", done) + strings.Repeat(" ", interior-done) + "]"
}

// Indeterminate renders a bouncing ball animation for operations of
// unknown duration. Each Next call advances the ball one step and returns
// the new frame; the sequence is infinite and restarts only by
// constructing a new instance.
type Indeterminate struct {
	ball       string
	track      int
	position   int
	goingRight bool
}

// NewIndeterminate builds an animation of the given total width using
// "#####" as the ball.
func NewIndeterminate(width int) (*Indeterminate, error) {
	return NewIndeterminateBall(width, "#####")
}

func NewIndeterminateBall(width int, ball string) (*Indeterminate, error) {
	track := width - len(ball) - 2
	if track <= 1 {
		return nil, errors.New("render: indeterminate bar width too small")
	}
	return &Indeterminate{ball: ball, track: track, goingRight: true}, nil
}

func (b *Indeterminate) Next() string {
	if b.goingRight {
		b.position++
	} else {
		b.position--
	}

	if b.position == b.track {
		b.goingRight = false
	} else if b.position == 0 {
		b.goingRight = true
	}

	return "[" + strings.Repeat(" ", b.position) + b.ball + strings.Repeat(" ", b.track-b.position) + "]"
}

// CarriageSink writes each frame over the previous one with a carriage
// return, padding to a fixed width so shorter frames fully erase longer
// ones.
type CarriageSink struct {
	Out   io.Writer
	Width int
}

func (s *CarriageSink) Frame(text string) {
	width := s.Width
	if width == 0 {
		width = 72
	}
	padding := width - len(text)
	if padding < 0 {
		padding = 0
	}
	fmt.Fprintf(s.Out, "\r%s%s\r", text, strings.Repeat(" ", padding))
}

// Clear erases the progress line so normal output can follow it.
func (s *CarriageSink) Clear() {
	width := s.Width
	if width == 0 {
		width = 72
	}
	fmt.Fprintf(s.Out, "\r%s\r", strings.Repeat(" ", width))
}
